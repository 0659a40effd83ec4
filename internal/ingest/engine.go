// Package ingest drives the two ingestion modes: FIX, which scans a fixed
// block range for gaps and backfills them, and UPDATE, which advances the
// store from its tip and then polls the chain for newly finalized blocks.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/jonathantxj/fossil-headers-db/internal/chainrpc"
	"github.com/jonathantxj/fossil-headers-db/internal/store"
)

// fixRoundMaxRetries bounds how many passes fill_gaps makes over its range
// before giving up; a pass whose gap search fails is retried from the start
// of the range.
const fixRoundMaxRetries = 10

// perBlockMaxRetries bounds how many attempts a single block gets before
// it is logged as unrecoverable and returned as an error (FIX stops the
// run; UPDATE stops the current pass).
const perBlockMaxRetries = 5

// rpcTimeout bounds every chain RPC call the engine makes.
const rpcTimeout = 300 * time.Second

// pollInterval is how long chain_update_blocks sleeps between checks for
// a newly finalized block once it has caught up to the chain tip.
const pollInterval = 60 * time.Second

// chainSource is the subset of *chainrpc.Client the engine calls,
// declared as an interface so tests can supply a fake chain.
type chainSource interface {
	GetFullBlockByNumber(ctx context.Context, number int64, timeout time.Duration) (*chainrpc.BlockHeader, error)
	GetLatestFinalizedBlockNumber(ctx context.Context, timeout time.Duration) (int64, error)
}

// blockWriter is the subset of *store.Store the engine calls, declared
// as an interface so tests can supply an in-memory fake store.
type blockWriter interface {
	CreateTables(ctx context.Context) error
	GetLastStoredBlockNumber(ctx context.Context) (int64, error)
	FindFirstGap(ctx context.Context, start, end int64) (int64, bool, error)
	WriteBlockHeader(ctx context.Context, header *chainrpc.BlockHeader) error
}

// Engine drives ingestion against a chain RPC client and a block store.
type Engine struct {
	rpc   chainSource
	store blockWriter
}

// New builds an Engine.
func New(rpc *chainrpc.Client, st *store.Store) *Engine {
	return &Engine{rpc: rpc, store: st}
}

// backoff returns the quadratic per-attempt sleep original_source uses:
// attempt² · 5 seconds.
func backoff(attempt int) time.Duration {
	return time.Duration(attempt*attempt) * 5 * time.Second
}

// ErrBlockUnrecoverable reports that a single block exhausted its retry
// budget without being fetched and written successfully.
type ErrBlockUnrecoverable struct {
	BlockNumber int64
	Err         error
}

func (e *ErrBlockUnrecoverable) Error() string {
	return fmt.Sprintf("ingest: block %d unrecoverable: %v", e.BlockNumber, e.Err)
}

func (e *ErrBlockUnrecoverable) Unwrap() error { return e.Err }

// fetchAndWrite retrieves one block by number and writes it to the store,
// used by both FIX and UPDATE as the unit of work per block.
func (e *Engine) fetchAndWrite(ctx context.Context, blockNumber int64) error {
	header, err := e.rpc.GetFullBlockByNumber(ctx, blockNumber, rpcTimeout)
	if err != nil {
		return err
	}
	return e.store.WriteBlockHeader(ctx, header)
}

// processBlockWithRetry retries fetchAndWrite up to perBlockMaxRetries
// times with quadratic backoff, logging and returning
// ErrBlockUnrecoverable if every attempt fails.
func (e *Engine) processBlockWithRetry(ctx context.Context, blockNumber int64, logPrefix string) error {
	var lastErr error
	for attempt := 0; attempt < perBlockMaxRetries; attempt++ {
		if err := e.fetchAndWrite(ctx, blockNumber); err != nil {
			lastErr = err
			log.Warn(fmt.Sprintf("[%s] Error processing block", logPrefix), "block", blockNumber, "attempt", attempt, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff(attempt)):
			}
			continue
		}
		if attempt > 0 {
			log.Info(fmt.Sprintf("[%s] Successfully wrote block after retries", logPrefix), "block", blockNumber, "retries", attempt)
		}
		return nil
	}
	log.Error(fmt.Sprintf("[%s] Block exhausted retry budget", logPrefix), "block", blockNumber)
	return &ErrBlockUnrecoverable{BlockNumber: blockNumber, Err: lastErr}
}

// FillGaps is the FIX mode entry point: it scans [start, end] for rows
// missing from the store and backfills each one, windowing the gap scan
// so no single query covers more than store.MaxGapWindow block numbers.
func (e *Engine) FillGaps(ctx context.Context, start, end *int64, cancel *atomic.Bool) error {
	if err := e.store.CreateTables(ctx); err != nil {
		return fmt.Errorf("ingest: fill_gaps: %w", err)
	}

	rangeStart := int64(0)
	if start != nil {
		rangeStart = *start
	}
	if rangeStart < 0 {
		rangeStart = 0
	}

	rangeEnd, err := e.resolveEnd(ctx, end)
	if err != nil {
		return fmt.Errorf("ingest: fill_gaps: %w", err)
	}
	if rangeEnd < 0 || rangeStart == rangeEnd {
		log.Info("Empty database, nothing to fill")
		return nil
	}

	return e.fillMissingBlocksInRange(ctx, rangeStart, rangeEnd, cancel)
}

func (e *Engine) resolveEnd(ctx context.Context, end *int64) (int64, error) {
	if end != nil {
		return *end, nil
	}
	return e.store.GetLastStoredBlockNumber(ctx)
}

func (e *Engine) fillMissingBlocksInRange(ctx context.Context, start, searchEnd int64, cancel *atomic.Bool) error {
	var lastErr error
	for round := 0; round < fixRoundMaxRetries; round++ {
		cursor := start
		lastErr = nil
		for !cancelled(cancel) && cursor <= searchEnd {
			windowEnd := searchEnd
			if cursor+store.MaxGapWindow-1 < windowEnd {
				windowEnd = cursor + store.MaxGapWindow - 1
			}

			blockNumber, found, err := e.store.FindFirstGap(ctx, cursor, windowEnd)
			if err != nil {
				lastErr = fmt.Errorf("ingest: fill_gaps: %w", err)
				log.Warn("[fill_gaps] Gap search failed", "round", round, "error", err)
				break
			}
			if !found {
				log.Info("[fill_gaps] No missing values found in window", "start", cursor, "end", windowEnd)
				cursor = windowEnd + 1
				continue
			}

			log.Info("[fill_gaps] Found missing block number", "block", blockNumber)
			if err := e.processBlockWithRetry(ctx, blockNumber, "fill_gaps"); err != nil {
				return err
			}
			cursor = blockNumber + 1
		}
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}

// UpdateFrom is the UPDATE mode entry point: it advances the store from
// its tip (or a caller-specified start) up to end (or the chain's latest
// finalized block), then — when end is unset — keeps polling for new
// finalized blocks forever.
func (e *Engine) UpdateFrom(ctx context.Context, start, end *int64, size int, cancel *atomic.Bool) error {
	if err := e.store.CreateTables(ctx); err != nil {
		return fmt.Errorf("ingest: update_from: %w", err)
	}

	rangeStart, err := e.firstMissingBlock(ctx, start)
	if err != nil {
		return fmt.Errorf("ingest: update_from: %w", err)
	}
	log.Info("Range start", "block", rangeStart)

	lastBlock, err := e.resolveLastBlock(ctx, end)
	if err != nil {
		return fmt.Errorf("ingest: update_from: %w", err)
	}
	log.Info("Range end", "block", lastBlock)

	if end != nil {
		return e.updateBlocks(ctx, rangeStart, lastBlock, size, cancel)
	}
	return e.chainUpdateBlocks(ctx, rangeStart, lastBlock, size, cancel)
}

func (e *Engine) firstMissingBlock(ctx context.Context, start *int64) (int64, error) {
	if start != nil {
		return *start, nil
	}
	last, err := e.store.GetLastStoredBlockNumber(ctx)
	if err != nil {
		return 0, err
	}
	return last + 1, nil
}

func (e *Engine) resolveLastBlock(ctx context.Context, end *int64) (int64, error) {
	latest, err := e.rpc.GetLatestFinalizedBlockNumber(ctx, rpcTimeout)
	if err != nil {
		return 0, fmt.Errorf("getting latest finalized block number: %w", err)
	}
	if end != nil {
		if *end < latest {
			return *end, nil
		}
		return latest, nil
	}
	return latest, nil
}

// chainUpdateBlocks repeatedly advances the store to the chain tip, then
// polls pollInterval for a newly finalized block before repeating.
func (e *Engine) chainUpdateBlocks(ctx context.Context, rangeStart, lastBlock int64, size int, cancel *atomic.Bool) error {
	for {
		if cancelled(cancel) {
			log.Info("Termination requested, stopping update process")
			return nil
		}

		if err := e.updateBlocks(ctx, rangeStart, lastBlock, size, cancel); err != nil {
			return err
		}

		for {
			if cancelled(cancel) {
				return nil
			}

			latest, err := e.rpc.GetLatestFinalizedBlockNumber(ctx, rpcTimeout)
			if err != nil {
				return fmt.Errorf("ingest: chain_update_blocks: %w", err)
			}
			if latest > lastBlock {
				rangeStart = lastBlock + 1
				lastBlock = latest
				break
			}

			log.Info("No new block finalized, sleeping", "latest", latest, "sleepSeconds", int(pollInterval.Seconds()))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pollInterval):
			}
		}
	}
}

// updateBlocks processes [rangeStart, lastBlock] in chunks of size blocks,
// each chunk fanned out across up to size concurrent workers.
func (e *Engine) updateBlocks(ctx context.Context, rangeStart, lastBlock int64, size int, cancel *atomic.Bool) error {
	if rangeStart > lastBlock {
		return nil
	}

	for n := rangeStart; n <= lastBlock; n += int64(size) {
		if cancelled(cancel) {
			log.Info("Termination requested, stopping update process")
			return nil
		}

		chunkEnd := lastBlock + 1
		if n+int64(size) < chunkEnd {
			chunkEnd = n + int64(size)
		}

		if err := e.processChunk(ctx, n, chunkEnd); err != nil {
			log.Error("Rerun from block", "block", n)
			return err
		}
		log.Info("Written blocks", "from", n, "to", chunkEnd-1, "next", chunkEnd)
	}
	return nil
}

// processChunk fans [start, end) out across concurrent workers, one per
// block, and returns the first error encountered (if any) after every
// worker has finished.
func (e *Engine) processChunk(ctx context.Context, start, end int64) error {
	jobs := make(chan int64)
	errs := make([]error, 0, end-start)
	var mu sync.Mutex
	var wg sync.WaitGroup

	workerCount := int(end - start)
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for blockNumber := range jobs {
				if err := e.processBlockWithRetry(ctx, blockNumber, "update_from"); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}
		}()
	}

	for n := start; n < end; n++ {
		jobs <- n
	}
	close(jobs)
	wg.Wait()

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func cancelled(cancel *atomic.Bool) bool {
	return cancel != nil && cancel.Load()
}
