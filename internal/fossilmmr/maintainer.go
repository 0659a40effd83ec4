package fossilmmr

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// AppendLoopSize bounds how many ordered block rows the maintainer reads
// from the store per round when advancing (MMR_APPEND_LOOPSIZE).
const AppendLoopSize = 10_000

// AppendChunkSize bounds how many leaves the maintainer appends per mutex
// hold inside a round (MMR_APPEND_CHUNKSIZE).
const AppendChunkSize = 100

// MaxRetries bounds how many times Update retries on internal error
// before giving up for this call.
const MaxRetries = 10

// BlockSource is the subset of the block store the maintainer reads from.
// The fossil command implements it with an adapter over *store.Store;
// declared as an interface here so tests can supply an in-memory fake.
type BlockSource interface {
	GetLastStoredBlockNumber(ctx context.Context) (int64, error)
	GetBlockHeaders(ctx context.Context, start int64, limit int) ([]BlockDetail, error)
}

// BlockDetail is the leaf payload the maintainer appends: just enough to
// place a hash at the right position and verify block-number order. It
// mirrors store.BlockDetails field-for-field, but is a distinct type, so
// store rows are converted into it by an adapter.
type BlockDetail struct {
	BlockHash string
	Number    int64
}

// Update is the in-memory summary singleton: the latest block folded
// into the MMR, its resulting root, and when that happened.
type Update struct {
	LatestBlockNumber int64
	LatestRootHash    string
	UpdateTimestamp   time.Time
}

// sentinelRootHash and sentinelTimestamp seed the Update summary before
// any append has ever happened.
const sentinelRootHash = "Unset"

var sentinelTimestamp = time.Date(1700, 1, 1, 0, 0, 0, 0, time.UTC)

// Maintainer is the singleton MMR handle: an exclusive mutex over the
// accumulator, an IS_UPDATING guard so only one Update runs at a time,
// and the separately-guarded Update summary the HTTP surface reads.
type Maintainer struct {
	mu  sync.Mutex
	mmr *MMR

	updating atomic.Bool

	summaryMu sync.Mutex
	summary   Update
}

// Open builds a Maintainer backed by the bbolt file at path.
func Open(path string) (*Maintainer, error) {
	store, err := openNodeStore(path)
	if err != nil {
		return nil, err
	}
	mmr, err := newMMR(store)
	if err != nil {
		store.Close()
		return nil, err
	}
	return &Maintainer{
		mmr:     mmr,
		summary: Update{LatestRootHash: sentinelRootHash, UpdateTimestamp: sentinelTimestamp},
	}, nil
}

// Close releases the underlying bbolt file.
func (m *Maintainer) Close() error {
	return m.mmr.store.Close()
}

func elementCountToBlockNumber(elementsCount uint64) int64 {
	leafCount := elementsCountToLeafCount(elementsCount)
	if leafCount == 0 {
		return -1
	}
	return int64(leafCount) - 1
}

// Update advances the MMR to cover every block the store has durably
// recorded. It is idempotent and guarded so only one invocation runs at a
// time; a second concurrent call logs and returns cleanly rather than
// blocking or erroring.
func (m *Maintainer) Update(ctx context.Context, source BlockSource, cancel *atomic.Bool) error {
	if cancel != nil && cancel.Load() {
		log.Info("Termination requested, stopping MMR update")
		return nil
	}

	if !m.updating.CompareAndSwap(false, true) {
		log.Error("MMR update already in progress")
		return nil
	}
	defer m.updating.Store(false)

	var lastErr error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		if err := m.update(ctx, source, cancel); err != nil {
			lastErr = err
			log.Warn("MMR update attempt failed", "attempt", attempt, "error", err)
			continue
		}
		return nil
	}
	return fmt.Errorf("fossilmmr: update: exhausted %d retries: %w", MaxRetries, lastErr)
}

func (m *Maintainer) update(ctx context.Context, source BlockSource, cancel *atomic.Bool) error {
	m.mu.Lock()
	lastAdded := elementCountToBlockNumber(m.mmr.ElementsCount())
	m.mu.Unlock()

	log.Info("Last added block number", "number", lastAdded)

	rangeEnd, err := source.GetLastStoredBlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("fossilmmr: update: %w", err)
	}

	for start := lastAdded + 1; start <= rangeEnd; start += AppendLoopSize {
		if cancel != nil && cancel.Load() {
			return nil
		}

		details, err := source.GetBlockHeaders(ctx, start, AppendLoopSize)
		if err != nil {
			return fmt.Errorf("fossilmmr: update: %w", err)
		}
		log.Info("Retrieved blockheaders for MMR append", "count", len(details))

		if err := m.appendToMMR(details, cancel); err != nil {
			return err
		}
	}
	return nil
}

// appendToMMR appends a batch of ordered block details, verifying the
// first against the MMR's tail via a draft, then extending strictly in
// order in AppendChunkSize-sized chunks.
func (m *Maintainer) appendToMMR(details []BlockDetail, cancel *atomic.Bool) error {
	if cancel != nil && cancel.Load() {
		log.Info("Termination requested, stopping MMR update")
		return nil
	}
	if len(details) == 0 {
		return nil
	}

	first := details[0]
	if err := m.verifyFirstNewBlockSequence(first); err != nil {
		return err
	}

	prev := first.Number
	for start := 1; start < len(details); start += AppendChunkSize {
		end := start + AppendChunkSize
		if end > len(details) {
			end = len(details)
		}

		if err := m.appendChunk(details[start:end], &prev, cancel); err != nil {
			return err
		}
		if cancel != nil && cancel.Load() {
			log.Info("Termination requested, stopping MMR update", "lastBlockAdded", prev)
			return nil
		}
	}

	log.Info("Last block added", "number", prev)
	return nil
}

func (m *Maintainer) appendChunk(details []BlockDetail, prev *int64, cancel *atomic.Bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, detail := range details {
		if cancel != nil && cancel.Load() {
			return nil
		}
		if detail.Number != *prev+1 {
			return &ErrOutOfSequence{Expected: *prev + 1, Got: detail.Number}
		}

		hash, err := ParseHash(detail.BlockHash)
		if err != nil {
			return fmt.Errorf("fossilmmr: append_to_mmr: %w", err)
		}
		result, err := m.mmr.Append(hash)
		if err != nil {
			return fmt.Errorf("fossilmmr: append_to_mmr: %w", err)
		}

		m.updateSummary(detail.Number, result.RootHash)
		*prev = detail.Number
	}
	return nil
}

// verifyFirstNewBlockSequence drafts a single speculative append of the
// batch's first block and asserts the element index it would receive
// decodes back to the expected block number, guarding against a gap
// between the block store's contents and the MMR's tail. On mismatch the
// draft is discarded and the MMR is left untouched.
func (m *Maintainer) verifyFirstNewBlockSequence(first BlockDetail) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	hash, err := ParseHash(first.BlockHash)
	if err != nil {
		return fmt.Errorf("fossilmmr: verify_first_new_block_sequence: %w", err)
	}

	draft := m.mmr.StartDraft()
	result, err := draft.Append(hash)
	if err != nil {
		return fmt.Errorf("fossilmmr: verify_first_new_block_sequence: %w", err)
	}

	expectedNumber := int64(elementIndexToLeafIndex(result.ElementIndex))
	if first.Number != expectedNumber {
		draft.Discard()
		return &ErrOutOfSequence{Expected: expectedNumber, Got: first.Number}
	}

	if err := draft.Commit(); err != nil {
		return fmt.Errorf("fossilmmr: verify_first_new_block_sequence: %w", err)
	}
	m.updateSummary(first.Number, result.RootHash)
	return nil
}

func (m *Maintainer) updateSummary(blockNumber int64, root Hash) {
	m.summaryMu.Lock()
	defer m.summaryMu.Unlock()
	m.summary = Update{
		LatestBlockNumber: blockNumber,
		LatestRootHash:    root.String(),
		UpdateTimestamp:   time.Now().UTC(),
	}
}

// GetStats returns a copy of the in-memory update summary.
func (m *Maintainer) GetStats() Update {
	m.summaryMu.Lock()
	defer m.summaryMu.Unlock()
	return m.summary
}

// GetProof maps blockNumber to its element index and returns a membership
// proof against the current MMR state.
func (m *Maintainer) GetProof(blockNumber int64) (Proof, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mmr.GetProof(uint64(blockNumber))
}
