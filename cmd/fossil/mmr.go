package main

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/jonathantxj/fossil-headers-db/internal/fossilmmr"
	"github.com/jonathantxj/fossil-headers-db/internal/store"
)

// mmrUpdateInterval is how often the update subcommand re-runs the MMR
// maintainer against the store's latest contents.
const mmrUpdateInterval = 60 * time.Second

// blockSourceAdapter adapts *store.Store's store.BlockDetails rows to the
// fossilmmr.BlockDetail shape the maintainer expects, since Go interface
// satisfaction requires identical named return types, not just
// structurally identical fields.
type blockSourceAdapter struct {
	store *store.Store
}

func (a blockSourceAdapter) GetLastStoredBlockNumber(ctx context.Context) (int64, error) {
	return a.store.GetLastStoredBlockNumber(ctx)
}

func (a blockSourceAdapter) GetBlockHeaders(ctx context.Context, start int64, limit int) ([]fossilmmr.BlockDetail, error) {
	rows, err := a.store.GetBlockHeaders(ctx, start, limit)
	if err != nil {
		return nil, err
	}
	out := make([]fossilmmr.BlockDetail, len(rows))
	for i, r := range rows {
		out[i] = fossilmmr.BlockDetail{BlockHash: r.BlockHash, Number: r.Number}
	}
	return out, nil
}

// runMMRMaintenanceLoop repeatedly advances the MMR to cover the store's
// latest contents until cancel is set, sleeping mmrUpdateInterval between
// passes once caught up.
func runMMRMaintenanceLoop(ctx context.Context, maintainer *fossilmmr.Maintainer, st *store.Store, cancel *atomic.Bool) error {
	source := blockSourceAdapter{store: st}
	for {
		if cancel != nil && cancel.Load() {
			return nil
		}
		if err := maintainer.Update(ctx, source, cancel); err != nil {
			log.Error("MMR maintenance pass failed", "error", err)
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(mmrUpdateInterval):
		}
	}
}
