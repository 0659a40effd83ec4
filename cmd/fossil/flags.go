package main

import (
	"github.com/urfave/cli/v2"

	"github.com/jonathantxj/fossil-headers-db/internal/flags"
)

var (
	startFlag = &cli.Int64Flag{
		Name:     "start",
		Aliases:  []string{"s"},
		Usage:    "first block number to process (default: one past the store tip for update, 0 for fix)",
		Category: flags.RangeCategory,
	}
	endFlag = &cli.Int64Flag{
		Name:     "end",
		Aliases:  []string{"e"},
		Usage:    "last block number to process (default: chain's latest finalized block for update, store tip for fix)",
		Category: flags.RangeCategory,
	}
	loopsizeFlag = &cli.IntFlag{
		Name:     "loopsize",
		Aliases:  []string{"l"},
		Usage:    "number of blocks to process concurrently per chunk (update mode only; default: DB pool max conns)",
		Category: flags.RangeCategory,
	}
)

func optionalInt64(ctx *cli.Context, name string) *int64 {
	if !ctx.IsSet(name) {
		return nil
	}
	v := ctx.Int64(name)
	return &v
}
