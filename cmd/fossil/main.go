// Command fossil ingests block headers and transactions from a chain
// node into a Postgres store and maintains a Merkle Mountain Range over
// the canonical block hash sequence, serving proofs over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/jonathantxj/fossil-headers-db/internal/flags"
)

var app = flags.NewApp("backfills and maintains a block header store with a Merkle Mountain Range proof index")

func init() {
	app.Commands = []*cli.Command{
		fixCommand,
		updateCommand,
	}
}

func newSignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
