package main

import (
	"context"
	"os"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/jonathantxj/fossil-headers-db/internal/chainrpc"
	"github.com/jonathantxj/fossil-headers-db/internal/config"
	"github.com/jonathantxj/fossil-headers-db/internal/fossilmmr"
	"github.com/jonathantxj/fossil-headers-db/internal/httpapi"
	"github.com/jonathantxj/fossil-headers-db/internal/ingest"
	"github.com/jonathantxj/fossil-headers-db/internal/store"
)

var fixCommand = &cli.Command{
	Name:   "fix",
	Usage:  "scan a block range for gaps and backfill them",
	Flags:  []cli.Flag{startFlag, endFlag},
	Action: runFix,
}

var updateCommand = &cli.Command{
	Name:   "update",
	Usage:  "advance the store from its tip and keep polling for new blocks",
	Flags:  []cli.Flag{startFlag, endFlag, loopsizeFlag},
	Action: runUpdate,
}

// process bundles the shared chain client, block store, and MMR
// maintainer every subcommand runs against, plus the process-wide
// cancellation flag wired to SIGINT/SIGTERM.
type process struct {
	cfg        *config.Config
	rpc        *chainrpc.Client
	store      *store.Store
	maintainer *fossilmmr.Maintainer
	ctx        context.Context
	stop       context.CancelFunc
	cancel     *atomic.Bool
}

func setup(ctx *cli.Context) (*process, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, log.FromLegacyLevel(cfg.Verbosity), true)))

	rpcClient := chainrpc.New(cfg.NodeConnectionString)

	blockStore, err := store.Open(cfg.DBConnectionString, cfg.DBMaxConns)
	if err != nil {
		return nil, err
	}

	maintainer, err := fossilmmr.Open(cfg.MMRStorePath)
	if err != nil {
		blockStore.Close()
		return nil, err
	}

	signalCtx, stop := newSignalContext()

	var cancel atomic.Bool
	go func() {
		<-signalCtx.Done()
		log.Info("Shutdown signal received")
		cancel.Store(true)
	}()

	return &process{
		cfg:        cfg,
		rpc:        rpcClient,
		store:      blockStore,
		maintainer: maintainer,
		ctx:        signalCtx,
		stop:       stop,
		cancel:     &cancel,
	}, nil
}

func (p *process) close() {
	p.stop()
	p.store.Close()
	p.maintainer.Close()
}

func runFix(ctx *cli.Context) error {
	p, err := setup(ctx)
	if err != nil {
		return err
	}
	defer p.close()

	engine := ingest.New(p.rpc, p.store)
	start := optionalInt64(ctx, startFlag.Name)
	end := optionalInt64(ctx, endFlag.Name)

	var wg sync.WaitGroup
	wg.Add(2)
	var ingestErr, mmrErr error

	go func() {
		defer wg.Done()
		ingestErr = engine.FillGaps(p.ctx, start, end, p.cancel)
	}()
	go func() {
		defer wg.Done()
		mmrErr = p.maintainer.Update(p.ctx, blockSourceAdapter{store: p.store}, p.cancel)
	}()
	wg.Wait()

	if ingestErr != nil {
		return ingestErr
	}
	return mmrErr
}

func runUpdate(ctx *cli.Context) error {
	p, err := setup(ctx)
	if err != nil {
		return err
	}
	defer p.close()

	engine := ingest.New(p.rpc, p.store)
	start := optionalInt64(ctx, startFlag.Name)
	end := optionalInt64(ctx, endFlag.Name)
	size := p.cfg.DBMaxConns
	if ctx.IsSet(loopsizeFlag.Name) {
		size = ctx.Int(loopsizeFlag.Name)
		if size > p.cfg.DBMaxConns {
			size = p.cfg.DBMaxConns
		}
	}

	server := httpapi.New(p.cfg.RouterEndpoint, p.maintainer)

	var wg sync.WaitGroup
	wg.Add(3)
	var ingestErr, mmrErr, httpErr error

	go func() {
		defer wg.Done()
		ingestErr = engine.UpdateFrom(p.ctx, start, end, size, p.cancel)
	}()
	go func() {
		defer wg.Done()
		mmrErr = runMMRMaintenanceLoop(p.ctx, p.maintainer, p.store, p.cancel)
	}()
	go func() {
		defer wg.Done()
		httpErr = server.Run(p.ctx, p.cancel)
	}()
	wg.Wait()

	if ingestErr != nil {
		return ingestErr
	}
	if mmrErr != nil {
		return mmrErr
	}
	return httpErr
}
