package main

import (
	"context"
	"flag"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marcus-miao/tagqueue/internal/rateadmin"
	"github.com/marcus-miao/tagqueue/pkg/epochdriver"
	"github.com/marcus-miao/tagqueue/pkg/rvadmission"
	"github.com/marcus-miao/tagqueue/pkg/rvadmission/ratesource"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

var (
	configFile  string
	demoClients int
)

func init() {
	flag.StringVar(&configFile, "config", "", "path to a YAML admin config file; empty uses defaults")
	flag.IntVar(&demoClients, "demo-clients", 0, "number of synthetic load-generating clients to run alongside the server")
}

func main() {
	flag.Parse()
	slog.Info("tagqueue admission server starting")

	cfg, err := rateadmin.LoadConfig(configFile)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	queue := rvadmission.NewTagQueue()
	queue.MaxDeferredEpochs = cfg.MaxDeferredEpochs
	queue.BurstMultiplier = cfg.BurstMultiplier

	registry := prometheus.NewRegistry()
	metrics := epochdriver.NewMetrics(registry)
	driver := epochdriver.New(queue, cfg.EpochInterval, epochdriver.WithMetrics(metrics))
	admin := rateadmin.New(cfg, driver, slog.Default(), registry)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return driver.Run(gctx) })
	g.Go(func() error { return admin.Run(gctx) })

	// Fallback reconciliation: reapplies whatever rates LoadConfig read at
	// startup on an interval, so a long-running server does not depend
	// solely on an upstream controller's POST /rates calls ever happening.
	poller := ratesource.NewPoller(ratesource.NewStatic(map[rvadmission.Tag]float64{}))
	g.Go(func() error { return poller.Run(gctx, driver) })

	for i := 0; i < demoClients; i++ {
		tag := rvadmission.Tag("demo")
		g.Go(func() error { return runDemoClient(gctx, driver, tag, 20.0) })
	}

	if err := g.Wait(); err != nil && err != context.Canceled {
		slog.Error("tagqueue admission server exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("tagqueue admission server stopped")
}

// runDemoClient repeatedly submits single-tag requests at roughly
// desiredRate per second and blocks waiting for each to be admitted,
// mirroring a synthetic load generator exercising a live Driver.
func runDemoClient(ctx context.Context, driver *epochdriver.Driver, tag rvadmission.Tag, desiredRate float64) error {
	source := ratesource.NewStatic(map[rvadmission.Tag]float64{tag: desiredRate})
	rates, err := source.Fetch(ctx)
	if err != nil {
		return err
	}
	if err := driver.UpdateRates(ctx, rates); err != nil {
		return err
	}

	for {
		interval := time.Duration(float64(time.Second) / desiredRate)
		jitter := time.Duration(rand.Int63n(int64(interval / 2)))

		req := rvadmission.NewRequest(rvadmission.TagSet{tag: 1}, rvadmission.Default)
		if err := driver.Submit(ctx, req); err != nil {
			return err
		}

		select {
		case <-req.Reply:
		case <-ctx.Done():
			return ctx.Err()
		}

		select {
		case <-time.After(interval + jitter):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
