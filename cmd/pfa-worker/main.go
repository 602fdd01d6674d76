package main

import (
	"context"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/drufino/personal-finance-app/internal/cli"
	"github.com/drufino/personal-finance-app/internal/events"
	"github.com/drufino/personal-finance-app/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger()
	logger.Info("Starting pfa-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	snapshots := cli.InitSnapshotStore(logger, cfg.SQLiteDBPath)
	defer snapshots.Close()

	eventsClient, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer eventsClient.Close()

	pruner := worker.NewPruneWorker(snapshots, cfg.SnapshotKeep)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownCtx, done := cli.GracefulShutdown(logger, 10*time.Second, cancel)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return eventsClient.ConsumeLedgerChanged(ctx, func(msg *events.LedgerChangedMessage) error {
			return pruner.HandleChangeMessage(ctx, msg)
		})
	})
	g.Go(func() error {
		// Backup prune in case change messages are lost.
		pruner.RunPeriodic(ctx, cfg.PruneInterval)
		return nil
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("Worker failed", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Worker stopped gracefully")
}
