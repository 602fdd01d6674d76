package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/drufino/personal-finance-app/internal/cli"
	"github.com/drufino/personal-finance-app/internal/events"
	apphttp "github.com/drufino/personal-finance-app/internal/http"
	"github.com/drufino/personal-finance-app/internal/service"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	snapshots := cli.InitSnapshotStore(logger, cfg.SQLiteDBPath)

	// Change events are optional; an empty URL runs the server standalone.
	var publisher service.Publisher
	var eventsClient *events.Client
	if cfg.AMQPURL != "" {
		var err error
		eventsClient, err = events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		publisher = eventsClient
		logger.Info("Change event publishing enabled", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("Change event publishing disabled - no AMQP_URL provided")
	}

	ledger := service.NewLedgerService(snapshots, publisher, nil)
	if err := ledger.Load(context.Background()); err != nil {
		logger.Error("Failed to restore ledger from snapshot", "error", err)
		os.Exit(1)
	}

	srv := apphttp.NewServer(":"+cfg.Port, ledger)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := ledger.Save(shutdownCtx); err != nil {
			logger.Error("Final snapshot save failed", "error", err)
		}
		if eventsClient != nil {
			if err := eventsClient.Close(); err != nil {
				logger.Error("AMQP close error", "error", err)
			}
		}
		if err := ledger.Close(); err != nil {
			logger.Error("Ledger close error", "error", err)
		}
	})

	logger.Info("Starting pfa server", "port", cfg.Port, "db", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
