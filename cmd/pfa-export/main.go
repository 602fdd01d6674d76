package main

import (
	"context"
	"flag"
	"os"

	"github.com/drufino/personal-finance-app/internal/cli"
	"github.com/drufino/personal-finance-app/internal/export"
	"github.com/drufino/personal-finance-app/internal/service"
)

func main() {
	cashOnly := flag.Bool("cash-only", false, "export cash accounts only")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.GoogleSpreadsheetID == "" {
		logger.Error("GOOGLE_SPREADSHEET_ID is required for export")
		os.Exit(2)
	}

	ctx := context.Background()
	writer, err := export.NewGoogleClient(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}

	snapshots := cli.InitSnapshotStore(logger, cfg.SQLiteDBPath)
	ledger := service.NewLedgerService(snapshots, nil, nil)
	if err := ledger.Load(ctx); err != nil {
		logger.Error("Failed to restore ledger from snapshot", "error", err)
		os.Exit(1)
	}
	defer ledger.Close()

	txns := ledger.AllTransactions(*cashOnly)
	rows, err := writer.WriteTransactions(ctx, txns)
	if err != nil {
		logger.Error("Export failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Export complete",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName,
		"rows", rows,
		"cash_only", *cashOnly)
}
