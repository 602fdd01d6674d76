package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"

	"github.com/drufino/personal-finance-app/internal/cli"
	"github.com/drufino/personal-finance-app/internal/core"
	"github.com/drufino/personal-finance-app/internal/qif"
	"github.com/drufino/personal-finance-app/internal/service"
)

func main() {
	account := flag.String("account", "", "account to import into (created if missing)")
	file := flag.String("file", "", "statement file to import (.qif or .csv)")
	format := flag.String("format", string(core.FormatDMY4), "date format of the statement")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	if *account == "" || *file == "" {
		logger.Error("Both -account and -file are required")
		flag.Usage()
		os.Exit(2)
	}

	dateFormat := core.DateFormat(*format)
	if !dateFormat.Valid() {
		logger.Error("Unknown date format", "format", *format, "known", core.DateFormats)
		os.Exit(2)
	}

	f, err := os.Open(*file)
	if err != nil {
		logger.Error("Failed to open statement file", "error", err, "file", *file)
		os.Exit(1)
	}
	defer f.Close()

	var records []core.RawRecord
	switch strings.ToLower(filepath.Ext(*file)) {
	case ".csv":
		records, err = qif.ParseCSV(f)
	default:
		records, err = qif.Parse(f)
	}
	if err != nil {
		logger.Error("Failed to parse statement file", "error", err, "file", *file)
		os.Exit(1)
	}
	if len(records) == 0 {
		logger.Error("Statement file contains no records", "file", *file)
		os.Exit(1)
	}

	cfg := cli.LoadAndValidateConfig(logger)
	snapshots := cli.InitSnapshotStore(logger, cfg.SQLiteDBPath)

	ledger := service.NewLedgerService(snapshots, nil, nil)
	ctx := context.Background()
	if err := ledger.Load(ctx); err != nil {
		logger.Error("Failed to restore ledger from snapshot", "error", err)
		os.Exit(1)
	}
	defer ledger.Close()

	ledger.AddAccount(ctx, *account)
	duplicates := ledger.AppendUpload(ctx, *account, dateFormat, records)

	logger.Info("Statement imported",
		"account", *account,
		"file", *file,
		"records", len(records),
		"duplicates", duplicates,
		"transactions", len(ledger.TransactionsFor(*account)))
}
