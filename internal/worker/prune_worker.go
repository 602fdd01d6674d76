package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/drufino/personal-finance-app/internal/events"
	"github.com/drufino/personal-finance-app/internal/storage"
)

// PruneWorker keeps the snapshot history bounded. Every ledger mutation
// appends a fresh snapshot, so the table grows with every edit; the worker
// trims it back to the newest N rows.
type PruneWorker struct {
	snapshots *storage.SnapshotStore
	keep      int
}

func NewPruneWorker(snapshots *storage.SnapshotStore, keep int) *PruneWorker {
	return &PruneWorker{
		snapshots: snapshots,
		keep:      keep,
	}
}

// HandleChangeMessage processes a single ledger change message from AMQP.
func (w *PruneWorker) HandleChangeMessage(ctx context.Context, msg *events.LedgerChangedMessage) error {
	slog.InfoContext(ctx, "Processing ledger change",
		"account", msg.Account,
		"revision", msg.Revision)

	if err := w.prune(ctx); err != nil {
		return fmt.Errorf("prune after change: %w", err)
	}
	return nil
}

// RunPeriodic prunes on a fixed interval until the context is cancelled.
// This is a backup mechanism in case AMQP messages are lost.
func (w *PruneWorker) RunPeriodic(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.prune(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic prune failed", "error", err)
			}
		}
	}
}

func (w *PruneWorker) prune(ctx context.Context) error {
	removed, err := w.snapshots.Prune(ctx, w.keep)
	if err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	if removed > 0 {
		count, err := w.snapshots.Count(ctx)
		if err != nil {
			return fmt.Errorf("count snapshots: %w", err)
		}
		slog.InfoContext(ctx, "Pruned old snapshots", "removed", removed, "remaining", count)
	}
	return nil
}
