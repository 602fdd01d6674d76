package worker

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drufino/personal-finance-app/internal/events"
	"github.com/drufino/personal-finance-app/internal/storage"
)

func TestHandleChangeMessagePrunes(t *testing.T) {
	ctx := context.Background()
	snapshots, err := storage.NewSnapshotStore(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer snapshots.Close()

	for i := 0; i < 5; i++ {
		_, err := snapshots.Save(ctx, []byte(`{}`))
		require.NoError(t, err)
	}

	w := NewPruneWorker(snapshots, 2)
	require.NoError(t, w.HandleChangeMessage(ctx, events.NewLedgerChangedMessage("Current", 7)))

	count, err := snapshots.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestHandleChangeMessageNothingToPrune(t *testing.T) {
	ctx := context.Background()
	snapshots, err := storage.NewSnapshotStore(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer snapshots.Close()

	w := NewPruneWorker(snapshots, 2)
	assert.NoError(t, w.HandleChangeMessage(ctx, events.NewLedgerChangedMessage("Current", 1)))
}
