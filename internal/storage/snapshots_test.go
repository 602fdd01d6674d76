package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SnapshotStore {
	t.Helper()
	store, err := NewSnapshotStore(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("NewSnapshotStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestLoadLatestEmptyStore(t *testing.T) {
	store := newTestStore(t)

	body, ok, err := store.LoadLatest(context.Background())
	if err != nil {
		t.Fatalf("LoadLatest() error = %v", err)
	}
	if ok {
		t.Errorf("LoadLatest() ok = true on empty store, body = %q", body)
	}
}

func TestSaveAndLoadLatest(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Save(ctx, []byte(`{"v":1}`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := store.Save(ctx, []byte(`{"v":2}`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	body, ok, err := store.LoadLatest(ctx)
	if err != nil {
		t.Fatalf("LoadLatest() error = %v", err)
	}
	if !ok {
		t.Fatal("LoadLatest() ok = false, want true")
	}
	if string(body) != `{"v":2}` {
		t.Errorf("LoadLatest() = %q, want newest snapshot", body)
	}
}

func TestPruneKeepsNewest(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := store.Save(ctx, []byte(`{}`)); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	removed, err := store.Prune(ctx, 2)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if removed != 3 {
		t.Errorf("Prune() removed = %d, want 3", removed)
	}

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Count() = %d, want 2", n)
	}

	// Pruning again is a no-op.
	removed, err = store.Prune(ctx, 2)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if removed != 0 {
		t.Errorf("second Prune() removed = %d, want 0", removed)
	}
}
