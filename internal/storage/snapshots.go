// Package storage is the host side of the persistence boundary: it stores
// opaque ledger snapshots in SQLite. The core never touches this package;
// it only produces and consumes snapshot bytes.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SnapshotStore keeps an append-only history of ledger snapshots. Every
// mutation writes a new row; startup loads the newest one; a worker prunes
// the history down to a configured count.
type SnapshotStore struct {
	db *sql.DB
}

func NewSnapshotStore(dbPath string) (*SnapshotStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SnapshotStore{db: db}, nil
}

func (s *SnapshotStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save appends a snapshot and returns its id.
func (s *SnapshotStore) Save(ctx context.Context, body []byte) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO snapshots (body) VALUES (?)`, string(body))
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("snapshot id: %w", err)
	}

	slog.DebugContext(ctx, "Snapshot saved", "id", id, "bytes", len(body))
	return id, nil
}

// LoadLatest returns the newest snapshot body, or ok=false when the store is
// empty (a fresh install).
func (s *SnapshotStore) LoadLatest(ctx context.Context) ([]byte, bool, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM snapshots ORDER BY id DESC LIMIT 1`).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load latest snapshot: %w", err)
	}
	return []byte(body), true, nil
}

// Prune deletes every snapshot older than the newest keep rows and reports
// how many were removed.
func (s *SnapshotStore) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 1 {
		keep = 1
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE id NOT IN (SELECT id FROM snapshots ORDER BY id DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune rows affected: %w", err)
	}
	if removed > 0 {
		slog.InfoContext(ctx, "Snapshot history pruned", "removed", removed, "keep", keep)
	}
	return removed, nil
}

// Count returns the number of stored snapshots.
func (s *SnapshotStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return n, nil
}
