package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tsuji/bunkei/internal/db"
)

// SQLite stores snapshots in the kv_snapshots table of the application
// database, so one file holds cards and review history together.
type SQLite struct {
	db *db.DB
}

var _ Store = (*SQLite)(nil)

func NewSQLite(database *db.DB) *SQLite {
	return &SQLite{db: database}
}

func (s *SQLite) Load(ctx context.Context, key string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_snapshots WHERE key = ?`, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %q: %w", key, err)
	}
	return blob, nil
}

func (s *SQLite) Save(ctx context.Context, key string, blob []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_snapshots (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, blob)
	if err != nil {
		return fmt.Errorf("save snapshot %q: %w", key, err)
	}
	return nil
}

// Close is a no-op; the underlying database is owned by the caller.
func (s *SQLite) Close() error {
	return nil
}
