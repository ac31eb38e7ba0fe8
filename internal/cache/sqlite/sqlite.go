package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vbonduro/showroom/internal/domain"
)

const defaultTimeout = 2 * time.Second

// SQLiteStore is a durable cache.Store backed by the kv_entries table.
type SQLiteStore struct {
	db      *sql.DB
	timeout time.Duration
}

// NewSQLiteStore wraps db. Every call is bounded by timeout; a timed-out call
// reports domain.ErrStoreUnavailable even though the write may still land.
func NewSQLiteStore(db *sql.DB, timeout time.Duration) *SQLiteStore {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &SQLiteStore{db: db, timeout: timeout}
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var value []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM kv_entries WHERE key = ?
	`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cache key %q: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("get", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_entries (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC())
	if err != nil {
		return unavailable("set", key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM kv_entries WHERE key = ?
	`, key); err != nil {
		return unavailable("delete", key, err)
	}
	return nil
}

func unavailable(op, key string, err error) error {
	return fmt.Errorf("cache %s %q: %w: %w", op, key, domain.ErrStoreUnavailable, err)
}
