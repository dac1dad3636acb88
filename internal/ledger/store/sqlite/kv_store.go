package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	dbpkg "github.com/BrandonDHaskell/shiftledger/internal/db"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger/store"
)

// KVStore implements store.KV on the kv table.  Reads go straight to the
// pool; writes are funnelled through the single-writer worker.
type KVStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
	now    func() time.Time
}

func NewKVStore(db *sql.DB, writer *dbpkg.Worker) *KVStore {
	return &KVStore{db: db, writer: writer, now: time.Now}
}

func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?;`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: get %s: %v", store.ErrIO, key, err)
	}
	return v, true, nil
}

func (s *KVStore) Set(ctx context.Context, key, value string) error {
	nowMs := s.now().UTC().UnixMilli()

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO kv(key, value, updated_at_ms) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
  value = excluded.value,
  updated_at_ms = excluded.updated_at_ms;
`, key, value, nowMs)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: set %s: %v", store.ErrIO, key, err)
	}
	return nil
}

// Remove deletes key and records the removal in kv_removals.  Removing a
// missing key is a no-op and leaves no removal row.
func (s *KVStore) Remove(ctx context.Context, key string) error {
	nowMs := s.now().UTC().UnixMilli()

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE key = ?;`, key)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO kv_removals(key, removed_at_ms) VALUES (?, ?);`, key, nowMs)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: remove %s: %v", store.ErrIO, key, err)
	}
	return nil
}

// UpdatedAt reports when key was last written.  shiftledgerctl status shows
// it per collection.
func (s *KVStore) UpdatedAt(ctx context.Context, key string) (time.Time, bool, error) {
	var ms int64
	err := s.db.QueryRowContext(ctx, `SELECT updated_at_ms FROM kv WHERE key = ?;`, key).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: updated_at %s: %v", store.ErrIO, key, err)
	}
	return time.UnixMilli(ms).UTC(), true, nil
}

// PruneRemovalsOlderThan deletes kv_removals rows before cutoff and returns
// how many were deleted.
func (s *KVStore) PruneRemovalsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoffMs := cutoff.UTC().UnixMilli()

	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM kv_removals WHERE removed_at_ms < ?;`, cutoffMs)
		if err != nil {
			return fmt.Errorf("PruneRemovalsOlderThan: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	return deleted, err
}
