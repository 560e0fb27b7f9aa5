package stores

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dropzy/dropzy/internal/core/kv"
	"github.com/dropzy/dropzy/internal/data/db"
)

const upsertSQL = `
INSERT INTO storage (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

// KVStore implements kv.Store using SQLite.
type KVStore struct {
	db *db.DB
}

var _ kv.Store = (*KVStore)(nil)

// NewKVStore creates a new SQLite-backed store.
func NewKVStore(db *db.DB) *KVStore {
	return &KVStore{db: db}
}

// Get returns the raw value for key or kv.ErrNotFound.
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.Conn().GetContext(ctx, &value, "SELECT value FROM storage WHERE key = ?", key)
	if IsNotFoundError(err) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv get %q: %w", key, err)
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.Conn().ExecContext(ctx, upsertSQL, key, value, time.Now().UnixNano()); err != nil {
		return fmt.Errorf("kv set %q: %w", key, err)
	}
	return nil
}

// SetMany writes every item in a single transaction.
func (s *KVStore) SetMany(ctx context.Context, items map[string][]byte) error {
	now := time.Now().UnixNano()
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		for key, value := range items {
			if _, err := tx.ExecContext(ctx, upsertSQL, key, value, now); err != nil {
				return fmt.Errorf("kv set %q: %w", key, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("kv set many: %w", err)
	}
	return nil
}

// Delete removes the given keys. Missing keys are ignored.
func (s *KVStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	query, args, err := sqlx.In("DELETE FROM storage WHERE key IN (?)", keys)
	if err != nil {
		return fmt.Errorf("kv delete: %w", err)
	}
	if _, err := s.db.Conn().ExecContext(ctx, s.db.Conn().Rebind(query), args...); err != nil {
		return fmt.Errorf("kv delete: %w", err)
	}
	return nil
}

// Keys returns all keys in sorted order.
func (s *KVStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	if err := s.db.Conn().SelectContext(ctx, &keys, "SELECT key FROM storage ORDER BY key"); err != nil {
		return nil, fmt.Errorf("kv list keys: %w", err)
	}
	return keys, nil
}
