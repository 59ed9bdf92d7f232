package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/vietddude/supervisor/internal/infra/storage"
)

// KVRepo implements storage.Backend on the kv_store table.
type KVRepo struct {
	db *sqlx.DB
}

// NewKVRepo creates a new PostgreSQL key-value repository.
func NewKVRepo(db *DB) *KVRepo {
	return &KVRepo{db: db.DB}
}

// Put upserts a value.
func (r *KVRepo) Put(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return storage.ErrInvalidKey
	}
	query := `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

// Get returns the value stored at key.
func (r *KVRepo) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.GetContext(ctx, &value, `SELECT value FROM kv_store WHERE key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, nil
}

// Delete removes a key.
func (r *KVRepo) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM kv_store WHERE key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// List returns keys with the given prefix in byte order.
func (r *KVRepo) List(ctx context.Context, prefix string) ([]string, error) {
	query := `
		SELECT key
		FROM kv_store
		WHERE starts_with(key, $1)
		ORDER BY key COLLATE "C"
	`
	var keys []string
	if err := r.db.SelectContext(ctx, &keys, query, prefix); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}
	return keys, nil
}

// Count returns the number of stored keys.
func (r *KVRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM kv_store`); err != nil {
		return 0, fmt.Errorf("failed to count keys: %w", err)
	}
	return count, nil
}

// Ping checks the database behind the repository.
func (r *KVRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
