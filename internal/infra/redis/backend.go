package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/supervisor/internal/infra/storage"
)

// Backend implements storage.Backend on Redis. Values live under plain keys
// and a zero-score sorted set indexes them for ordered prefix listing.
type Backend struct {
	client *Client
}

// NewBackend creates a Redis-backed key-value store.
func NewBackend(client *Client) *Backend {
	return &Backend{client: client}
}

// Put stores a value and indexes its key.
func (b *Backend) Put(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return storage.ErrInvalidKey
	}
	_, err := b.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, b.client.valueKey(key), value, 0)
		pipe.ZAdd(ctx, b.client.indexKey(), redis.Z{Score: 0, Member: key})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

// Get returns the value stored at key.
func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := b.client.rdb.Get(ctx, b.client.valueKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return data, nil
}

// Delete removes the value and its index entry.
func (b *Backend) Delete(ctx context.Context, key string) error {
	_, err := b.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, b.client.indexKey(), key)
		pipe.Del(ctx, b.client.valueKey(key))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// List returns indexed keys with the given prefix in byte order.
func (b *Backend) List(ctx context.Context, prefix string) ([]string, error) {
	minLex, maxLex := lexRange(prefix)
	keys, err := b.client.rdb.ZRangeByLex(ctx, b.client.indexKey(), &redis.ZRangeBy{
		Min: minLex,
		Max: maxLex,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("zrangebylex failed: %w", err)
	}
	return storage.FilterPrefix(keys, prefix), nil
}

// Ping checks the connection.
func (b *Backend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx)
}
