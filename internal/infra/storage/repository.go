package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when a key doesn't exist
	ErrNotFound = errors.New("key not found")

	// ErrInvalidKey is returned for empty keys
	ErrInvalidKey = errors.New("invalid key")
)

// Key namespaces used by the recovery components.
const (
	NamespaceSnapshots = "snapshots/"
	NamespaceHistory   = "history/"
	NamespaceTickets   = "tickets/"
)

// Backend is the durable key-value store the recovery components persist to.
type Backend interface {
	// Put creates or replaces the value at key
	Put(ctx context.Context, key string, value []byte) error

	// Get returns the value at key or ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error

	// List returns all keys starting with prefix, sorted ascending
	List(ctx context.Context, prefix string) ([]string, error)
}

// Closer is implemented by backends holding connections.
type Closer interface {
	Close() error
}

// Pinger is implemented by backends that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Counter is implemented by backends that can count every stored key.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// namespaced prefixes every key of an underlying backend.
type namespaced struct {
	prefix string
	inner  Backend
}

// Namespace returns a view of b where every key is stored under prefix.
// Keys returned by List have the prefix stripped.
func Namespace(b Backend, prefix string) Backend {
	if n, ok := b.(*namespaced); ok {
		return &namespaced{prefix: n.prefix + prefix, inner: n.inner}
	}
	return &namespaced{prefix: prefix, inner: b}
}

func (n *namespaced) Put(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return ErrInvalidKey
	}
	return n.inner.Put(ctx, n.prefix+key, value)
}

func (n *namespaced) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	return n.inner.Get(ctx, n.prefix+key)
}

func (n *namespaced) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	return n.inner.Delete(ctx, n.prefix+key)
}

func (n *namespaced) List(ctx context.Context, prefix string) ([]string, error) {
	keys, err := n.inner.List(ctx, n.prefix+prefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, n.prefix))
	}
	return out, nil
}

// FilterPrefix returns the sorted subset of keys starting with prefix.
func FilterPrefix(keys []string, prefix string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
