package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/supervisor/internal/recovery/metrics"
)

type instrumented struct {
	driver string
	inner  Backend
}

// Instrument records the latency of every operation on b under the driver label.
func Instrument(b Backend, driver string) Backend {
	return &instrumented{driver: driver, inner: b}
}

func (i *instrumented) observe(op string, start time.Time) {
	metrics.StorageOpDuration.WithLabelValues(i.driver, op).Observe(time.Since(start).Seconds())
}

func (i *instrumented) Put(ctx context.Context, key string, value []byte) error {
	defer i.observe("put", time.Now())
	return i.inner.Put(ctx, key, value)
}

func (i *instrumented) Get(ctx context.Context, key string) ([]byte, error) {
	defer i.observe("get", time.Now())
	return i.inner.Get(ctx, key)
}

func (i *instrumented) Delete(ctx context.Context, key string) error {
	defer i.observe("delete", time.Now())
	return i.inner.Delete(ctx, key)
}

func (i *instrumented) List(ctx context.Context, prefix string) ([]string, error) {
	defer i.observe("list", time.Now())
	return i.inner.List(ctx, prefix)
}

// Ping forwards to the wrapped backend when it supports it.
func (i *instrumented) Ping(ctx context.Context) error {
	if p, ok := i.inner.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close forwards to the wrapped backend when it supports it.
func (i *instrumented) Close() error {
	if c, ok := i.inner.(Closer); ok {
		return c.Close()
	}
	return nil
}

// Count forwards to the wrapped backend, or returns errors.ErrUnsupported.
func (i *instrumented) Count(ctx context.Context) (int, error) {
	if c, ok := i.inner.(Counter); ok {
		defer i.observe("count", time.Now())
		return c.Count(ctx)
	}
	return 0, errors.ErrUnsupported
}
