package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/vietddude/supervisor/internal/infra/storage"
)

func TestMemoryStorage_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	if err := s.Put(ctx, "a/1", []byte("one")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := s.Get(ctx, "a/1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "one" {
		t.Errorf("expected one, got %s", got)
	}

	// Mutating the returned slice must not change the stored value
	got[0] = 'X'
	again, _ := s.Get(ctx, "a/1")
	if string(again) != "one" {
		t.Errorf("stored value was aliased: %s", again)
	}

	if err := s.Delete(ctx, "a/1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, "a/1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// Deleting twice is fine
	if err := s.Delete(ctx, "a/1"); err != nil {
		t.Errorf("second Delete failed: %v", err)
	}
}

func TestMemoryStorage_List(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	for _, k := range []string{"b/2", "a/2", "a/1", "c"} {
		_ = s.Put(ctx, k, []byte(k))
	}

	keys, err := s.List(ctx, "a/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(keys) != 2 || keys[0] != "a/1" || keys[1] != "a/2" {
		t.Errorf("unexpected keys: %v", keys)
	}

	all, _ := s.List(ctx, "")
	if len(all) != 4 {
		t.Errorf("expected 4 keys, got %d", len(all))
	}
}

func TestNamespace(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	snaps := storage.Namespace(s, storage.NamespaceSnapshots)
	tickets := storage.Namespace(s, storage.NamespaceTickets)

	_ = snaps.Put(ctx, "x", []byte("snap"))
	_ = tickets.Put(ctx, "x", []byte("ticket"))

	if v, _ := snaps.Get(ctx, "x"); string(v) != "snap" {
		t.Errorf("expected snap, got %s", v)
	}
	if v, _ := tickets.Get(ctx, "x"); string(v) != "ticket" {
		t.Errorf("expected ticket, got %s", v)
	}
	if v, _ := s.Get(ctx, "snapshots/x"); string(v) != "snap" {
		t.Errorf("expected raw key snapshots/x, got %s", v)
	}

	keys, _ := snaps.List(ctx, "")
	if len(keys) != 1 || keys[0] != "x" {
		t.Errorf("expected [x], got %v", keys)
	}

	if err := snaps.Put(ctx, "", nil); !errors.Is(err, storage.ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
}
