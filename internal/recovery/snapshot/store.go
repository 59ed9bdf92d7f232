package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/supervisor/internal/core/domain"
	"github.com/vietddude/supervisor/internal/infra/storage"
	"github.com/vietddude/supervisor/internal/recovery/canonical"
	"github.com/vietddude/supervisor/internal/recovery/metrics"
)

// DefaultMaxSnapshots is the store capacity when none is configured.
const DefaultMaxSnapshots = 50

// ErrSnapshotNotFound is returned when a snapshot id is not in the store.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Options configures a Store.
type Options struct {
	MaxSnapshots int
	Logger       *slog.Logger
	Clock        func() time.Time
	NewID        func() string
}

// Filter narrows List results. Empty fields match everything.
type Filter struct {
	AgentID string
	TaskID  string
	Limit   int // <= 0 means unlimited
}

// RollbackResult is the state restored from a snapshot.
type RollbackResult struct {
	SnapshotID string          `json:"snapshot_id"`
	State      json.RawMessage `json:"state"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Decode unmarshals the restored state into v.
func (r *RollbackResult) Decode(v any) error {
	return json.Unmarshal(r.State, v)
}

// Store is a capacity-bounded snapshot store. The in-memory index mirrors
// the durable records one to one.
type Store struct {
	mu      sync.RWMutex
	backend storage.Backend
	index   map[string]*domain.Snapshot
	max     int
	last    time.Time

	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// Open creates a store over the snapshots namespace of backend and rebuilds
// its index from the records already there.
func Open(ctx context.Context, backend storage.Backend, opts Options) (*Store, error) {
	if opts.MaxSnapshots <= 0 {
		opts.MaxSnapshots = DefaultMaxSnapshots
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}

	s := &Store{
		backend: storage.Namespace(backend, storage.NamespaceSnapshots),
		index:   make(map[string]*domain.Snapshot),
		max:     opts.MaxSnapshots,
		logger:  opts.Logger,
		now:     opts.Clock,
		newID:   opts.NewID,
	}

	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	keys, err := s.backend.List(ctx, "")
	if err != nil {
		return domain.NewError(domain.ErrorKindSystem, "snapshot.load", err)
	}

	for _, key := range keys {
		data, err := s.backend.Get(ctx, key)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return domain.NewError(domain.ErrorKindSystem, "snapshot.load", err)
		}

		var snap domain.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil || snap.ID != key {
			s.logger.Warn("Skipping unreadable snapshot record", "key", key, "error", err)
			continue
		}
		s.index[snap.ID] = &snap
		if snap.CreatedAt.After(s.last) {
			s.last = snap.CreatedAt
		}
	}

	for len(s.index) > s.max {
		if err := s.evictOldest(ctx); err != nil {
			return err
		}
	}

	metrics.SnapshotsResident.Set(float64(len(s.index)))
	s.logger.Debug("Snapshot index rebuilt", "count", len(s.index), "max", s.max)
	return nil
}

// Create captures state and returns the new snapshot id. The new record is
// written first; only then is the oldest snapshot evicted if the store is
// over capacity. A failed Create leaves existing snapshots untouched.
func (s *Store) Create(
	ctx context.Context,
	state any,
	tags []string,
	metadata map[string]any,
	agentID, taskID string,
) (string, error) {
	encoded, err := canonical.Encode(state)
	if err != nil {
		return "", domain.NewError(domain.ErrorKindValidation, "snapshot.create", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &domain.Snapshot{
		ID:        s.newID(),
		AgentID:   agentID,
		TaskID:    taskID,
		CreatedAt: s.nextTimestamp(),
		State:     encoded,
		Tags:      normalizeTags(tags),
		Metadata:  domain.CopyMap(metadata),
	}

	record, err := json.Marshal(snap)
	if err != nil {
		return "", domain.NewError(domain.ErrorKindValidation, "snapshot.create", err)
	}

	if err := s.backend.Put(ctx, snap.ID, record); err != nil {
		return "", domain.NewError(domain.ErrorKindSystem, "snapshot.create", err)
	}

	if len(s.index) >= s.max {
		if err := s.evictOldest(ctx); err != nil {
			if derr := s.backend.Delete(ctx, snap.ID); derr != nil {
				s.logger.Warn("Failed to remove unindexed snapshot", "snapshot", snap.ID, "error", derr)
			}
			return "", err
		}
	}

	s.index[snap.ID] = snap
	s.last = snap.CreatedAt
	metrics.SnapshotsResident.Set(float64(len(s.index)))

	return snap.ID, nil
}

// evictOldest removes the oldest snapshot from storage, then from the index.
// Must be called with mu held.
func (s *Store) evictOldest(ctx context.Context) error {
	var oldest *domain.Snapshot
	for _, snap := range s.index {
		if oldest == nil || snap.OlderThan(oldest) {
			oldest = snap
		}
	}
	if oldest == nil {
		return nil
	}

	if err := s.backend.Delete(ctx, oldest.ID); err != nil {
		return domain.NewError(domain.ErrorKindSystem, "snapshot.evict", err)
	}
	delete(s.index, oldest.ID)
	metrics.SnapshotsEvicted.Inc()

	s.logger.Debug("Evicted snapshot", "snapshot", oldest.ID, "agent", oldest.AgentID)
	return nil
}

// nextTimestamp keeps creation times strictly increasing within the store.
func (s *Store) nextTimestamp() time.Time {
	now := s.now()
	if !now.After(s.last) {
		now = s.last.Add(time.Nanosecond)
	}
	return now
}

// Rollback returns the state captured by snapshot id. It does not modify the store.
func (s *Store) Rollback(ctx context.Context, id string) (*RollbackResult, error) {
	s.mu.RLock()
	snap, ok := s.index[id]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}

	return &RollbackResult{
		SnapshotID: snap.ID,
		State:      append(json.RawMessage(nil), snap.State...),
		Timestamp:  s.now(),
	}, nil
}

// Get returns a copy of snapshot id.
func (s *Store) Get(ctx context.Context, id string) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	return cloneSnapshot(snap), nil
}

// List returns matching snapshots, newest first.
func (s *Store) List(ctx context.Context, f Filter) []*domain.Snapshot {
	s.mu.RLock()
	out := make([]*domain.Snapshot, 0, len(s.index))
	for _, snap := range s.index {
		if f.AgentID != "" && snap.AgentID != f.AgentID {
			continue
		}
		if f.TaskID != "" && snap.TaskID != f.TaskID {
			continue
		}
		out = append(out, cloneSnapshot(snap))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[j].OlderThan(out[i])
	})

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// Count returns the number of resident snapshots.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}

// Capacity returns the configured maximum.
func (s *Store) Capacity() int {
	return s.max
}

func cloneSnapshot(snap *domain.Snapshot) *domain.Snapshot {
	out := *snap
	out.State = append(json.RawMessage(nil), snap.State...)
	out.Tags = append([]string(nil), snap.Tags...)
	out.Metadata = domain.CopyMap(snap.Metadata)
	return &out
}

func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
