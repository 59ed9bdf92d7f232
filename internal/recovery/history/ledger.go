package history

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
)

// ErrHistoryNotFound is returned by Get for an unknown id.
var ErrHistoryNotFound = errors.New("history not found")

// Options configures a Ledger.
type Options struct {
	Logger *slog.Logger
	Clock  func() time.Time
	NewID  func() string
}

type record struct {
	mu      sync.Mutex
	history *domain.History
}

// Ledger is the append-only store of incident histories. Each history is a
// single JSON document rewritten on every append.
type Ledger struct {
	mu      sync.RWMutex
	records map[string]*record
	backend storage.Backend

	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewLedger creates a ledger over the history namespace of backend.
func NewLedger(backend storage.Backend, opts Options) *Ledger {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}
	return &Ledger{
		records: make(map[string]*record),
		backend: storage.Namespace(backend, storage.NamespaceHistory),
		logger:  opts.Logger,
		now:     opts.Clock,
		newID:   opts.NewID,
	}
}

// Create starts a new history and persists it.
func (l *Ledger) Create(ctx context.Context, agentID, taskID string, initialData map[string]any) (string, error) {
	h := &domain.History{
		ID:          l.newID(),
		AgentID:     agentID,
		TaskID:      taskID,
		CreatedAt:   l.now(),
		InitialData: domain.CopyMap(initialData),
		Entries:     []domain.HistoryEntry{},
	}

	if err := l.persist(ctx, h); err != nil {
		return "", err
	}

	l.mu.Lock()
	l.records[h.ID] = &record{history: h}
	l.mu.Unlock()

	return h.ID, nil
}

// AddEntry appends an event. An unknown id is ignored. If the durable write
// fails the entry is dropped and a SystemError is returned.
func (l *Ledger) AddEntry(
	ctx context.Context,
	historyID, eventType string,
	data, metadata map[string]any,
) error {
	l.mu.RLock()
	rec, ok := l.records[historyID]
	l.mu.RUnlock()
	if !ok {
		return nil
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	ts := l.now()
	if last := rec.history.LastTimestamp(); !ts.After(last) {
		ts = last.Add(time.Nanosecond)
	}

	rec.history.Entries = append(rec.history.Entries, domain.HistoryEntry{
		Timestamp: ts,
		EventType: eventType,
		Data:      domain.CopyMap(data),
		Metadata:  domain.CopyMap(metadata),
	})

	if err := l.persist(ctx, rec.history); err != nil {
		rec.history.Entries = rec.history.Entries[:len(rec.history.Entries)-1]
		return err
	}
	return nil
}

func (l *Ledger) persist(ctx context.Context, h *domain.History) error {
	data, err := json.Marshal(h)
	if err != nil {
		return domain.NewError(domain.ErrorKindValidation, "history.persist", err)
	}
	if err := l.backend.Put(ctx, h.ID, data); err != nil {
		return domain.NewError(domain.ErrorKindSystem, "history.persist", err)
	}
	return nil
}

// Get returns a copy of the history, reading durable storage when it is not
// held in memory.
func (l *Ledger) Get(ctx context.Context, historyID string) (*domain.History, error) {
	l.mu.RLock()
	rec, ok := l.records[historyID]
	l.mu.RUnlock()

	if ok {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return rec.history.Clone(), nil
	}

	if historyID == "" {
		return nil, ErrHistoryNotFound
	}
	data, err := l.backend.Get(ctx, historyID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrHistoryNotFound, historyID)
	}
	if err != nil {
		return nil, domain.NewError(domain.ErrorKindSystem, "history.get", err)
	}

	var h domain.History
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, domain.NewError(domain.ErrorKindSystem, "history.get", err)
	}
	return &h, nil
}

// List returns every stored history for agentID (all agents when empty),
// oldest first.
func (l *Ledger) List(ctx context.Context, agentID string) ([]*domain.History, error) {
	keys, err := l.backend.List(ctx, "")
	if err != nil {
		return nil, domain.NewError(domain.ErrorKindSystem, "history.list", err)
	}

	out := make([]*domain.History, 0, len(keys))
	for _, key := range keys {
		h, err := l.Get(ctx, key)
		if err != nil {
			if errors.Is(err, ErrHistoryNotFound) {
				continue
			}
			l.logger.Warn("Skipping unreadable history", "history", key, "error", err)
			continue
		}
		if agentID != "" && h.AgentID != agentID {
			continue
		}
		out = append(out, h)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Release drops a history from memory. It stays readable through Get, but
// further appends to it are ignored.
func (l *Ledger) Release(historyID string) {
	l.mu.Lock()
	delete(l.records, historyID)
	l.mu.Unlock()
}

// Active returns the number of histories held in memory.
func (l *Ledger) Active() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}
