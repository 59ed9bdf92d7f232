package escalation

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
	"github.com/vietddude/supervisor/internal/recovery/metrics"
)

// ResolutionAutoTimeout is recorded on tickets closed by the expiry worker.
const ResolutionAutoTimeout = "auto-timeout"

var (
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrInvalidTransition = errors.New("invalid ticket transition")
)

// PriorityFor maps a failure kind to ticket priority.
func PriorityFor(kind domain.ErrorKind) domain.Priority {
	switch kind {
	case domain.ErrorKindSystem:
		return domain.PriorityHigh
	case domain.ErrorKindTimeout:
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}

// Options configures a Desk.
type Options struct {
	Logger *slog.Logger
	Clock  func() time.Time
	NewID  func() string
}

// Desk creates and resolves escalation tickets. It does not deliver them;
// the caller decides who is notified.
type Desk struct {
	mu      sync.RWMutex
	tickets map[string]*domain.Ticket
	backend storage.Backend

	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// OpenDesk creates a desk over the tickets namespace of backend and loads
// the tickets already stored there.
func OpenDesk(ctx context.Context, backend storage.Backend, opts Options) (*Desk, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}

	d := &Desk{
		tickets: make(map[string]*domain.Ticket),
		backend: storage.Namespace(backend, storage.NamespaceTickets),
		logger:  opts.Logger,
		now:     opts.Clock,
		newID:   opts.NewID,
	}

	keys, err := d.backend.List(ctx, "")
	if err != nil {
		return nil, domain.NewError(domain.ErrorKindSystem, "escalation.load", err)
	}
	for _, key := range keys {
		data, err := d.backend.Get(ctx, key)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, domain.NewError(domain.ErrorKindSystem, "escalation.load", err)
		}
		var t domain.Ticket
		if err := json.Unmarshal(data, &t); err != nil || t.ID != key {
			d.logger.Warn("Skipping unreadable ticket", "key", key, "error", err)
			continue
		}
		d.tickets[t.ID] = &t
	}

	return d, nil
}

// Escalate opens a new ticket for failure. Every call creates a new ticket.
func (d *Desk) Escalate(ctx context.Context, failure domain.Failure, incidentCtx map[string]any) (string, error) {
	t := &domain.Ticket{
		ID:        d.newID(),
		CreatedAt: d.now(),
		Failure:   failure.Clone(),
		Context:   domain.CopyMap(incidentCtx),
		Status:    domain.TicketStatusOpen,
		Priority:  PriorityFor(failure.Kind),
	}

	if err := d.persist(ctx, t); err != nil {
		return "", err
	}

	d.mu.Lock()
	d.tickets[t.ID] = t
	d.mu.Unlock()

	metrics.TicketsOpened.WithLabelValues(string(t.Priority)).Inc()
	d.logger.Info("Ticket opened",
		"ticket", t.ID,
		"priority", t.Priority,
		"incident", failure.IncidentID,
		"kind", failure.Kind,
	)
	return t.ID, nil
}

// Resolve closes an open ticket.
func (d *Desk) Resolve(ctx context.Context, ticketID, resolution string) (*domain.Ticket, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.tickets[ticketID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTicketNotFound, ticketID)
	}
	if t.Status != domain.TicketStatusOpen {
		return nil, fmt.Errorf("%w: %s is %s", ErrInvalidTransition, ticketID, t.Status)
	}

	updated := t.Clone()
	at := d.now()
	updated.Status = domain.TicketStatusResolved
	updated.ResolvedAt = &at
	updated.Resolution = resolution

	if err := d.persist(ctx, updated); err != nil {
		return nil, err
	}
	d.tickets[ticketID] = updated

	source := "manual"
	if resolution == ResolutionAutoTimeout {
		source = "auto"
	}
	metrics.TicketsResolved.WithLabelValues(source).Inc()
	d.logger.Info("Ticket resolved", "ticket", ticketID, "resolution", resolution)

	return updated.Clone(), nil
}

func (d *Desk) persist(ctx context.Context, t *domain.Ticket) error {
	data, err := json.Marshal(t)
	if err != nil {
		return domain.NewError(domain.ErrorKindValidation, "escalation.persist", err)
	}
	if err := d.backend.Put(ctx, t.ID, data); err != nil {
		return domain.NewError(domain.ErrorKindSystem, "escalation.persist", err)
	}
	return nil
}

// Get returns a copy of a ticket.
func (d *Desk) Get(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	t, ok := d.tickets[ticketID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTicketNotFound, ticketID)
	}
	return t.Clone(), nil
}

// List returns tickets with the given status (all when empty), oldest first.
func (d *Desk) List(ctx context.Context, status domain.TicketStatus) []*domain.Ticket {
	d.mu.RLock()
	out := make([]*domain.Ticket, 0, len(d.tickets))
	for _, t := range d.tickets {
		if status != "" && t.Status != status {
			continue
		}
		out = append(out, t.Clone())
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// OpenCount returns the number of open tickets.
func (d *Desk) OpenCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := 0
	for _, t := range d.tickets {
		if t.Status == domain.TicketStatusOpen {
			n++
		}
	}
	return n
}
