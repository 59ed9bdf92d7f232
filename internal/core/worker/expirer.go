package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/vietddude/supervisor/internal/core/domain"
	"github.com/vietddude/supervisor/internal/recovery/escalation"
)

// TicketDesk is the part of the escalation desk the expirer needs.
type TicketDesk interface {
	List(ctx context.Context, status domain.TicketStatus) []*domain.Ticket
	Resolve(ctx context.Context, ticketID, resolution string) (*domain.Ticket, error)
}

// Expirer resolves open tickets nobody acted on within the configured age.
type Expirer struct {
	desk   TicketDesk
	maxAge time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewExpirer creates a new Expirer worker. A non-positive maxAge disables it.
func NewExpirer(desk TicketDesk, maxAge time.Duration, logger *slog.Logger) *Expirer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Expirer{
		desk:   desk,
		maxAge: maxAge,
		logger: logger,
		now:    time.Now,
	}
}

// Enabled reports whether the worker has anything to do.
func (e *Expirer) Enabled() bool {
	return e.maxAge > 0
}

// Start runs the expiry loop until ctx is done.
func (e *Expirer) Start(ctx context.Context) {
	if !e.Enabled() {
		return // Auto-resolution disabled
	}

	// Check at 10% of the max age, bounded to [1m, 1h]
	interval := min(e.maxAge/10, 1*time.Hour)
	interval = max(interval, 1*time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial sweep
	e.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Sweep(ctx)
		}
	}
}

// Sweep resolves every open ticket older than maxAge and returns how many
// were closed.
func (e *Expirer) Sweep(ctx context.Context) int {
	threshold := e.now().Add(-e.maxAge)
	resolved := 0

	for _, t := range e.desk.List(ctx, domain.TicketStatusOpen) {
		if !t.CreatedAt.Before(threshold) {
			continue
		}
		if _, err := e.desk.Resolve(ctx, t.ID, escalation.ResolutionAutoTimeout); err != nil {
			// Resolved concurrently by an operator
			if errors.Is(err, escalation.ErrInvalidTransition) {
				continue
			}
			e.logger.Error("Failed to auto-resolve ticket", "ticket", t.ID, "error", err)
			continue
		}
		resolved++
	}

	if resolved > 0 {
		e.logger.Info("Auto-resolved stale tickets", "count", resolved, "max_age", e.maxAge)
	}
	return resolved
}
