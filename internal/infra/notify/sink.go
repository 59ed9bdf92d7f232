package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/vietddude/supervisor/internal/core/domain"
)

// Notification is what a sink receives when an incident is escalated.
type Notification struct {
	TicketID  string          `json:"ticket_id"`
	Priority  domain.Priority `json:"priority"`
	Failure   domain.Failure  `json:"failure"`
	Context   map[string]any  `json:"context,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Sink delivers escalation notifications to an external channel.
type Sink interface {
	Notify(ctx context.Context, n Notification) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, n Notification) error

func (f SinkFunc) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// LogSink writes notifications to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink that logs at warn level.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(ctx context.Context, n Notification) error {
	s.logger.WarnContext(ctx, "Incident escalated",
		"ticket", n.TicketID,
		"priority", n.Priority,
		"incident", n.Failure.IncidentID,
		"kind", n.Failure.Kind,
		"message", n.Failure.Message,
	)
	return nil
}

// MultiSink fans a notification out to every sink. All sinks are attempted;
// failures are joined.
type MultiSink []Sink

func (m MultiSink) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every notification.
var Discard Sink = SinkFunc(func(context.Context, Notification) error { return nil })
