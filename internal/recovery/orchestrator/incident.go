package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/supervisor/internal/core/domain"
	"github.com/vietddude/supervisor/internal/recovery/history"
	"github.com/vietddude/supervisor/internal/recovery/metrics"
)

// incident tracks one HandleError call. It is not shared between goroutines.
type incident struct {
	failure     domain.Failure
	historyID   string
	state       State
	transitions []Transition

	// histCtx outlives the caller's cancellation so the record stays complete.
	histCtx context.Context
	ledger  *history.Ledger
	logger  *slog.Logger
	now     func() time.Time

	engineErrors []error
}

// transition moves the incident to a new state and records it.
func (inc *incident) transition(to State, reason string, data map[string]any) error {
	from := inc.state
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	inc.state = to
	inc.transitions = append(inc.transitions, Transition{
		From:      from,
		To:        to,
		Reason:    reason,
		Timestamp: inc.now(),
	})

	if data == nil {
		data = map[string]any{}
	}
	if reason != "" {
		data["reason"] = reason
	}
	inc.record(string(to), data, map[string]any{"from": string(from)})
	return nil
}

// record appends an event to the incident history. Write failures are kept
// as engine errors and never stop the policy.
func (inc *incident) record(eventType string, data, metadata map[string]any) {
	if inc.historyID == "" {
		return
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["incident_id"] = inc.failure.IncidentID

	if err := inc.ledger.AddEntry(inc.histCtx, inc.historyID, eventType, data, metadata); err != nil {
		inc.engineError("history", err)
	}
}

func (inc *incident) engineError(component string, err error) {
	inc.engineErrors = append(inc.engineErrors, fmt.Errorf("%s: %w", component, err))
	metrics.EngineErrors.WithLabelValues(component).Inc()
	inc.logger.Error("Recovery engine error",
		"incident", inc.failure.IncidentID,
		"component", component,
		"error", err,
	)
}
