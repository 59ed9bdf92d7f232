package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vietddude/supervisor/internal/core/domain"
	"github.com/vietddude/supervisor/internal/infra/notify"
	"github.com/vietddude/supervisor/internal/recovery/classify"
	"github.com/vietddude/supervisor/internal/recovery/escalation"
	"github.com/vietddude/supervisor/internal/recovery/history"
	"github.com/vietddude/supervisor/internal/recovery/loop"
	"github.com/vietddude/supervisor/internal/recovery/metrics"
	"github.com/vietddude/supervisor/internal/recovery/retry"
	"github.com/vietddude/supervisor/internal/recovery/snapshot"
)

// Event types recorded in addition to state transitions.
const (
	EventSnapshotCreated = "snapshot_created"
	EventLoopDetected    = "loop_detected"
	EventRetryExhausted  = "retry_exhausted"
	EventRollbackFailed  = "rollback_failed"
	EventNotifyFailed    = "notify_failed"
)

// TagPreIncident marks snapshots taken when an incident is reported.
const TagPreIncident = "pre-incident"

// RecoveryFunc re-runs the failed work. After a rollback the restored state
// is available through RestoredState(ctx).
type RecoveryFunc func(ctx context.Context) (any, error)

// Request describes a reported failure.
type Request struct {
	Err     error
	Message string           // defaults to Err.Error()
	Kind    domain.ErrorKind // skips classification when set to a valid kind

	AgentID string
	TaskID  string
	Context map[string]any

	// StateData is snapshotted before any recovery step. Nil means absent.
	StateData any
	// Output is fingerprinted together with StateData for loop detection.
	Output any

	Recover RecoveryFunc
}

// Result is the structured answer to every HandleError call.
type Result struct {
	Success      bool             `json:"success"`
	Outcome      domain.Outcome   `json:"outcome"`
	IncidentID   string           `json:"incident_id"`
	HistoryID    string           `json:"history_id,omitempty"`
	SnapshotID   string           `json:"snapshot_id,omitempty"`
	TicketID     string           `json:"ticket_id,omitempty"`
	Kind         domain.ErrorKind `json:"kind"`
	Value        any              `json:"value,omitempty"`
	Attempts     int              `json:"attempts"`
	LoopDetected bool             `json:"loop_detected"`
	Timestamp    time.Time        `json:"timestamp"`
	EngineErrors []error          `json:"-"`
}

// Config holds the recovery policy knobs.
type Config struct {
	MaxRetries           int
	RollbackCandidates   int
	RollbackAttempts     int
	LoopDetectionEnabled bool
	EscalationEnabled    bool
}

// DefaultConfig returns the default policy.
func DefaultConfig() Config {
	return Config{
		MaxRetries:           3,
		RollbackCandidates:   3,
		RollbackAttempts:     1,
		LoopDetectionEnabled: true,
		EscalationEnabled:    true,
	}
}

// Deps are the components the orchestrator drives. Loops, Desk and Notifier
// are optional.
type Deps struct {
	Snapshots  *snapshot.Store
	History    *history.Ledger
	Loops      *loop.Detector
	Desk       *escalation.Desk
	Retry      *retry.Controller
	Notifier   notify.Sink
	Classifier classify.Classifier
	Logger     *slog.Logger
	Clock      func() time.Time
}

// Orchestrator runs the recovery policy for reported failures.
type Orchestrator struct {
	cfg        Config
	snapshots  *snapshot.Store
	history    *history.Ledger
	loops      *loop.Detector
	desk       *escalation.Desk
	retry      *retry.Controller
	notifier   notify.Sink
	classifier classify.Classifier
	logger     *slog.Logger
	now        func() time.Time
	tracer     trace.Tracer
}

// New creates an orchestrator. Snapshots and History are required.
func New(deps Deps, cfg Config) (*Orchestrator, error) {
	if deps.Snapshots == nil || deps.History == nil {
		return nil, errors.New("orchestrator: snapshot store and history ledger are required")
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.RollbackCandidates < 1 {
		cfg.RollbackCandidates = 1
	}
	if cfg.RollbackAttempts < 1 {
		cfg.RollbackAttempts = 1
	}
	if deps.Retry == nil {
		deps.Retry = retry.NewController(nil)
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Discard
	}
	if deps.Classifier == nil {
		deps.Classifier = classify.Classify
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	return &Orchestrator{
		cfg:        cfg,
		snapshots:  deps.Snapshots,
		history:    deps.History,
		loops:      deps.Loops,
		desk:       deps.Desk,
		retry:      deps.Retry,
		notifier:   deps.Notifier,
		classifier: deps.Classifier,
		logger:     deps.Logger,
		now:        deps.Clock,
		tracer:     otel.Tracer("github.com/vietddude/supervisor/internal/recovery/orchestrator"),
	}, nil
}

// HandleError classifies a failure and drives it to Resolved, Escalated or
// Failed. It never panics and always returns a Result.
func (o *Orchestrator) HandleError(ctx context.Context, req Request) (res Result) {
	start := o.now()

	message := req.Message
	if message == "" && req.Err != nil {
		message = req.Err.Error()
	}
	kind := req.Kind
	if !kind.Valid() {
		cause := req.Err
		if cause == nil && message != "" {
			cause = errors.New(message)
		}
		kind = o.classifier(cause)
	}

	ctx, span := o.tracer.Start(ctx, "orchestrator.HandleError", trace.WithAttributes(
		attribute.String("agent.id", req.AgentID),
		attribute.String("task.id", req.TaskID),
		attribute.String("error.kind", string(kind)),
	))
	defer span.End()

	inc := &incident{
		failure: domain.NewFailure(uuid.New().String(), message, kind, req.Context, start),
		state:   domain.IncidentStateClassified,
		histCtx: context.WithoutCancel(ctx),
		ledger:  o.history,
		logger:  o.logger,
		now:     o.now,
	}

	defer func() {
		if r := recover(); r != nil {
			inc.engineError("orchestrator", fmt.Errorf("panic: %v", r))
			if CanTransition(inc.state, domain.IncidentStateFailed) {
				_ = inc.transition(domain.IncidentStateFailed, "internal error", nil)
			}
			res.Success = false
		}
		o.finish(inc, &res, start, span)
	}()

	res.IncidentID = inc.failure.IncidentID
	res.Kind = kind

	historyID, err := o.history.Create(inc.histCtx, req.AgentID, req.TaskID, map[string]any{
		"incident_id":   inc.failure.IncidentID,
		"error_message": message,
		"error_kind":    string(kind),
		"context":       inc.failure.ContextCopy(),
	})
	if err != nil {
		inc.engineError("history", err)
	}
	inc.historyID = historyID
	res.HistoryID = historyID
	inc.record(string(domain.IncidentStateClassified), map[string]any{
		"kind":    string(kind),
		"message": message,
	}, nil)

	if req.StateData != nil {
		res.SnapshotID = o.snapshotState(inc, req)
	}

	if o.loops != nil && o.cfg.LoopDetectionEnabled && req.StateData != nil {
		report, err := o.loops.RecordExecutionPoint(req.AgentID, req.TaskID, req.StateData, req.Output, req.Context)
		if err != nil {
			inc.engineError("loop", err)
		}
		if report != nil {
			res.LoopDetected = true
			o.loops.PauseAgent(req.AgentID, fmt.Sprintf("loop detected: %d repetitions", report.Repetitions))
			inc.record(EventLoopDetected, map[string]any{
				"repetitions": report.Repetitions,
				"state_hash":  report.StateHash,
				"severity":    string(report.Severity),
			}, nil)
			o.escalate(inc, &res, req)
			return res
		}
	}

	if kind.Retryable() && req.Recover != nil {
		if o.retryRecovery(ctx, inc, &res, req) {
			return res
		}
	}

	if o.rollbackRecovery(ctx, inc, &res, req) {
		return res
	}

	o.escalate(inc, &res, req)
	return res
}

func (o *Orchestrator) snapshotState(inc *incident, req Request) string {
	id, err := o.snapshots.Create(
		inc.histCtx,
		req.StateData,
		[]string{TagPreIncident, string(inc.failure.Kind)},
		map[string]any{"incident_id": inc.failure.IncidentID},
		req.AgentID,
		req.TaskID,
	)
	if err != nil {
		inc.engineError("snapshot", err)
		return ""
	}
	inc.record(EventSnapshotCreated, map[string]any{"snapshot_id": id}, nil)
	return id
}

// retryRecovery reports whether the incident was resolved.
func (o *Orchestrator) retryRecovery(ctx context.Context, inc *incident, res *Result, req Request) bool {
	_ = inc.transition(domain.IncidentStateRetrying, "", map[string]any{
		"max_retries": o.cfg.MaxRetries,
	})

	out := o.retry.Execute(ctx, retry.Op(req.Recover), o.cfg.MaxRetries)
	res.Attempts += out.AttemptsUsed

	failed := out.AttemptsUsed
	if out.Success {
		failed--
		metrics.RetryAttemptsTotal.WithLabelValues(string(inc.failure.Kind), "success").Inc()
	}
	metrics.RetryAttemptsTotal.WithLabelValues(string(inc.failure.Kind), "failure").Add(float64(failed))

	if out.Success {
		res.Success = true
		res.Value = out.Value
		_ = inc.transition(domain.IncidentStateResolved, "retry succeeded", map[string]any{
			"attempts": out.AttemptsUsed,
		})
		return true
	}

	delays := make([]string, len(out.Delays))
	for i, d := range out.Delays {
		delays[i] = d.String()
	}
	inc.record(EventRetryExhausted, map[string]any{
		"attempts": out.AttemptsUsed,
		"delays":   delays,
		"error":    errString(out.Err),
	}, nil)
	return false
}

// rollbackRecovery restores the newest snapshots for the agent and re-invokes
// the callback. It reports whether the incident was resolved.
func (o *Orchestrator) rollbackRecovery(ctx context.Context, inc *incident, res *Result, req Request) bool {
	candidates := o.snapshots.List(ctx, snapshot.Filter{
		AgentID: req.AgentID,
		Limit:   o.cfg.RollbackCandidates,
	})
	if len(candidates) == 0 {
		return false
	}

	attempts := o.cfg.RollbackAttempts
	if attempts > len(candidates) {
		attempts = len(candidates)
	}

	for _, candidate := range candidates[:attempts] {
		rb, err := o.snapshots.Rollback(ctx, candidate.ID)
		if err != nil {
			metrics.RollbacksTotal.WithLabelValues("unavailable").Inc()
			inc.record(EventRollbackFailed, map[string]any{
				"snapshot_id": candidate.ID,
				"error":       err.Error(),
			}, nil)
			continue
		}

		_ = inc.transition(domain.IncidentStateRolledBack, "", map[string]any{
			"snapshot_id": rb.SnapshotID,
		})

		if req.Recover == nil {
			metrics.RollbacksTotal.WithLabelValues("no_callback").Inc()
			return false
		}

		out := o.retry.Execute(withRestoredState(ctx, rb), retry.Op(req.Recover), 1)
		res.Attempts += out.AttemptsUsed
		if out.Success {
			metrics.RollbacksTotal.WithLabelValues("success").Inc()
			res.Success = true
			res.Value = out.Value
			_ = inc.transition(domain.IncidentStateResolved, "rollback succeeded", map[string]any{
				"snapshot_id": rb.SnapshotID,
			})
			return true
		}

		metrics.RollbacksTotal.WithLabelValues("failure").Inc()
		inc.record(EventRollbackFailed, map[string]any{
			"snapshot_id": rb.SnapshotID,
			"error":       errString(out.Err),
		}, nil)
	}
	return false
}

// escalate opens a ticket when a desk is configured, otherwise fails the incident.
func (o *Orchestrator) escalate(inc *incident, res *Result, req Request) {
	if o.desk == nil || !o.cfg.EscalationEnabled {
		_ = inc.transition(domain.IncidentStateFailed, "no escalation path", nil)
		return
	}

	ticketCtx := map[string]any{
		"agent_id":      req.AgentID,
		"task_id":       req.TaskID,
		"history_id":    inc.historyID,
		"loop_detected": res.LoopDetected,
		"attempts":      res.Attempts,
	}
	if res.SnapshotID != "" {
		ticketCtx["snapshot_id"] = res.SnapshotID
	}

	ticketID, err := o.desk.Escalate(inc.histCtx, inc.failure, ticketCtx)
	if err != nil {
		inc.engineError("escalation", err)
		_ = inc.transition(domain.IncidentStateFailed, "ticket could not be persisted", nil)
		return
	}

	res.TicketID = ticketID
	priority := escalation.PriorityFor(inc.failure.Kind)
	_ = inc.transition(domain.IncidentStateEscalated, "", map[string]any{
		"ticket_id": ticketID,
		"priority":  string(priority),
	})

	err = o.notifier.Notify(inc.histCtx, notify.Notification{
		TicketID:  ticketID,
		Priority:  priority,
		Failure:   inc.failure.Clone(),
		Context:   ticketCtx,
		CreatedAt: o.now(),
	})
	if err != nil {
		inc.engineError("notify", err)
		inc.record(EventNotifyFailed, map[string]any{
			"ticket_id": ticketID,
			"error":     err.Error(),
		}, nil)
	}
}

func (o *Orchestrator) finish(inc *incident, res *Result, start time.Time, span trace.Span) {
	res.Outcome = outcomeFor(inc.state)
	res.Success = inc.state == domain.IncidentStateResolved
	res.Timestamp = o.now()
	res.EngineErrors = inc.engineErrors

	if inc.historyID != "" {
		o.history.Release(inc.historyID)
	}

	metrics.IncidentsTotal.WithLabelValues(string(res.Kind), string(res.Outcome)).Inc()
	metrics.IncidentDuration.WithLabelValues(string(res.Outcome)).Observe(res.Timestamp.Sub(start).Seconds())

	span.SetAttributes(
		attribute.String("incident.id", res.IncidentID),
		attribute.String("incident.outcome", string(res.Outcome)),
		attribute.Int("incident.attempts", res.Attempts),
	)
	if res.Outcome == domain.OutcomeFailed {
		span.SetStatus(codes.Error, "incident failed")
	}

	o.logger.Info("Incident handled",
		"incident", res.IncidentID,
		"kind", res.Kind,
		"outcome", res.Outcome,
		"attempts", res.Attempts,
		"ticket", res.TicketID,
		"engine_errors", len(res.EngineErrors),
	)
}

// Config returns the active policy.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
