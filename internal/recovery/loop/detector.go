package loop

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/supervisor/internal/core/domain"
	"github.com/vietddude/supervisor/internal/recovery/canonical"
	"github.com/vietddude/supervisor/internal/recovery/metrics"
)

const (
	DefaultWindowSize = 10
	DefaultThreshold  = 3
)

// Config configures a Detector.
type Config struct {
	WindowSize int
	Threshold  int
	Logger     *slog.Logger
	Clock      func() time.Time
}

// Report describes a detected loop.
type Report struct {
	LoopDetected bool            `json:"loop_detected"`
	Severity     domain.Severity `json:"severity"`
	Repetitions  int             `json:"repetitions"`
	StateHash    string          `json:"state_hash"`
	AgentID      string          `json:"agent_id"`
	TaskID       string          `json:"task_id"`
	Context      map[string]any  `json:"context,omitempty"`
}

// Pause records why an agent was paused.
type Pause struct {
	Reason   string    `json:"reason"`
	PausedAt time.Time `json:"paused_at"`
}

// Detector keeps a sliding window of execution fingerprints shared by all
// agents and reports when one agent keeps returning to the same state.
type Detector struct {
	mu         sync.Mutex
	windowSize int
	threshold  int
	window     []domain.Fingerprint // FIFO, oldest first
	paused     map[string]Pause

	logger *slog.Logger
	now    func() time.Time
}

// NewDetector creates a loop detector.
func NewDetector(cfg Config) *Detector {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = DefaultWindowSize
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Detector{
		windowSize: cfg.WindowSize,
		threshold:  cfg.Threshold,
		window:     make([]domain.Fingerprint, 0, cfg.WindowSize),
		paused:     make(map[string]Pause),
		logger:     cfg.Logger,
		now:        cfg.Clock,
	}
}

// RecordExecutionPoint fingerprints one execution point. A nil report means
// no loop was detected.
func (d *Detector) RecordExecutionPoint(
	agentID, taskID string,
	state, output any,
	ctx map[string]any,
) (*Report, error) {
	stateHash, err := canonical.Hash(state)
	if err != nil {
		return nil, domain.NewError(domain.ErrorKindValidation, "loop.record", fmt.Errorf("state: %w", err))
	}
	outputHash, err := canonical.Hash(output)
	if err != nil {
		return nil, domain.NewError(domain.ErrorKindValidation, "loop.record", fmt.Errorf("output: %w", err))
	}

	fp := domain.Fingerprint{
		AgentID:    agentID,
		TaskID:     taskID,
		StateHash:  stateHash,
		OutputHash: outputHash,
		Timestamp:  d.now(),
	}

	d.mu.Lock()
	d.push(fp)
	repetitions := 0
	for _, f := range d.window {
		if f.AgentID == agentID && f.StateHash == stateHash {
			repetitions++
		}
	}
	d.mu.Unlock()

	if repetitions < d.threshold {
		return nil, nil
	}

	metrics.LoopsDetected.WithLabelValues(string(domain.SeverityHigh)).Inc()
	d.logger.Warn("Execution loop detected",
		"agent", agentID,
		"task", taskID,
		"repetitions", repetitions,
		"state_hash", stateHash,
	)

	return &Report{
		LoopDetected: true,
		Severity:     domain.SeverityHigh,
		Repetitions:  repetitions,
		StateHash:    stateHash,
		AgentID:      agentID,
		TaskID:       taskID,
		Context:      domain.CopyMap(ctx),
	}, nil
}

// push appends to the window, dropping the oldest entry when full.
// Must be called with mu held.
func (d *Detector) push(fp domain.Fingerprint) {
	if len(d.window) >= d.windowSize {
		copy(d.window, d.window[1:])
		d.window[len(d.window)-1] = fp
	} else {
		d.window = append(d.window, fp)
	}
}

// Window returns a copy of the current fingerprints, oldest first.
func (d *Detector) Window() []domain.Fingerprint {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.Fingerprint, len(d.window))
	copy(out, d.window)
	return out
}

// PauseAgent marks an agent as paused. Pausing again overwrites the reason.
func (d *Detector) PauseAgent(agentID, reason string) {
	d.mu.Lock()
	d.paused[agentID] = Pause{Reason: reason, PausedAt: d.now()}
	n := len(d.paused)
	d.mu.Unlock()

	metrics.PausedAgents.Set(float64(n))
	d.logger.Info("Agent paused", "agent", agentID, "reason", reason)
}

// ResumeAgent clears a pause. It reports whether the agent was paused.
func (d *Detector) ResumeAgent(agentID string) bool {
	d.mu.Lock()
	_, ok := d.paused[agentID]
	delete(d.paused, agentID)
	n := len(d.paused)
	d.mu.Unlock()

	metrics.PausedAgents.Set(float64(n))
	if ok {
		d.logger.Info("Agent resumed", "agent", agentID)
	}
	return ok
}

// IsPaused reports whether agentID is paused.
func (d *Detector) IsPaused(agentID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.paused[agentID]
	return ok
}

// PausedAgents returns a copy of the paused-agents set.
func (d *Detector) PausedAgents() map[string]Pause {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]Pause, len(d.paused))
	for k, v := range d.paused {
		out[k] = v
	}
	return out
}

// Reset clears the window and every pause.
func (d *Detector) Reset() {
	d.mu.Lock()
	d.window = d.window[:0]
	d.paused = make(map[string]Pause)
	d.mu.Unlock()

	metrics.PausedAgents.Set(0)
}
