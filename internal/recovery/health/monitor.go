package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/supervisor/internal/recovery/loop"
)

// Thresholds for open escalation tickets.
const (
	degradedOpenTickets = 1
	criticalOpenTickets = 50
)

// TicketCounter reports open escalation tickets.
type TicketCounter interface {
	OpenCount() int
}

// PauseLister reports agents paused by loop detection.
type PauseLister interface {
	PausedAgents() map[string]loop.Pause
}

// SnapshotCounter reports snapshot store occupancy.
type SnapshotCounter interface {
	Count() int
	Capacity() int
}

// StoragePinger checks the durable backend.
type StoragePinger interface {
	Ping(ctx context.Context) error
}

// Monitor aggregates health status from the recovery components.
type Monitor struct {
	tickets   TicketCounter
	pauses    PauseLister
	snapshots SnapshotCounter
	storage   StoragePinger

	cacheFor   time.Duration
	lastCheck  time.Time
	lastReport *HealthReport
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor. Any component may be nil.
func NewMonitor(
	tickets TicketCounter,
	pauses PauseLister,
	snapshots SnapshotCounter,
	storage StoragePinger,
) *Monitor {
	return &Monitor{
		tickets:   tickets,
		pauses:    pauses,
		snapshots: snapshots,
		storage:   storage,
		cacheFor:  10 * time.Second,
	}
}

// CheckHealth builds a report. Results are cached briefly so probes don't
// hammer the storage backend.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastReport != nil && time.Since(m.lastCheck) < m.cacheFor {
		return *m.lastReport
	}

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Components:   make(map[string]ComponentHealth),
		PausedAgents: []string{},
		CheckedAt:    time.Now(),
	}

	// 1. Storage
	if m.storage != nil {
		c := ComponentHealth{Status: StatusHealthy}
		if err := m.storage.Ping(ctx); err != nil {
			c = ComponentHealth{Status: StatusCritical, Detail: err.Error()}
		}
		report.Components["storage"] = c
	}

	// 2. Escalation backlog
	if m.tickets != nil {
		report.OpenTickets = m.tickets.OpenCount()
		c := ComponentHealth{Status: StatusHealthy}
		if report.OpenTickets >= criticalOpenTickets {
			c.Status = StatusCritical
		} else if report.OpenTickets >= degradedOpenTickets {
			c.Status = StatusDegraded
		}
		if report.OpenTickets > 0 {
			c.Detail = fmt.Sprintf("%d open tickets", report.OpenTickets)
		}
		report.Components["escalation"] = c
	}

	// 3. Paused agents
	if m.pauses != nil {
		for agentID := range m.pauses.PausedAgents() {
			report.PausedAgents = append(report.PausedAgents, agentID)
		}
		sort.Strings(report.PausedAgents)
		c := ComponentHealth{Status: StatusHealthy}
		if len(report.PausedAgents) > 0 {
			c = ComponentHealth{
				Status: StatusDegraded,
				Detail: fmt.Sprintf("%d agents paused", len(report.PausedAgents)),
			}
		}
		report.Components["loop_detection"] = c
	}

	// 4. Snapshot occupancy is informational only
	if m.snapshots != nil {
		report.Snapshots = m.snapshots.Count()
		report.SnapshotCapacity = m.snapshots.Capacity()
		report.Components["snapshots"] = ComponentHealth{
			Status: StatusHealthy,
			Detail: fmt.Sprintf("%d/%d", report.Snapshots, report.SnapshotCapacity),
		}
	}

	for _, c := range report.Components {
		report.SystemStatus = worse(report.SystemStatus, c.Status)
	}

	m.lastCheck = time.Now()
	m.lastReport = &report
	return report
}
