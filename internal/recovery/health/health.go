// Package health provides engine health monitoring and status reporting.
package health

import "time"

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// worse returns the more severe of two statuses.
func worse(a, b SystemStatus) SystemStatus {
	rank := map[SystemStatus]int{StatusHealthy: 0, StatusDegraded: 1, StatusCritical: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// ComponentHealth is the status of one part of the engine.
type ComponentHealth struct {
	Status SystemStatus `json:"status"`
	Detail string       `json:"detail,omitempty"`
}

// HealthReport contains the full engine health report.
type HealthReport struct {
	SystemStatus     SystemStatus               `json:"system_status"`
	Components       map[string]ComponentHealth `json:"components"`
	OpenTickets      int                        `json:"open_tickets"`
	PausedAgents     []string                   `json:"paused_agents"`
	Snapshots        int                        `json:"snapshots"`
	SnapshotCapacity int                        `json:"snapshot_capacity"`
	CheckedAt        time.Time                  `json:"checked_at"`
}
