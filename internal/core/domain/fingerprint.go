package domain

import "time"

// Fingerprint is a hash-based signature of one execution point.
type Fingerprint struct {
	AgentID    string    `json:"agent_id"`
	TaskID     string    `json:"task_id"`
	StateHash  string    `json:"state_hash"`
	OutputHash string    `json:"output_hash"`
	Timestamp  time.Time `json:"timestamp"`
}

// Severity grades a detected loop.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)
