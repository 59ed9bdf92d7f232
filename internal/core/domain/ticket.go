package domain

import "time"

// Ticket requests human follow-up for an incident automation could not fix.
type Ticket struct {
	ID         string         `json:"ticket_id"`
	CreatedAt  time.Time      `json:"created_at"`
	Failure    Failure        `json:"failure_record"`
	Context    map[string]any `json:"context,omitempty"`
	Status     TicketStatus   `json:"status"`
	Priority   Priority       `json:"priority"`
	ResolvedAt *time.Time     `json:"resolved_at,omitempty"`
	Resolution string         `json:"resolution,omitempty"`
}

type TicketStatus string

const (
	TicketStatusOpen     TicketStatus = "open"
	TicketStatusResolved TicketStatus = "resolved"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Clone returns a deep copy.
func (t *Ticket) Clone() *Ticket {
	out := *t
	out.Failure = t.Failure.Clone()
	out.Context = CopyMap(t.Context)
	if t.ResolvedAt != nil {
		at := *t.ResolvedAt
		out.ResolvedAt = &at
	}
	return &out
}
