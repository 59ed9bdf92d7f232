package domain

// IncidentState is the orchestrator's position in the recovery policy.
type IncidentState string

const (
	IncidentStateClassified IncidentState = "classified"
	IncidentStateRetrying   IncidentState = "retrying"
	IncidentStateRolledBack IncidentState = "rolled_back"
	IncidentStateEscalated  IncidentState = "escalated"
	IncidentStateResolved   IncidentState = "resolved"
	IncidentStateFailed     IncidentState = "failed"
)

// Outcome is what a HandleError call reports back to the caller.
type Outcome string

const (
	OutcomeResolved  Outcome = "resolved"
	OutcomeEscalated Outcome = "escalated"
	OutcomeFailed    Outcome = "failed"
)

// Terminal reports whether no further transition is expected within a call.
func (s IncidentState) Terminal() bool {
	switch s {
	case IncidentStateEscalated, IncidentStateResolved, IncidentStateFailed:
		return true
	}
	return false
}
