package orchestrator

import (
	"errors"
	"time"

	"github.com/vietddude/supervisor/internal/core/domain"
)

// State is an alias for domain.IncidentState for internal use.
type State = domain.IncidentState

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid incident transition")

// ValidTransitions defines allowed state transitions.
// Key is the current state, value is the list of valid next states.
var ValidTransitions = map[State][]State{
	domain.IncidentStateClassified: {
		domain.IncidentStateRetrying,
		domain.IncidentStateRolledBack,
		domain.IncidentStateEscalated,
		domain.IncidentStateFailed,
	},
	domain.IncidentStateRetrying: {
		domain.IncidentStateResolved,
		domain.IncidentStateRolledBack,
		domain.IncidentStateEscalated,
		domain.IncidentStateFailed,
	},
	domain.IncidentStateRolledBack: {
		domain.IncidentStateRolledBack, // next candidate
		domain.IncidentStateResolved,
		domain.IncidentStateEscalated,
		domain.IncidentStateFailed,
	},
}

// CanTransition checks if a transition from one state to another is valid.
func CanTransition(from, to State) bool {
	validTargets, ok := ValidTransitions[from]
	if !ok {
		return false
	}

	for _, target := range validTargets {
		if target == to {
			return true
		}
	}
	return false
}

// Transition represents a state change with metadata.
type Transition struct {
	From      State
	To        State
	Reason    string
	Timestamp time.Time
}

// StateDescription returns a human-readable description of a state.
func StateDescription(s State) string {
	switch s {
	case domain.IncidentStateClassified:
		return "Classified - failure recorded and categorised"
	case domain.IncidentStateRetrying:
		return "Retrying - re-invoking the recovery callback with backoff"
	case domain.IncidentStateRolledBack:
		return "Rolled back - state restored from a snapshot"
	case domain.IncidentStateEscalated:
		return "Escalated - ticket opened for human follow-up"
	case domain.IncidentStateResolved:
		return "Resolved - recovery succeeded"
	case domain.IncidentStateFailed:
		return "Failed - no recovery path remained"
	default:
		return "Unknown state"
	}
}

// outcomeFor maps a terminal state to the caller-facing outcome.
func outcomeFor(s State) domain.Outcome {
	switch s {
	case domain.IncidentStateResolved:
		return domain.OutcomeResolved
	case domain.IncidentStateEscalated:
		return domain.OutcomeEscalated
	default:
		return domain.OutcomeFailed
	}
}
