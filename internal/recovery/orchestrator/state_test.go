package orchestrator

import (
	"testing"

	"github.com/vietddude/supervisor/internal/core/domain"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{domain.IncidentStateClassified, domain.IncidentStateRetrying, true},
		{domain.IncidentStateClassified, domain.IncidentStateEscalated, true},
		{domain.IncidentStateClassified, domain.IncidentStateResolved, false},
		{domain.IncidentStateRetrying, domain.IncidentStateResolved, true},
		{domain.IncidentStateRetrying, domain.IncidentStateRetrying, false},
		{domain.IncidentStateRolledBack, domain.IncidentStateRolledBack, true},
		{domain.IncidentStateRolledBack, domain.IncidentStateRetrying, false},
		{domain.IncidentStateEscalated, domain.IncidentStateResolved, false},
		{domain.IncidentStateResolved, domain.IncidentStateFailed, false},
		{domain.IncidentStateFailed, domain.IncidentStateClassified, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for state := range ValidTransitions {
		if state.Terminal() {
			t.Errorf("terminal state %s must not have transitions", state)
		}
	}
}

func TestOutcomeFor(t *testing.T) {
	if outcomeFor(domain.IncidentStateResolved) != domain.OutcomeResolved {
		t.Error("resolved")
	}
	if outcomeFor(domain.IncidentStateEscalated) != domain.OutcomeEscalated {
		t.Error("escalated")
	}
	if outcomeFor(domain.IncidentStateRolledBack) != domain.OutcomeFailed {
		t.Error("non-terminal states report failed")
	}
}

func TestStateDescription(t *testing.T) {
	if StateDescription("bogus") != "Unknown state" {
		t.Error("expected unknown description")
	}
	if StateDescription(domain.IncidentStateEscalated) == "Unknown state" {
		t.Error("expected description for escalated")
	}
}
