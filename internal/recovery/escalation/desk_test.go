package escalation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/supervisor/internal/core/domain"
	"github.com/vietddude/supervisor/internal/infra/storage"
	"github.com/vietddude/supervisor/internal/infra/storage/memory"
)

type rejectingBackend struct {
	storage.Backend
}

func (rejectingBackend) Put(context.Context, string, []byte) error {
	return errors.New("read-only")
}

func openDesk(t *testing.T, backend storage.Backend) *Desk {
	t.Helper()
	d, err := OpenDesk(context.Background(), backend, Options{})
	if err != nil {
		t.Fatalf("OpenDesk failed: %v", err)
	}
	return d
}

func sampleFailure(kind domain.ErrorKind) domain.Failure {
	return domain.NewFailure("inc-1", "it broke", kind, map[string]any{"step": 2}, time.Now())
}

func TestPriorityFor(t *testing.T) {
	tests := []struct {
		kind domain.ErrorKind
		want domain.Priority
	}{
		{domain.ErrorKindSystem, domain.PriorityHigh},
		{domain.ErrorKindTimeout, domain.PriorityMedium},
		{domain.ErrorKindTask, domain.PriorityLow},
		{domain.ErrorKindValidation, domain.PriorityLow},
		{domain.ErrorKindResource, domain.PriorityLow},
		{domain.ErrorKindUnknown, domain.PriorityLow},
	}

	for _, tt := range tests {
		if got := PriorityFor(tt.kind); got != tt.want {
			t.Errorf("PriorityFor(%s) = %s, want %s", tt.kind, got, tt.want)
		}
	}
}

func TestDesk_EscalateCreatesNewTicketEachCall(t *testing.T) {
	ctx := context.Background()
	d := openDesk(t, memory.NewMemoryStorage())
	failure := sampleFailure(domain.ErrorKindSystem)

	id1, err := d.Escalate(ctx, failure, map[string]any{"agent_id": "a"})
	if err != nil {
		t.Fatalf("Escalate failed: %v", err)
	}
	id2, _ := d.Escalate(ctx, failure, nil)
	if id1 == id2 {
		t.Error("expected distinct tickets")
	}

	ticket, err := d.Get(ctx, id1)
	if err != nil {
		t.Fatal(err)
	}
	if ticket.Status != domain.TicketStatusOpen || ticket.Priority != domain.PriorityHigh {
		t.Errorf("unexpected ticket %+v", ticket)
	}
	if ticket.Failure.IncidentID != "inc-1" || ticket.Failure.Message != "it broke" {
		t.Errorf("ticket must embed the failure, got %+v", ticket.Failure)
	}
	if d.OpenCount() != 2 {
		t.Errorf("expected 2 open tickets, got %d", d.OpenCount())
	}
}

func TestDesk_FailureIsImmutable(t *testing.T) {
	ctx := context.Background()
	d := openDesk(t, memory.NewMemoryStorage())
	failure := sampleFailure(domain.ErrorKindTask)

	id, _ := d.Escalate(ctx, failure, nil)
	failure.Context["step"] = 99

	got, _ := d.Get(ctx, id)
	got.Failure.Context["step"] = 100

	again, _ := d.Get(ctx, id)
	if again.Failure.Context["step"] != 2 {
		t.Errorf("failure context mutated: %v", again.Failure.Context)
	}
}

func TestDesk_Resolve(t *testing.T) {
	ctx := context.Background()
	d := openDesk(t, memory.NewMemoryStorage())
	id, _ := d.Escalate(ctx, sampleFailure(domain.ErrorKindTimeout), nil)

	ticket, err := d.Resolve(ctx, id, "fixed upstream")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if ticket.Status != domain.TicketStatusResolved || ticket.ResolvedAt == nil || ticket.Resolution != "fixed upstream" {
		t.Errorf("unexpected resolved ticket %+v", ticket)
	}

	if _, err := d.Resolve(ctx, id, "again"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
	if _, err := d.Resolve(ctx, "missing", "x"); !errors.Is(err, ErrTicketNotFound) {
		t.Errorf("expected ErrTicketNotFound, got %v", err)
	}
}

func TestDesk_ListByStatus(t *testing.T) {
	ctx := context.Background()
	d := openDesk(t, memory.NewMemoryStorage())

	a, _ := d.Escalate(ctx, sampleFailure(domain.ErrorKindTask), nil)
	_, _ = d.Escalate(ctx, sampleFailure(domain.ErrorKindTask), nil)
	_, _ = d.Resolve(ctx, a, "done")

	if got := d.List(ctx, domain.TicketStatusOpen); len(got) != 1 {
		t.Errorf("expected 1 open, got %d", len(got))
	}
	if got := d.List(ctx, domain.TicketStatusResolved); len(got) != 1 || got[0].ID != a {
		t.Errorf("expected resolved ticket %s, got %v", a, got)
	}
	if got := d.List(ctx, ""); len(got) != 2 {
		t.Errorf("expected 2 tickets, got %d", len(got))
	}
}

func TestDesk_Reload(t *testing.T) {
	ctx := context.Background()
	backend := memory.NewMemoryStorage()
	d := openDesk(t, backend)

	id, _ := d.Escalate(ctx, sampleFailure(domain.ErrorKindSystem), nil)
	_, _ = d.Resolve(ctx, id, "done")

	reloaded := openDesk(t, backend)
	got, err := reloaded.Get(ctx, id)
	if err != nil {
		t.Fatalf("expected ticket after reload: %v", err)
	}
	if got.Status != domain.TicketStatusResolved {
		t.Errorf("expected resolved status, got %s", got.Status)
	}
}

func TestDesk_PersistFailure(t *testing.T) {
	ctx := context.Background()
	d := openDesk(t, rejectingBackend{Backend: memory.NewMemoryStorage()})

	_, err := d.Escalate(ctx, sampleFailure(domain.ErrorKindTask), nil)
	if kind, ok := domain.KindOf(err); !ok || kind != domain.ErrorKindSystem {
		t.Errorf("expected SystemError, got %v", err)
	}
	if d.OpenCount() != 0 {
		t.Error("failed escalation must not register a ticket")
	}
}
