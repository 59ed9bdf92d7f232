package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/vietddude/supervisor/internal/core/domain"
)

func TestLogSink_Notify(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewTextHandler(&buf, nil)))

	err := sink.Notify(context.Background(), Notification{
		TicketID: "t-1",
		Priority: domain.PriorityHigh,
		Failure:  domain.Failure{IncidentID: "inc-1", Kind: domain.ErrorKindSystem, Message: "disk gone"},
	})
	if err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"ticket=t-1", "priority=high", "incident=inc-1", "kind=SystemError"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected log to contain %q, got %s", want, out)
		}
	}
}

func TestMultiSink_AttemptsAllAndJoinsErrors(t *testing.T) {
	errA := errors.New("a down")
	errB := errors.New("b down")
	calls := 0
	failing := func(e error) Sink {
		return SinkFunc(func(context.Context, Notification) error {
			calls++
			return e
		})
	}

	m := MultiSink{failing(errA), nil, failing(nil), failing(errB)}
	err := m.Notify(context.Background(), Notification{TicketID: "t"})

	if calls != 3 {
		t.Errorf("expected 3 sinks called, got %d", calls)
	}
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("expected joined error, got %v", err)
	}
}

func TestMultiSink_Empty(t *testing.T) {
	if err := (MultiSink{}).Notify(context.Background(), Notification{}); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}
