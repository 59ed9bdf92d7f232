package control

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/vietddude/supervisor/internal/core/config"
	"github.com/vietddude/supervisor/internal/core/domain"
)

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Port = 0 // Random port
	cfg.Recovery.RetryDelays = []time.Duration{}
	return cfg
}

func TestSupervisor_Lifecycle(t *testing.T) {
	s, err := New(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Wait a bit to let goroutines spin up
	time.Sleep(50 * time.Millisecond)

	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	// Second stop is a no-op
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
}

func TestSupervisor_HandleError(t *testing.T) {
	s, err := New(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	calls := 0
	res := s.HandleError(ctx, Request{
		Err:       errors.New("request timed out"),
		AgentID:   "agent-1",
		TaskID:    "task-1",
		StateData: map[string]any{"step": 1},
		Recover: func(ctx context.Context) (any, error) {
			calls++
			if calls < 3 {
				return nil, errors.New("request timed out")
			}
			return "ok", nil
		},
	})
	if !res.Success || res.Outcome != domain.OutcomeResolved {
		t.Fatalf("expected resolved, got %+v", res)
	}
	if s.Snapshots().Count() != 1 {
		t.Errorf("expected 1 snapshot, got %d", s.Snapshots().Count())
	}

	res = s.HandleError(ctx, Request{
		Message: "schema mismatch",
		Kind:    domain.ErrorKindValidation,
		AgentID: "agent-2",
	})
	if res.Outcome != domain.OutcomeEscalated || res.TicketID == "" {
		t.Fatalf("expected escalated with ticket, got %+v", res)
	}
	if got := s.Desk().OpenCount(); got != 1 {
		t.Errorf("expected 1 open ticket, got %d", got)
	}

	// One snapshot, two histories, one ticket
	if keys, err := s.StoredKeys(ctx); err != nil || keys != 4 {
		t.Errorf("expected 4 stored keys, got %d (%v)", keys, err)
	}

	report := s.Health().CheckHealth(ctx)
	if report.OpenTickets != 1 {
		t.Errorf("expected health to report 1 open ticket, got %d", report.OpenTickets)
	}
}

func TestSupervisor_SQLitePersistsAcrossRestart(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Driver = config.DriverSQLite
	cfg.Storage.Path = filepath.Join(t.TempDir(), "supervisor.db")
	ctx := context.Background()

	s, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	res := s.HandleError(ctx, Request{
		Message:   "disk full",
		Kind:      domain.ErrorKindSystem,
		AgentID:   "agent-1",
		StateData: map[string]any{"step": 7},
	})
	if res.TicketID == "" {
		t.Fatalf("expected ticket, got %+v", res)
	}
	s.Close()

	reopened, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	if reopened.Snapshots().Count() != 1 {
		t.Errorf("expected snapshot to survive restart, got %d", reopened.Snapshots().Count())
	}
	ticket, err := reopened.Desk().Get(ctx, res.TicketID)
	if err != nil {
		t.Fatalf("ticket lost after restart: %v", err)
	}
	if ticket.Priority != domain.PriorityHigh {
		t.Errorf("expected high priority, got %s", ticket.Priority)
	}
	if _, err := reopened.History().Get(ctx, res.HistoryID); err != nil {
		t.Errorf("history lost after restart: %v", err)
	}
}

func TestSupervisor_StoredKeysUnsupported(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Driver = config.DriverFile
	cfg.Storage.Path = t.TempDir()

	s, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()

	if _, err := s.StoredKeys(context.Background()); !errors.Is(err, errors.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Driver = "cassandra"

	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
