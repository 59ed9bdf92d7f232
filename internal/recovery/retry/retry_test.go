package retry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vietddude/supervisor/internal/core/domain"
)

// =============================================================================
// Fake Sleeper
// =============================================================================

type fakeSleeper struct {
	waits []time.Duration
}

func (f *fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	f.waits = append(f.waits, d)
	return ctx.Err()
}

func failingOp(calls *int, succeedOn int) Op {
	return func(ctx context.Context) (any, error) {
		*calls++
		if succeedOn > 0 && *calls >= succeedOn {
			return "ok", nil
		}
		return nil, errors.New("still failing")
	}
}

// =============================================================================
// Controller Tests
// =============================================================================

func TestExecute_RetryBound(t *testing.T) {
	for _, maxAttempts := range []int{1, 2, 3, 5} {
		sleeper := &fakeSleeper{}
		c := NewController(nil, WithSleeper(sleeper.Sleep))

		calls := 0
		out := c.Execute(context.Background(), failingOp(&calls, 0), maxAttempts)

		if out.Success {
			t.Fatalf("maxAttempts=%d: expected failure", maxAttempts)
		}
		if calls != maxAttempts || out.AttemptsUsed != maxAttempts {
			t.Errorf("maxAttempts=%d: expected %d attempts, got calls=%d used=%d", maxAttempts, maxAttempts, calls, out.AttemptsUsed)
		}
		if len(sleeper.waits) != maxAttempts-1 {
			t.Errorf("maxAttempts=%d: expected %d waits, got %d", maxAttempts, maxAttempts-1, len(sleeper.waits))
		}
		if out.Err == nil || out.Err.Error() != "still failing" {
			t.Errorf("maxAttempts=%d: expected last error, got %v", maxAttempts, out.Err)
		}
	}
}

func TestExecute_ZeroAttemptsTreatedAsOne(t *testing.T) {
	c := NewController(nil, WithSleeper((&fakeSleeper{}).Sleep))
	calls := 0
	out := c.Execute(context.Background(), failingOp(&calls, 0), 0)
	if calls != 1 || out.AttemptsUsed != 1 {
		t.Errorf("expected exactly one attempt, got %d", calls)
	}
}

func TestExecute_SuccessOnThirdAttempt(t *testing.T) {
	sleeper := &fakeSleeper{}
	c := NewController(nil, WithSleeper(sleeper.Sleep))

	calls := 0
	out := c.Execute(context.Background(), failingOp(&calls, 3), 3)

	if !out.Success || out.Value != "ok" || out.Err != nil {
		t.Fatalf("expected success, got %+v", out)
	}
	if out.AttemptsUsed != 3 {
		t.Errorf("expected 3 attempts, got %d", out.AttemptsUsed)
	}
	want := []time.Duration{1 * time.Second, 2 * time.Second}
	if len(sleeper.waits) != len(want) {
		t.Fatalf("expected waits %v, got %v", want, sleeper.waits)
	}
	for i := range want {
		if sleeper.waits[i] != want[i] {
			t.Errorf("wait %d: expected %v, got %v", i, want[i], sleeper.waits[i])
		}
	}
}

func TestExecute_LastDelayRepeats(t *testing.T) {
	sleeper := &fakeSleeper{}
	c := NewController([]time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, WithSleeper(sleeper.Sleep))

	calls := 0
	out := c.Execute(context.Background(), failingOp(&calls, 0), 5)

	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 20 * time.Millisecond, 20 * time.Millisecond}
	if len(out.Delays) != len(want) {
		t.Fatalf("expected delays %v, got %v", want, out.Delays)
	}
	for i := range want {
		if out.Delays[i] != want[i] {
			t.Errorf("delay %d: expected %v, got %v", i, want[i], out.Delays[i])
		}
	}
}

func TestExecute_EmptyTableNoDelay(t *testing.T) {
	sleeper := &fakeSleeper{}
	c := NewController([]time.Duration{}, WithSleeper(sleeper.Sleep))

	calls := 0
	c.Execute(context.Background(), failingOp(&calls, 0), 3)

	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	if len(sleeper.waits) != 0 {
		t.Errorf("expected no waits, got %v", sleeper.waits)
	}
}

func TestExecute_PanicBecomesTaskError(t *testing.T) {
	c := NewController([]time.Duration{}, WithSleeper((&fakeSleeper{}).Sleep))

	out := c.Execute(context.Background(), func(ctx context.Context) (any, error) {
		panic("boom")
	}, 2)

	if out.Success {
		t.Fatal("expected failure")
	}
	if out.AttemptsUsed != 2 {
		t.Errorf("expected panics to count as attempts, got %d", out.AttemptsUsed)
	}
	if kind, ok := domain.KindOf(out.Err); !ok || kind != domain.ErrorKindTask {
		t.Errorf("expected TaskError, got %v", out.Err)
	}
}

func TestExecute_CancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := NewController([]time.Duration{time.Hour})

	calls := 0
	op := func(ctx context.Context) (any, error) {
		calls++
		cancel()
		return nil, errors.New("first failure")
	}

	start := time.Now()
	out := c.Execute(ctx, op, 3)

	if time.Since(start) > time.Second {
		t.Fatal("cancellation did not interrupt the wait")
	}
	if out.Success || calls != 1 || out.AttemptsUsed != 1 {
		t.Errorf("expected one failed attempt, got calls=%d out=%+v", calls, out)
	}
	if !errors.Is(out.Err, context.Canceled) {
		t.Errorf("expected context.Canceled in error, got %v", out.Err)
	}
	if out.Err == nil || !strings.Contains(out.Err.Error(), "first failure") {
		t.Errorf("expected last failure preserved, got %v", out.Err)
	}
}

func TestExecute_RealShortDelays(t *testing.T) {
	delays := []time.Duration{20 * time.Millisecond, 40 * time.Millisecond}
	c := NewController(delays)

	var stamps []time.Time
	op := func(ctx context.Context) (any, error) {
		stamps = append(stamps, time.Now())
		return nil, errors.New("fail")
	}

	c.Execute(context.Background(), op, 3)

	if len(stamps) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(stamps))
	}
	for i, want := range delays {
		gap := stamps[i+1].Sub(stamps[i])
		if gap < want || gap > want+200*time.Millisecond {
			t.Errorf("gap %d: expected ~%v, got %v", i, want, gap)
		}
	}
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
