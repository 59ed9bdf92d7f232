package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/supervisor/internal/core/domain"
)

// DefaultDelays is the backoff table used when none is configured.
var DefaultDelays = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// Op is one attempt of the work being retried.
type Op func(ctx context.Context) (any, error)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Outcome is the result of Execute.
type Outcome struct {
	Success      bool
	Value        any
	Err          error
	AttemptsUsed int
	Delays       []time.Duration
}

// Controller runs an operation with bounded attempts and a fixed delay table.
// It does not log or persist; callers record the outcome.
type Controller struct {
	delays []time.Duration
	sleep  Sleeper
}

// Option configures a Controller.
type Option func(*Controller)

// WithSleeper replaces the context-aware timer wait.
func WithSleeper(s Sleeper) Option {
	return func(c *Controller) {
		c.sleep = s
	}
}

// NewController creates a controller. A nil table uses DefaultDelays; an
// empty, non-nil table means no delay between attempts.
func NewController(delays []time.Duration, opts ...Option) *Controller {
	if delays == nil {
		delays = DefaultDelays
	}
	c := &Controller{
		delays: append([]time.Duration(nil), delays...),
		sleep:  Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Delay returns the wait before attempt index+2. The last table value repeats.
func (c *Controller) Delay(index int) time.Duration {
	if len(c.delays) == 0 {
		return 0
	}
	if index >= len(c.delays) {
		return c.delays[len(c.delays)-1]
	}
	return c.delays[index]
}

// Execute attempts op up to maxAttempts times. Only the last error is reported.
func (c *Controller) Execute(ctx context.Context, op Op, maxAttempts int) Outcome {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var out Outcome
	for attempt := 0; attempt < maxAttempts; attempt++ {
		out.AttemptsUsed++

		value, err := invoke(ctx, op)
		if err == nil {
			out.Success = true
			out.Value = value
			out.Err = nil
			return out
		}
		out.Err = err

		if attempt == maxAttempts-1 {
			break
		}

		delay := c.Delay(attempt)
		out.Delays = append(out.Delays, delay)
		if delay <= 0 {
			if ctx.Err() != nil {
				out.Err = errors.Join(err, ctx.Err())
				return out
			}
			continue
		}
		if werr := c.sleep(ctx, delay); werr != nil {
			out.Err = errors.Join(err, werr)
			return out
		}
	}

	return out
}

// invoke runs op, converting a panic into a task failure.
func invoke(ctx context.Context, op Op) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = domain.NewError(domain.ErrorKindTask, "retry.attempt", fmt.Errorf("panic: %v", r))
		}
	}()
	return op(ctx)
}

// Sleep waits for d unless ctx is cancelled first.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
