package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/supervisor/internal/control"
	"github.com/vietddude/supervisor/internal/core/domain"
)

// simulation describes a synthetic failure injected through the engine.
type simulation struct {
	Kind      string
	Message   string
	AgentID   string
	TaskID    string
	State     string // JSON
	FailTimes int    // recovery attempts that fail before one succeeds; <0 = always
	NoRecover bool
	Repeat    int
}

var sim simulation

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Inject a synthetic failure through the full recovery engine",
	Run:   runSimulate,
}

func init() {
	f := simulateCmd.Flags()
	f.StringVar(&sim.Kind, "kind", string(domain.ErrorKindTimeout), "error kind (TimeoutError, ResourceError, ValidationError, TaskError, SystemError, UnknownError) or empty to classify the message")
	f.StringVar(&sim.Message, "message", "simulated failure", "failure message")
	f.StringVar(&sim.AgentID, "agent", "sim-agent", "agent ID")
	f.StringVar(&sim.TaskID, "task", "sim-task", "task ID")
	f.StringVar(&sim.State, "state", `{"step":1}`, "agent state as JSON (empty for none)")
	f.IntVar(&sim.FailTimes, "fail", 1, "recovery attempts that fail before success (-1 = always fail)")
	f.BoolVar(&sim.NoRecover, "no-recover", false, "report the failure without a recovery callback")
	f.IntVar(&sim.Repeat, "repeat", 1, "number of times to report the failure")

	rootCmd.AddCommand(simulateCmd)
}

// request turns the simulation into an engine request.
func (s simulation) request() (control.Request, error) {
	req := control.Request{
		Message: s.Message,
		AgentID: s.AgentID,
		TaskID:  s.TaskID,
		Context: map[string]any{"source": "simulate"},
	}

	if s.Kind != "" {
		kind, err := domain.ParseErrorKind(s.Kind)
		if err != nil {
			return req, err
		}
		req.Kind = kind
	}

	if s.State != "" {
		var state any
		if err := json.Unmarshal([]byte(s.State), &state); err != nil {
			return req, fmt.Errorf("invalid --state: %w", err)
		}
		req.StateData = state
	}

	if !s.NoRecover {
		calls := 0
		req.Recover = func(ctx context.Context) (any, error) {
			calls++
			if s.FailTimes < 0 || calls <= s.FailTimes {
				return nil, errors.New(s.Message)
			}
			return map[string]any{"recovered_after": calls}, nil
		}
	}
	return req, nil
}

func runSimulate(cmd *cobra.Command, args []string) {
	if _, err := sim.request(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	app := openSupervisor(cmd)
	defer app.Close()

	for i := 0; i < max(sim.Repeat, 1); i++ {
		// Fresh request per run so each gets its own attempt counter
		req, _ := sim.request()
		res := app.HandleError(cmd.Context(), req)
		for _, e := range res.EngineErrors {
			slog.Warn("Engine error", "incident", res.IncidentID, "error", e)
		}
		out, _ := json.MarshalIndent(res, "", "  ")
		fmt.Println(string(out))
	}
}
