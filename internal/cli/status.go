package cli

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show engine health, open tickets and paused agents",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	app := openSupervisor(cmd)
	defer app.Close()

	report := app.Health().CheckHealth(cmd.Context())

	fmt.Printf("Status: %s\n\n", report.SystemStatus)

	names := make([]string, 0, len(report.Components))
	for name := range report.Components {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "COMPONENT\tSTATUS\tDETAIL")
	for _, name := range names {
		c := report.Components[name]
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", name, c.Status, c.Detail)
	}
	_ = w.Flush()

	if keys, err := app.StoredKeys(cmd.Context()); err == nil {
		fmt.Printf("\nDurable keys: %d\n", keys)
	} else if !errors.Is(err, errors.ErrUnsupported) {
		fmt.Printf("\nDurable keys: unavailable (%v)\n", err)
	}

	if len(report.PausedAgents) > 0 {
		fmt.Printf("\nPaused agents: %v\n", report.PausedAgents)
	}
}
