package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var historyJSON bool

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect incident histories",
}

var historyShowCmd = &cobra.Command{
	Use:   "show [history_id]",
	Short: "Print every recorded step of one incident",
	Args:  cobra.ExactArgs(1),
	Run:   runHistoryShow,
}

func init() {
	historyShowCmd.Flags().BoolVar(&historyJSON, "json", false, "print raw JSON")

	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}

func runHistoryShow(cmd *cobra.Command, args []string) {
	app := openSupervisor(cmd)
	defer app.Close()

	h, err := app.History().Get(cmd.Context(), args[0])
	if err != nil {
		slog.Error("Failed to load history", "history", args[0], "error", err)
		app.Close()
		os.Exit(1)
	}

	if historyJSON {
		out, _ := json.MarshalIndent(h, "", "  ")
		fmt.Println(string(out))
		return
	}

	fmt.Printf("History %s (agent=%s task=%s)\n\n", h.ID, h.AgentID, h.TaskID)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "TIME\tEVENT\tDATA")
	for _, e := range h.Entries {
		data, _ := json.Marshal(e.Data)
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", e.Timestamp.Format(time.RFC3339Nano), e.EventType, data)
	}
	_ = w.Flush()
}
