package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/supervisor/internal/recovery/snapshot"
)

var snapshotFilter snapshot.Filter

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Inspect stored state snapshots",
}

var snapshotsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots, newest first",
	Run:   runSnapshotsList,
}

func init() {
	snapshotsListCmd.Flags().StringVar(&snapshotFilter.AgentID, "agent", "", "filter by agent ID")
	snapshotsListCmd.Flags().StringVar(&snapshotFilter.TaskID, "task", "", "filter by task ID")
	snapshotsListCmd.Flags().IntVar(&snapshotFilter.Limit, "limit", 20, "maximum rows (0 = all)")

	snapshotsCmd.AddCommand(snapshotsListCmd)
	rootCmd.AddCommand(snapshotsCmd)
}

func runSnapshotsList(cmd *cobra.Command, args []string) {
	app := openSupervisor(cmd)
	defer app.Close()

	snaps := app.Snapshots().List(cmd.Context(), snapshotFilter)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ID\tAGENT\tTASK\tTAGS\tCREATED")
	for _, s := range snaps {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.AgentID, s.TaskID, strings.Join(s.Tags, ","), s.CreatedAt.Format(time.RFC3339))
	}
	_ = w.Flush()

	fmt.Printf("\n%d of %d snapshots (capacity %d)\n", len(snaps), app.Snapshots().Count(), app.Snapshots().Capacity())
}
