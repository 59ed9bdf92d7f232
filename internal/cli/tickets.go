package cli

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/supervisor/internal/core/domain"
)

var (
	ticketStatus string
	resolution   string
)

var ticketsCmd = &cobra.Command{
	Use:   "tickets",
	Short: "Inspect and resolve escalation tickets",
}

var ticketsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List escalation tickets",
	Run:   runTicketsList,
}

var ticketsResolveCmd = &cobra.Command{
	Use:   "resolve [ticket_id]",
	Short: "Mark an open ticket resolved",
	Args:  cobra.ExactArgs(1),
	Run:   runTicketsResolve,
}

func init() {
	ticketsListCmd.Flags().StringVar(&ticketStatus, "status", "open", "open, resolved or all")
	ticketsResolveCmd.Flags().StringVar(&resolution, "resolution", "resolved manually", "resolution note")

	ticketsCmd.AddCommand(ticketsListCmd, ticketsResolveCmd)
	rootCmd.AddCommand(ticketsCmd)
}

func runTicketsList(cmd *cobra.Command, args []string) {
	var status domain.TicketStatus
	switch ticketStatus {
	case "open":
		status = domain.TicketStatusOpen
	case "resolved":
		status = domain.TicketStatusResolved
	case "all", "":
	default:
		fmt.Printf("Invalid status %q (want open, resolved or all)\n", ticketStatus)
		os.Exit(1)
	}

	app := openSupervisor(cmd)
	defer app.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ID\tPRIORITY\tSTATUS\tKIND\tMESSAGE\tCREATED")
	for _, t := range app.Desk().List(cmd.Context(), status) {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Priority, t.Status, t.Failure.Kind, t.Failure.Message, t.CreatedAt.Format(time.RFC3339))
	}
	_ = w.Flush()
}

func runTicketsResolve(cmd *cobra.Command, args []string) {
	app := openSupervisor(cmd)
	defer app.Close()

	t, err := app.Desk().Resolve(cmd.Context(), args[0], resolution)
	if err != nil {
		slog.Error("Failed to resolve ticket", "ticket", args[0], "error", err)
		app.Close()
		os.Exit(1)
	}
	fmt.Printf("Ticket %s resolved at %s\n", t.ID, t.ResolvedAt.Format(time.RFC3339))
}
