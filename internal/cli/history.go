package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/lu-zhengda/portsniper/internal/history"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show port open/close event history",
	Long: `Display a timeline of port open and close events.

Events are recorded each time "portsniper history record" is run. A port
whose owning pid changed between snapshots shows as a close followed by an
open. The log is stored at ~/.config/portsniper/history.json.`,
	RunE: runHistoryShow,
}

var historyRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Snapshot current ports and record changes",
	RunE:  runHistoryRecord,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all history data",
	RunE:  runHistoryClear,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "last", "n", 0, "Show only the last N events")
	historyCmd.AddCommand(historyRecordCmd)
	historyCmd.AddCommand(historyClearCmd)
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, err := history.NewStore()
	if err != nil {
		return fmt.Errorf("failed to create history store: %w", err)
	}

	data, err := store.Load()
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	events := latestEvents(data.Events, historyLimit)

	if jsonOutput {
		return printJSON(os.Stdout, events)
	}
	if len(events) == 0 {
		fmt.Println("No history events recorded.")
		fmt.Println("Run 'portsniper history record' to start tracking port changes.")
		return nil
	}
	return printHistoryTable(os.Stdout, events)
}

// latestEvents returns events newest first, capped at limit when positive.
func latestEvents(events []history.Event, limit int) []history.Event {
	out := make([]history.Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

func runHistoryRecord(cmd *cobra.Command, args []string) error {
	ports, err := newApp().ActivePorts(context.Background())
	if err != nil {
		return err
	}

	store, err := history.NewStore()
	if err != nil {
		return fmt.Errorf("failed to create history store: %w", err)
	}

	now := time.Now()
	events, err := store.Record(ports, now)
	if err != nil {
		return fmt.Errorf("failed to record history: %w", err)
	}

	if jsonOutput {
		return printJSON(os.Stdout, events)
	}
	if len(events) == 0 {
		fmt.Printf("Snapshot recorded at %s. No changes detected.\n", now.Format("15:04:05"))
		return nil
	}

	fmt.Printf("Snapshot recorded at %s. %d change(s):\n\n", now.Format("15:04:05"), len(events))
	return printHistoryTable(os.Stdout, events)
}

func runHistoryClear(cmd *cobra.Command, args []string) error {
	store, err := history.NewStore()
	if err != nil {
		return fmt.Errorf("failed to create history store: %w", err)
	}

	if err := store.Save(&history.Data{}); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}

	fmt.Println("History cleared.")
	return nil
}

func printHistoryTable(out io.Writer, events []history.Event) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tEVENT\tPORT\tPROTO\tPID\tPROCESS")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\t%s\n",
			e.Timestamp.Format("2006-01-02 15:04:05"),
			strings.ToUpper(string(e.Type)),
			e.Port,
			e.Protocol,
			e.PID,
			e.Name,
		)
	}
	return w.Flush()
}
