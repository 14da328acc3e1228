package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/lu-zhengda/portsniper/internal/stats"
	"github.com/spf13/cobra"
)

var statsSample time.Duration

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show global CPU and memory usage",
	Long: `Print system-wide CPU utilization and memory used/total.

CPU usage is measured between two reads --sample apart; a zero sample
reports usage since the previous read in this process.`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().DurationVar(&statsSample, "sample", 500*time.Millisecond, "CPU sampling window")
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a := newApp()

	st := a.GlobalStats(ctx)
	if statsSample > 0 {
		time.Sleep(statsSample)
		st = a.GlobalStats(ctx)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), st)
	}
	printStatsHuman(st)
	return nil
}

func printStatsHuman(st stats.GlobalStats) {
	fmt.Printf("CPU:     %.1f%%\n", st.CPUUsage)
	fmt.Printf("Memory:  %s / %s (%.1f%%)\n",
		formatBytes(st.MemoryUsed), formatBytes(st.MemoryTotal), st.MemoryPercent())
}
