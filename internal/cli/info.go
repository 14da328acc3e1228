package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lu-zhengda/portsniper/internal/port"
	"github.com/lu-zhengda/portsniper/internal/process"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var infoCmd = &cobra.Command{
	Use:   "info <port>",
	Short: "Detailed info about a port and its process",
	Long:  "Display detailed information about the process listening on the specified port.",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

type infoOutput struct {
	port.PortInfo
	PPID       uint32   `json:"ppid,omitempty"`
	Command    string   `json:"command,omitempty"`
	User       string   `json:"user,omitempty"`
	Status     string   `json:"status,omitempty"`
	StartTime  string   `json:"start_time,omitempty"`
	CPUPercent float64  `json:"cpu_percent,omitempty"`
	MemoryRSS  uint64   `json:"memory_rss_bytes,omitempty"`
	Children   []uint32 `json:"children,omitempty"`
	Error      string   `json:"details_error,omitempty"`
}

func runInfo(cmd *cobra.Command, args []string) error {
	portNum, err := strconv.ParseUint(args[0], 10, 16)
	if err != nil || portNum == 0 {
		return fmt.Errorf("invalid port number %q", args[0])
	}

	ctx := context.Background()
	a := newApp()

	target, err := a.FindPort(ctx, uint16(portNum))
	if err != nil {
		return err
	}
	if target == nil {
		return fmt.Errorf("no process listening on port %d", portNum)
	}

	details, detailsErr := a.Details(ctx, target.PID)
	if detailsErr != nil {
		logger.Debug("process details unavailable", zap.Uint32("pid", target.PID), zap.Error(detailsErr))
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), buildInfoOutput(*target, details, detailsErr))
	}
	printInfoHuman(*target, details, detailsErr)
	return nil
}

func buildInfoOutput(p port.PortInfo, d *process.Details, detailsErr error) infoOutput {
	out := infoOutput{PortInfo: p}
	if detailsErr != nil {
		out.Error = detailsErr.Error()
	}
	if d == nil {
		return out
	}
	out.PPID = d.PPID
	out.Command = d.Command
	out.User = d.User
	out.Status = d.Status
	out.CPUPercent = d.CPUPercent
	out.MemoryRSS = d.MemRSS
	out.Children = d.Children
	if !d.StartTime.IsZero() {
		out.StartTime = d.StartTime.Format(time.RFC3339)
	}
	return out
}

func printInfoHuman(p port.PortInfo, d *process.Details, detailsErr error) {
	fmt.Printf("Port:        %d/%s\n", p.Port, p.Protocol)
	fmt.Printf("Process:     %s (PID %d)\n", p.Name, p.PID)

	if d == nil {
		if detailsErr != nil {
			fmt.Printf("Details:     (unavailable: %v)\n", detailsErr)
		}
		return
	}

	fmt.Printf("Command:     %s\n", d.Command)
	fmt.Printf("User:        %s\n", d.User)
	if d.Status != "" {
		fmt.Printf("Status:      %s\n", d.Status)
	}
	if !d.StartTime.IsZero() {
		ago := time.Since(d.StartTime).Truncate(time.Second)
		fmt.Printf("Started:     %s ago (%s)\n",
			formatDuration(ago),
			d.StartTime.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("CPU:         %.1f%%\n", d.CPUPercent)
	fmt.Printf("Memory:      %s (RSS)\n", formatBytes(d.MemRSS))
	if d.PPID > 0 {
		fmt.Printf("Parent PID:  %d\n", d.PPID)
	}
	if len(d.Children) > 0 {
		children := make([]string, len(d.Children))
		for i, c := range d.Children {
			children[i] = strconv.FormatUint(uint64(c), 10)
		}
		fmt.Printf("Children:    %s\n", strings.Join(children, ", "))
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	}
	hours := int(d.Hours())
	if hours < 24 {
		return fmt.Sprintf("%d hours", hours)
	}
	return fmt.Sprintf("%d days %d hours", hours/24, hours%24)
}

func formatBytes(b uint64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/gb)
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/mb)
	case b >= kb:
		return fmt.Sprintf("%.1f KB", float64(b)/kb)
	default:
		return fmt.Sprintf("%d B", b)
	}
}
