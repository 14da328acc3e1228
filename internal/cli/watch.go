package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lu-zhengda/portsniper/internal/app"
	"github.com/lu-zhengda/portsniper/internal/port"
	"github.com/spf13/cobra"
)

var (
	watchInterval int
	watchAlert    bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Auto-refresh the port table in the terminal",
	Long: `Continuously display listening ports with periodic refresh.

With --alert, monitors for new port listeners that appear after the initial
scan. When a new listener is detected, prints an alert and exits with code 1.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().IntVar(&watchInterval, "interval", 0, "Refresh interval in seconds (default: refresh_interval from config)")
	watchCmd.Flags().Uint16Var(&filterPort, "port", 0, "Filter by port number")
	watchCmd.Flags().StringVar(&filterProc, "process", "", "Filter by process name")
	watchCmd.Flags().BoolVar(&watchAlert, "alert", false, "Alert and exit on new port listeners")
}

// alertExitError is returned when --alert detects new ports so the process
// exits non-zero.
type alertExitError struct {
	count int
}

func (e *alertExitError) Error() string {
	return fmt.Sprintf("alert: %d new port listener(s) detected", e.count)
}

type alertOutput struct {
	Alert string          `json:"alert"`
	Count int             `json:"count"`
	Ports []port.PortInfo `json:"ports"`
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	interval := seconds(cfg.RefreshInterval)
	if watchInterval > 0 {
		interval = seconds(watchInterval)
	}

	a := newApp()
	if watchAlert {
		return watchForNew(ctx, a, interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := watchOnce(ctx, a); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nStopped watching.")
			return nil
		case <-ticker.C:
			if err := watchOnce(ctx, a); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
		}
	}
}

func watchForNew(ctx context.Context, a *app.App, interval time.Duration) error {
	baseline, err := scanFiltered(ctx, a)
	if err != nil {
		return err
	}
	known := portKeySet(baseline)

	if !jsonOutput {
		fmt.Printf("Monitoring %d port(s) for new listeners... (interval: %s)\n", len(baseline), interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if !jsonOutput {
				fmt.Println("\nStopped watching.")
			}
			return nil
		case <-ticker.C:
			current, err := scanFiltered(ctx, a)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}

			fresh := findNewPorts(current, known)
			if len(fresh) == 0 {
				continue
			}
			if jsonOutput {
				if err := printJSON(os.Stdout, alertOutput{Alert: "new_port_listeners", Count: len(fresh), Ports: fresh}); err != nil {
					return err
				}
			} else {
				fmt.Printf("\nALERT: %d new port listener(s) detected!\n\n", len(fresh))
				if err := printPortTable(os.Stdout, fresh); err != nil {
					return err
				}
			}
			return &alertExitError{count: len(fresh)}
		}
	}
}

func scanFiltered(ctx context.Context, a *app.App) ([]port.PortInfo, error) {
	ports, err := a.ActivePorts(ctx)
	if err != nil {
		return nil, err
	}
	return filterPorts(ports, filterPort, filterProc), nil
}

func portKey(p port.PortInfo) string {
	return fmt.Sprintf("%d/%s", p.Port, p.Protocol)
}

func portKeySet(ports []port.PortInfo) map[string]struct{} {
	keys := make(map[string]struct{}, len(ports))
	for _, p := range ports {
		keys[portKey(p)] = struct{}{}
	}
	return keys
}

// findNewPorts returns entries whose port/protocol is not in known.
func findNewPorts(current []port.PortInfo, known map[string]struct{}) []port.PortInfo {
	var fresh []port.PortInfo
	for _, p := range current {
		if _, ok := known[portKey(p)]; !ok {
			fresh = append(fresh, p)
		}
	}
	return fresh
}

func watchOnce(ctx context.Context, a *app.App) error {
	ports, err := scanFiltered(ctx, a)
	if err != nil {
		return err
	}

	// Clear screen.
	fmt.Print("\033[2J\033[H")
	fmt.Printf("portsniper watch | Listening: %d | %s | Ctrl+C to stop\n\n",
		len(ports), time.Now().Format("15:04:05"))

	if len(ports) == 0 {
		fmt.Println("No ports found matching filter.")
		return nil
	}
	return printPortTable(os.Stdout, ports)
}
