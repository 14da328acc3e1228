package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/lu-zhengda/portsniper/internal/app"
	"github.com/lu-zhengda/portsniper/internal/process"
	"github.com/spf13/cobra"
)

var (
	killPort   uint16
	signalFlag string
)

var killCmd = &cobra.Command{
	Use:   "kill [pid]",
	Short: "Kill a process by pid, or the owner of --port",
	Long: `Send a signal to a process. The default signal is taken from the
kill_signal config entry (SIGKILL unless changed). With --port, the
process listening on that port is targeted instead of an explicit pid.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runKill,
}

func init() {
	killCmd.Flags().Uint16Var(&killPort, "port", 0, "Kill the process listening on this port")
	killCmd.Flags().StringVar(&signalFlag, "signal", "", "Signal to send (KILL, TERM, INT, HUP)")
}

type killResult struct {
	PID    uint32 `json:"pid"`
	Signal string `json:"signal"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func runKill(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a := newApp()

	pid, err := resolveKillTarget(ctx, a, args)
	if err != nil {
		return err
	}

	sigName := signalFlag
	if sigName == "" {
		sigName = cfg.KillSignal
	}
	sig, err := process.ParseSignal(sigName)
	if err != nil {
		return err
	}

	if sig == process.SIGKILL {
		err = a.KillProcess(ctx, pid)
	} else {
		err = a.SignalProcess(ctx, pid, sig)
	}

	res := killResult{PID: pid, Signal: sig.String(), Status: "ok"}
	if err != nil {
		res.Status = "failed"
		res.Error = killMessage(err)
	}

	if jsonOutput {
		if perr := printJSON(cmd.OutOrStdout(), res); perr != nil {
			return perr
		}
		return err
	}

	if err != nil {
		return fmt.Errorf("failed to kill PID %d: %s", pid, res.Error)
	}
	fmt.Printf("Sent %s to PID %d.\n", sig, pid)
	return nil
}

// resolveKillTarget returns the pid from the positional argument, or the
// owner of --port when no argument is given.
func resolveKillTarget(ctx context.Context, a *app.App, args []string) (uint32, error) {
	switch {
	case len(args) == 1 && killPort > 0:
		return 0, errors.New("pass either a pid or --port, not both")
	case len(args) == 1:
		return parsePID(args[0])
	case killPort > 0:
		p, err := a.FindPort(ctx, killPort)
		if err != nil {
			return 0, err
		}
		if p == nil {
			return 0, fmt.Errorf("no process listening on port %d", killPort)
		}
		return p.PID, nil
	default:
		return 0, errors.New("a pid or --port is required")
	}
}

func parsePID(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid pid %q: must be a positive integer", s)
	}
	return uint32(n), nil
}

func killMessage(err error) string {
	var kerr *process.KillError
	if errors.As(err, &kerr) {
		return kerr.Message
	}
	return err.Error()
}
