package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/lu-zhengda/portsniper/internal/port"
	"github.com/spf13/cobra"
)

var (
	filterPort uint16
	filterProc string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all listening ports",
	Long: `Display one row per listening TCP port with the process that owns it,
sorted by port number.`,
	RunE: runList,
}

func init() {
	listCmd.Flags().Uint16Var(&filterPort, "port", 0, "Filter by port number")
	listCmd.Flags().StringVar(&filterProc, "process", "", "Filter by process name (substring, case-insensitive)")
}

func runList(cmd *cobra.Command, args []string) error {
	ports, err := newApp().ActivePorts(context.Background())
	if err != nil {
		return err
	}

	ports = filterPorts(ports, filterPort, filterProc)

	if jsonOutput {
		return printJSON(os.Stdout, ports)
	}
	if len(ports) == 0 {
		fmt.Println("No listening ports found.")
		return nil
	}
	return printPortTable(os.Stdout, ports)
}

// filterPorts keeps entries matching the port number (0 matches all) and
// the case-insensitive name substring ("" matches all).
func filterPorts(ports []port.PortInfo, portNum uint16, name string) []port.PortInfo {
	name = strings.ToLower(name)
	filtered := make([]port.PortInfo, 0, len(ports))
	for _, p := range ports {
		if portNum > 0 && p.Port != portNum {
			continue
		}
		if name != "" && !strings.Contains(strings.ToLower(p.Name), name) {
			continue
		}
		filtered = append(filtered, p)
	}
	return filtered
}

func printPortTable(out io.Writer, ports []port.PortInfo) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PORT\tPROTO\tPID\tPROCESS")
	for _, p := range ports {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", p.Port, p.Protocol, p.PID, p.Name)
	}
	return w.Flush()
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
