package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/lu-zhengda/portsniper/internal/api"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve ports, stats and kill over a loopback HTTP API",
	Long: `Start a JSON API for desktop frontends:

  GET  /api/ports   listening ports
  GET  /api/stats   global CPU and memory usage
  POST /api/kill    {"pid": N}
  GET  /metrics     Prometheus metrics

The address must be a loopback address. Stop with Ctrl+C.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: listen_addr from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	addr := cfg.ListenAddr
	if serveAddr != "" {
		addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting api", zap.String("addr", addr))
	cmd.Printf("portsniper API listening on http://%s (Ctrl+C to stop)\n", addr)
	return api.New(newApp(), logger.Named("api")).ListenAndServe(ctx, addr)
}
