// Package app wires the scanner, stats gauge and terminator into the
// operations every shell (TUI, CLI, HTTP API) exposes.
package app

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/lu-zhengda/portsniper/internal/config"
	"github.com/lu-zhengda/portsniper/internal/port"
	"github.com/lu-zhengda/portsniper/internal/process"
	"github.com/lu-zhengda/portsniper/internal/runner"
	"github.com/lu-zhengda/portsniper/internal/stats"
	"go.uber.org/zap"
)

// App owns the long-lived resources shared by all shells. The stats gauge is
// created once here; port listing takes its own process snapshot per call and
// never touches the gauge's lock.
type App struct {
	scanner    port.Scanner
	gauge      *stats.Gauge
	terminator *process.Terminator
	inspector  process.Inspector
	exclude    []string
	logger     *zap.Logger
}

// Options lets tests substitute the OS-facing pieces.
type Options struct {
	Scanner    port.Scanner
	Gauge      *stats.Gauge
	Terminator *process.Terminator
	Inspector  process.Inspector
	Exclude    []string
	Logger     *zap.Logger
}

// New builds an App backed by the real system.
func New(cfg *config.Config, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	cmdRunner := runner.NewExec(cfg.Timeout())
	resolver := process.NewResolver(logger.Named("resolver"), cfg.InterpreterHosts...)
	scanner := port.NewLsofScanner(cmdRunner, process.NewPsutilSource(logger.Named("table")), resolver, logger.Named("scanner"))

	return NewWithOptions(Options{
		Scanner:    scanner,
		Gauge:      stats.NewGauge(stats.PsutilSampler{}, logger.Named("stats")),
		Terminator: process.NewTerminator(cmdRunner, logger.Named("terminator")),
		Inspector:  process.PsutilInspector{},
		Exclude:    cfg.Exclude,
		Logger:     logger,
	})
}

// NewWithOptions builds an App from explicit parts.
func NewWithOptions(o Options) *App {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return &App{
		scanner:    o.Scanner,
		gauge:      o.Gauge,
		terminator: o.Terminator,
		inspector:  o.Inspector,
		exclude:    o.Exclude,
		logger:     o.Logger,
	}
}

// ActivePorts lists listening TCP ports, one per port, sorted by port.
// Processes named in the exclude list are hidden.
func (a *App) ActivePorts(ctx context.Context) ([]port.PortInfo, error) {
	ports, err := a.scanner.ListPorts(ctx)
	if err != nil {
		a.logger.Warn("port scan failed", zap.Error(err))
		return nil, fmt.Errorf("failed to scan ports: %w", err)
	}
	if len(a.exclude) == 0 {
		return ports, nil
	}

	filtered := make([]port.PortInfo, 0, len(ports))
	for _, p := range ports {
		if a.excluded(p.Name) {
			continue
		}
		filtered = append(filtered, p)
	}
	return filtered, nil
}

func (a *App) excluded(name string) bool {
	return slices.ContainsFunc(a.exclude, func(e string) bool {
		return strings.EqualFold(e, name)
	})
}

// GlobalStats returns current CPU and memory utilization. It never fails.
func (a *App) GlobalStats(ctx context.Context) stats.GlobalStats {
	return a.gauge.Global(ctx)
}

// KillProcess force-kills pid. Failures are *process.KillError.
func (a *App) KillProcess(ctx context.Context, pid uint32) error {
	return a.terminator.Kill(ctx, pid)
}

// SignalProcess delivers sig to pid.
func (a *App) SignalProcess(ctx context.Context, pid uint32, sig process.Signal) error {
	return a.terminator.Send(ctx, pid, sig)
}

// FindPort returns the entry listening on p, or nil.
func (a *App) FindPort(ctx context.Context, p uint16) (*port.PortInfo, error) {
	info, err := a.scanner.FindByPort(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to find port %d: %w", p, err)
	}
	return info, nil
}

// Details returns detailed information about pid.
func (a *App) Details(ctx context.Context, pid uint32) (*process.Details, error) {
	return a.inspector.Details(ctx, pid)
}
