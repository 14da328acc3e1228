package port

import (
	"context"
	"fmt"
	"strings"

	"github.com/lu-zhengda/portsniper/internal/process"
	"github.com/lu-zhengda/portsniper/internal/runner"
	"go.uber.org/zap"
)

// Scanner defines the interface for discovering ports and their processes.
type Scanner interface {
	ListPorts(ctx context.Context) ([]PortInfo, error)
	FindByPort(ctx context.Context, port uint16) (*PortInfo, error)
	FindByProcess(ctx context.Context, name string) ([]PortInfo, error)
}

// lsofArgs lists TCP sockets in LISTEN state with numeric hosts and ports.
var lsofArgs = []string{"-iTCP", "-sTCP:LISTEN", "-P", "-n"}

// LsofScanner implements Scanner using lsof and a process table.
type LsofScanner struct {
	runner   runner.CmdRunner
	source   process.TableSource
	resolver *process.Resolver
	logger   *zap.Logger
}

// NewLsofScanner creates a new scanner backed by lsof.
func NewLsofScanner(r runner.CmdRunner, source process.TableSource, resolver *process.Resolver, logger *zap.Logger) *LsofScanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if resolver == nil {
		resolver = process.NewResolver(logger)
	}
	return &LsofScanner{runner: r, source: source, resolver: resolver, logger: logger}
}

// ListPorts returns one entry per listening TCP port, sorted by port.
//
// lsof exits non-zero when nothing matches, so only a failure to start it
// (or a timeout) is an error.
func (s *LsofScanner) ListPorts(ctx context.Context) ([]PortInfo, error) {
	out, err := s.runner.Run(ctx, "lsof", lsofArgs...)
	if err != nil {
		if !runner.IsExit(err) {
			return nil, fmt.Errorf("failed to run lsof: %w", err)
		}
		s.logger.Debug("lsof exited non-zero, using its output", zap.Error(err))
	}

	records := ParseLsofOutput(string(out))
	if len(records) == 0 {
		return []PortInfo{}, nil
	}

	table, err := s.source.Snapshot(ctx, uniquePIDs(records))
	if err != nil {
		return nil, fmt.Errorf("failed to read process table: %w", err)
	}

	ports := Aggregate(records, func(r ListenerRecord) string {
		return s.resolver.Resolve(table, r.PID, r.Command)
	})
	s.logger.Debug("listed ports", zap.Int("records", len(records)), zap.Int("ports", len(ports)))
	return ports, nil
}

// FindByPort returns the entry listening on port, or nil if there is none.
func (s *LsofScanner) FindByPort(ctx context.Context, port uint16) (*PortInfo, error) {
	ports, err := s.ListPorts(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range ports {
		if p.Port == port {
			return &p, nil
		}
	}
	return nil, nil
}

// FindByProcess returns all entries whose name contains name, ignoring case.
func (s *LsofScanner) FindByProcess(ctx context.Context, name string) ([]PortInfo, error) {
	ports, err := s.ListPorts(ctx)
	if err != nil {
		return nil, err
	}

	var matched []PortInfo
	lower := strings.ToLower(name)
	for _, p := range ports {
		if strings.Contains(strings.ToLower(p.Name), lower) {
			matched = append(matched, p)
		}
	}
	return matched, nil
}
