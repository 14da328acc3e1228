package process

import (
	"context"
	"fmt"
	"sync"

	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Entry is what the process table knows about one pid.
type Entry struct {
	Name string
	Args []string
}

// Table is a point-in-time snapshot of process names and argument vectors.
type Table map[uint32]Entry

// TableSource builds process table snapshots.
type TableSource interface {
	Snapshot(ctx context.Context, pids []uint32) (Table, error)
}

// snapshotWorkers bounds concurrent per-process lookups.
const snapshotWorkers = 8

// PsutilSource reads the live process table through gopsutil. Each call
// builds a fresh snapshot and shares no state with the stats gauge.
type PsutilSource struct {
	logger *zap.Logger
}

// NewPsutilSource creates a PsutilSource.
func NewPsutilSource(logger *zap.Logger) *PsutilSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PsutilSource{logger: logger}
}

// Snapshot looks up the given pids. Pids that no longer exist, or whose name
// cannot be read, are left out of the table.
func (s *PsutilSource) Snapshot(ctx context.Context, pids []uint32) (Table, error) {
	table := make(Table, len(pids))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(snapshotWorkers)
	for _, pid := range pids {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			entry, ok := s.lookup(ctx, pid)
			if !ok {
				return nil
			}
			mu.Lock()
			table[pid] = entry
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to snapshot process table: %w", err)
	}
	return table, nil
}

func (s *PsutilSource) lookup(ctx context.Context, pid uint32) (Entry, bool) {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		s.logger.Debug("process not found", zap.Uint32("pid", pid), zap.Error(err))
		return Entry{}, false
	}
	name, err := p.NameWithContext(ctx)
	if err != nil {
		s.logger.Debug("failed to read process name", zap.Uint32("pid", pid), zap.Error(err))
		return Entry{}, false
	}
	// Argument vectors of other users' processes may be unreadable; the name
	// alone is still useful.
	args, err := p.CmdlineSliceWithContext(ctx)
	if err != nil {
		s.logger.Debug("failed to read process arguments", zap.Uint32("pid", pid), zap.Error(err))
		args = nil
	}
	return Entry{Name: name, Args: args}, true
}

// StaticSource serves a fixed table. Useful in tests and for replaying
// captured snapshots.
type StaticSource struct {
	Table Table
	Err   error
}

// Snapshot returns the subset of the static table for pids.
func (s *StaticSource) Snapshot(_ context.Context, pids []uint32) (Table, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	out := make(Table, len(pids))
	for _, pid := range pids {
		if e, ok := s.Table[pid]; ok {
			out[pid] = e
		}
	}
	return out, nil
}
