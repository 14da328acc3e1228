package process

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// Details holds detailed information about a running process.
type Details struct {
	PID        uint32
	PPID       uint32
	Name       string
	Command    string // full command line
	User       string
	StartTime  time.Time
	CPUPercent float64
	MemRSS     uint64 // in bytes
	Status     string
	Children   []uint32
}

// Inspector retrieves detailed process information.
type Inspector interface {
	Details(ctx context.Context, pid uint32) (*Details, error)
}

// PsutilInspector implements Inspector with gopsutil.
type PsutilInspector struct{}

// Details retrieves detailed information for a process. Only a missing
// process is an error; individual unreadable fields are left empty.
func (PsutilInspector) Details(ctx context.Context, pid uint32) (*Details, error) {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return nil, fmt.Errorf("process %d not found: %w", pid, err)
	}

	d := &Details{PID: pid}
	if name, err := p.NameWithContext(ctx); err == nil {
		d.Name = CleanName(name)
	}
	if cmd, err := p.CmdlineWithContext(ctx); err == nil {
		d.Command = strings.TrimSpace(cmd)
	}
	if ppid, err := p.PpidWithContext(ctx); err == nil && ppid > 0 {
		d.PPID = uint32(ppid)
	}
	if u, err := p.UsernameWithContext(ctx); err == nil {
		d.User = u
	}
	if ms, err := p.CreateTimeWithContext(ctx); err == nil && ms > 0 {
		d.StartTime = time.UnixMilli(ms)
	}
	if cpu, err := p.CPUPercentWithContext(ctx); err == nil {
		d.CPUPercent = cpu
	}
	if mem, err := p.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		d.MemRSS = mem.RSS
	}
	if st, err := p.StatusWithContext(ctx); err == nil && len(st) > 0 {
		d.Status = strings.Join(st, ",")
	}
	if children, err := p.ChildrenWithContext(ctx); err == nil {
		for _, c := range children {
			d.Children = append(d.Children, uint32(c.Pid))
		}
		sort.Slice(d.Children, func(i, j int) bool { return d.Children[i] < d.Children[j] })
	}
	return d, nil
}
