// Package stats reports global CPU and memory utilization.
package stats

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"go.uber.org/zap"
)

// GlobalStats is a point-in-time utilization reading.
type GlobalStats struct {
	CPUUsage    float32 `json:"cpu_usage"`    // percent, 0-100
	MemoryTotal uint64  `json:"memory_total"` // bytes
	MemoryUsed  uint64  `json:"memory_used"`  // bytes
}

// MemoryPercent returns used memory as a percentage of total.
func (s GlobalStats) MemoryPercent() float64 {
	if s.MemoryTotal == 0 {
		return 0
	}
	return float64(s.MemoryUsed) / float64(s.MemoryTotal) * 100
}

// Sampler reads raw counters from the operating system.
type Sampler interface {
	// CPUPercent returns global CPU usage since the previous call.
	CPUPercent(ctx context.Context) (float64, error)
	Memory(ctx context.Context) (total, used uint64, err error)
}

// PsutilSampler implements Sampler with gopsutil.
type PsutilSampler struct{}

// CPUPercent returns the CPU usage accumulated since the previous call. The
// first call measures since boot.
func (PsutilSampler) CPUPercent(ctx context.Context) (float64, error) {
	pct, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, err
	}
	if len(pct) == 0 {
		return 0, fmt.Errorf("no cpu usage reported")
	}
	return pct[0], nil
}

// Memory returns total and used physical memory in bytes.
func (PsutilSampler) Memory(ctx context.Context) (uint64, uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, 0, err
	}
	return vm.Total, vm.Used, nil
}

// Gauge is the long-lived, mutex-guarded stats handle. Every Global call
// refreshes and reads under the lock, so CPU deltas are measured between
// consecutive requests regardless of which caller made them.
type Gauge struct {
	mu      sync.Mutex
	sampler Sampler
	last    GlobalStats
	logger  *zap.Logger
}

// NewGauge creates a Gauge over sampler.
func NewGauge(sampler Sampler, logger *zap.Logger) *Gauge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gauge{sampler: sampler, logger: logger}
}

// Global refreshes CPU and memory counters and returns the current reading.
// It never fails: when a counter cannot be read, its previous value is kept.
func (g *Gauge) Global(ctx context.Context) GlobalStats {
	g.mu.Lock()
	defer g.mu.Unlock()

	if pct, err := g.sampler.CPUPercent(ctx); err != nil {
		g.logger.Debug("failed to refresh cpu usage", zap.Error(err))
	} else {
		g.last.CPUUsage = clampPercent(pct)
	}

	if total, used, err := g.sampler.Memory(ctx); err != nil {
		g.logger.Debug("failed to refresh memory usage", zap.Error(err))
	} else {
		g.last.MemoryTotal = total
		g.last.MemoryUsed = min(used, total)
	}

	return g.last
}

func clampPercent(v float64) float32 {
	switch {
	case math.IsNaN(v), math.IsInf(v, 0), v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return float32(v)
	}
}
