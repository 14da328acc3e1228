package stats

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSampler struct {
	mu     sync.Mutex
	cpu    []float64
	cpuErr error
	total  uint64
	used   uint64
	memErr error
	calls  int
}

func (f *fakeSampler) CPUPercent(context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.cpuErr != nil {
		return 0, f.cpuErr
	}
	if len(f.cpu) == 0 {
		return 0, nil
	}
	v := f.cpu[0]
	if len(f.cpu) > 1 {
		f.cpu = f.cpu[1:]
	}
	return v, nil
}

func (f *fakeSampler) Memory(context.Context) (uint64, uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.total, f.used, f.memErr
}

func TestGauge_Global(t *testing.T) {
	s := &fakeSampler{cpu: []float64{12.5, 40}, total: 16 << 30, used: 6 << 30}
	g := NewGauge(s, nil)

	first := g.Global(context.Background())
	assert.Equal(t, float32(12.5), first.CPUUsage)
	assert.Equal(t, uint64(16<<30), first.MemoryTotal)
	assert.Equal(t, uint64(6<<30), first.MemoryUsed)
	assert.InDelta(t, 37.5, first.MemoryPercent(), 0.001)

	second := g.Global(context.Background())
	assert.Equal(t, float32(40), second.CPUUsage)
	assert.Equal(t, 2, s.calls)
}

func TestGauge_Clamping(t *testing.T) {
	tests := []struct {
		name string
		cpu  float64
		want float32
	}{
		{"negative", -3, 0},
		{"over hundred", 100.4, 100},
		{"nan", math.NaN(), 0},
		{"inf", math.Inf(1), 0},
		{"normal", 55.5, 55.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGauge(&fakeSampler{cpu: []float64{tt.cpu}}, nil)
			assert.Equal(t, tt.want, g.Global(context.Background()).CPUUsage)
		})
	}
}

func TestGauge_UsedNeverExceedsTotal(t *testing.T) {
	g := NewGauge(&fakeSampler{total: 100, used: 250}, nil)

	got := g.Global(context.Background())
	assert.Equal(t, uint64(100), got.MemoryUsed)
	assert.LessOrEqual(t, got.MemoryUsed, got.MemoryTotal)
}

func TestGauge_ErrorsKeepPreviousReading(t *testing.T) {
	s := &fakeSampler{cpu: []float64{20}, total: 1000, used: 400}
	g := NewGauge(s, nil)
	before := g.Global(context.Background())

	s.mu.Lock()
	s.cpuErr = errors.New("cpu busy")
	s.memErr = errors.New("no meminfo")
	s.mu.Unlock()

	assert.Equal(t, before, g.Global(context.Background()))
}

func TestGauge_ConcurrentCallers(t *testing.T) {
	s := &fakeSampler{cpu: []float64{10}, total: 1000, used: 500}
	g := NewGauge(s, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := g.Global(context.Background())
			assert.LessOrEqual(t, got.MemoryUsed, got.MemoryTotal)
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, s.calls)
}

func TestGauge_PsutilTwice(t *testing.T) {
	g := NewGauge(PsutilSampler{}, nil)

	for i := 0; i < 2; i++ {
		got := g.Global(context.Background())
		require.False(t, math.IsNaN(float64(got.CPUUsage)))
		assert.GreaterOrEqual(t, got.CPUUsage, float32(0))
		assert.LessOrEqual(t, got.CPUUsage, float32(100))
		assert.LessOrEqual(t, got.MemoryUsed, got.MemoryTotal)
	}
}

func TestMemoryPercent_ZeroTotal(t *testing.T) {
	assert.Zero(t, GlobalStats{}.MemoryPercent())
}
