package api

import (
	"errors"
	"time"

	"github.com/lu-zhengda/portsniper/internal/process"
	"github.com/lu-zhengda/portsniper/internal/stats"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "portsniper"

// Metrics holds the collectors exposed on /metrics. Each Server gets its own
// registry so tests never collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	scans        *prometheus.CounterVec
	scanDuration prometheus.Histogram
	listening    prometheus.Gauge
	kills        *prometheus.CounterVec
	cpuUsage     prometheus.Gauge
	memoryUsed   prometheus.Gauge
	memoryTotal  prometheus.Gauge
}

// NewMetrics registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		scans: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "port_scans_total",
			Help:      "Port scans performed, by result.",
		}, []string{"result"}),
		scanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "port_scan_duration_seconds",
			Help:      "Time spent listing listening ports.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		listening: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "listening_ports",
			Help:      "Listening ports found by the last successful scan.",
		}),
		kills: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kills_total",
			Help:      "Kill requests, by result.",
		}, []string{"result"}),
		cpuUsage: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cpu_usage_percent",
			Help:      "Global CPU usage at the last stats read.",
		}),
		memoryUsed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_used_bytes",
			Help:      "Used memory at the last stats read.",
		}),
		memoryTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_total_bytes",
			Help:      "Total memory at the last stats read.",
		}),
	}
}

// Registry returns the registry backing /metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observeScan(start time.Time, n int, err error) {
	m.scanDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		m.scans.WithLabelValues("error").Inc()
		return
	}
	m.scans.WithLabelValues("ok").Inc()
	m.listening.Set(float64(n))
}

func (m *Metrics) observeKill(err error) {
	var kerr *process.KillError
	switch {
	case err == nil:
		m.kills.WithLabelValues("ok").Inc()
	case errors.As(err, &kerr):
		m.kills.WithLabelValues("failed").Inc()
	default:
		m.kills.WithLabelValues("error").Inc()
	}
}

func (m *Metrics) observeStats(s stats.GlobalStats) {
	m.cpuUsage.Set(float64(s.CPUUsage))
	m.memoryUsed.Set(float64(s.MemoryUsed))
	m.memoryTotal.Set(float64(s.MemoryTotal))
}
