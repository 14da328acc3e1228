package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lu-zhengda/portsniper/internal/stats"
)

const (
	gib      = 1 << 30
	barWidth = 20
)

// renderTelemetry draws the CPU and RAM line shown above the port table.
func renderTelemetry(s stats.GlobalStats) string {
	cpu := float64(s.CPUUsage)
	cpuText := lipgloss.NewStyle().Foreground(usageColor(cpu)).Bold(true).
		Render(fmt.Sprintf("%5.1f%%", cpu))

	memPct := s.MemoryPercent()
	memBar := lipgloss.NewStyle().Foreground(usageColor(memPct)).
		Render(usageBar(memPct, barWidth))

	return telemetryStyle.Render(fmt.Sprintf("CPU %s   RAM %s %.1f / %.1f GB",
		cpuText, memBar, float64(s.MemoryUsed)/gib, float64(s.MemoryTotal)/gib))
}

// usageBar renders percent as a fixed-width bar of filled and empty cells.
func usageBar(percent float64, width int) string {
	percent = min(max(percent, 0), 100)
	filled := int(percent / 100 * float64(width))
	return "[" + strings.Repeat("|", filled) + strings.Repeat(" ", width-filled) + "]"
}
