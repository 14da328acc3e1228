package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lu-zhengda/portsniper/internal/process"
)

// View renders the TUI.
func (m Model) View() string {
	switch m.view {
	case viewInfo:
		return m.viewInfo()
	case viewKillConfirm:
		return m.viewKillConfirm()
	case viewKillResult:
		return m.viewKillResult()
	default:
		return m.viewTable()
	}
}

func (m Model) viewTable() string {
	var b strings.Builder

	title := titleStyle.Render("portsniper " + m.opts.Version)
	count := dimStyle.Render(fmt.Sprintf("Listening: %d", len(m.ports)))
	status := ""
	if m.paused {
		status = warnStyle.Render("  [PAUSED]")
	}
	if m.scanning && m.loaded {
		status += "  " + m.spinner.View()
	}
	b.WriteString(title + "  " + count + status + "\n")
	b.WriteString(renderTelemetry(m.stats) + "\n")

	if m.scanErr != nil {
		b.WriteString(errorStyle.Render("  Scan failed: "+m.scanErr.Error()) + "\n")
	}

	if !m.loaded {
		if m.scanErr == nil {
			b.WriteString("\n" + m.spinner.View() + " Scanning ports...\n")
		}
		return b.String()
	}

	arrow := func(f sortField) string {
		if m.sortBy == f {
			return " ^"
		}
		return ""
	}
	b.WriteString(headerStyle.Render(fmt.Sprintf("  %-8s %-6s %-9s %s",
		"PORT"+arrow(sortByPort),
		"PROTO",
		"PID"+arrow(sortByPID),
		"PROCESS"+arrow(sortByName),
	)) + "\n")

	if len(m.visible) == 0 {
		if m.search.Value() != "" {
			b.WriteString("\n  No results matching: " + m.search.Value() + "\n")
		} else {
			b.WriteString("\n  No listening ports found.\n")
		}
	} else {
		rows := m.tableRows()
		end := min(m.scrollOffset+rows, len(m.visible))
		nameWidth := max(16, m.width-30)

		for i := m.scrollOffset; i < end; i++ {
			p := m.visible[i]

			cursor := "  "
			if i == m.cursor {
				cursor = cursorStyle.Render("> ")
			}

			style := rowStyle
			if p.Name == process.UnknownName {
				style = unknownStyle
			}
			line := fmt.Sprintf("%-8d %-6s %-9d %s", p.Port, p.Protocol, p.PID, truncate(p.Name, nameWidth))
			b.WriteString(cursor + style.Render(line) + "\n")
		}

		if len(m.visible) > rows {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  [%d-%d of %d]",
				m.scrollOffset+1, end, len(m.visible))) + "\n")
		}
	}

	switch {
	case m.view == viewSearch:
		b.WriteString("\n" + m.search.View())
	case m.search.Value() != "":
		b.WriteString("\n" + dimStyle.Render("  filter: "+m.search.Value()))
	}

	b.WriteString(helpStyle.Render(fmt.Sprintf(
		"j/k:navigate  K:kill  i:info  r:refresh  s:sort(%s)  p:pause  /:search  q:quit", m.sortBy)) + "\n")

	return b.String()
}

func (m Model) viewInfo() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("portsniper -- Process Info") + "\n\n")

	if m.selected == nil {
		b.WriteString("  No port selected.\n")
		b.WriteString(helpStyle.Render("esc:back  q:quit") + "\n")
		return b.String()
	}

	p := m.selected
	b.WriteString(labelStyle.Render("Port:") + valueStyle.Render(fmt.Sprintf("%d/%s", p.Port, p.Protocol)) + "\n")
	b.WriteString(labelStyle.Render("Process:") + valueStyle.Render(fmt.Sprintf("%s (PID %d)", p.Name, p.PID)) + "\n")

	if m.detailsErr != nil {
		b.WriteString(labelStyle.Render("Details:") + errorStyle.Render(m.detailsErr.Error()) + "\n")
	} else if d := m.details; d != nil {
		b.WriteString(labelStyle.Render("Command:") + valueStyle.Render(d.Command) + "\n")
		b.WriteString(labelStyle.Render("User:") + valueStyle.Render(d.User) + "\n")
		if d.Status != "" {
			b.WriteString(labelStyle.Render("Status:") + valueStyle.Render(d.Status) + "\n")
		}
		if !d.StartTime.IsZero() {
			ago := time.Since(d.StartTime).Truncate(time.Second)
			b.WriteString(labelStyle.Render("Started:") + valueStyle.Render(
				fmt.Sprintf("%s ago (%s)", formatDuration(ago), d.StartTime.Format("2006-01-02 15:04:05")),
			) + "\n")
		}
		b.WriteString(labelStyle.Render("CPU:") + valueStyle.Render(fmt.Sprintf("%.1f%%", d.CPUPercent)) + "\n")
		b.WriteString(labelStyle.Render("Memory:") + valueStyle.Render(formatBytes(d.MemRSS)+" (RSS)") + "\n")
		if d.PPID > 0 {
			b.WriteString(labelStyle.Render("Parent PID:") + valueStyle.Render(strconv.FormatUint(uint64(d.PPID), 10)) + "\n")
		}
		if len(d.Children) > 0 {
			children := make([]string, len(d.Children))
			for i, c := range d.Children {
				children[i] = strconv.FormatUint(uint64(c), 10)
			}
			b.WriteString(labelStyle.Render("Children:") + valueStyle.Render(strings.Join(children, ", ")) + "\n")
		}
	}

	b.WriteString(helpStyle.Render("K:kill  esc:back  q:quit") + "\n")
	return b.String()
}

func (m Model) viewKillConfirm() string {
	var b strings.Builder

	b.WriteString(dangerStyle.Render(" KILL PROCESS ") + "\n\n")

	if m.selected == nil {
		b.WriteString("  No process selected.\n")
		b.WriteString(helpStyle.Render("esc:cancel  q:quit") + "\n")
		return b.String()
	}

	p := m.selected
	fmt.Fprintf(&b, "  Kill %q (PID %d) listening on port %d?\n\n", p.Name, p.PID, p.Port)
	if p.Name == process.UnknownName {
		b.WriteString(warnStyle.Render("  The owning process could not be identified.") + "\n\n")
	}

	b.WriteString("  " + dimStyle.Render("[y] SIGKILL (force)  [t] SIGTERM (graceful)  [n] cancel") + "\n")
	b.WriteString(helpStyle.Render("y:kill  t:terminate  n/esc:cancel") + "\n")
	return b.String()
}

func (m Model) viewKillResult() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("portsniper -- Kill Result") + "\n\n")

	if m.killErr != nil {
		b.WriteString(errorStyle.Render("  Failed: "+killFailure(m.killErr)) + "\n")
	} else {
		b.WriteString(successStyle.Render("  "+m.killResult) + "\n")
	}

	b.WriteString(helpStyle.Render("enter/esc:back  q:quit") + "\n")
	return b.String()
}

// truncate shortens s to maxLen runes, appending "..." when cut.
func truncate(s string, maxLen int) string {
	maxLen = max(maxLen, 4)
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

func formatBytes(b uint64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/gb)
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/mb)
	case b >= kb:
		return fmt.Sprintf("%.1f KB", float64(b)/kb)
	default:
		return fmt.Sprintf("%d B", b)
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	hours := int(d.Hours())
	if hours < 24 {
		return fmt.Sprintf("%dh %dm", hours, int(d.Minutes())%60)
	}
	return fmt.Sprintf("%dd %dh", hours/24, hours%24)
}
