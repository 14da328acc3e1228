package tui

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/lu-zhengda/portsniper/internal/process"
	"github.com/lu-zhengda/portsniper/internal/stats"
)

// Update handles all messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.adjustScroll()
		return m, nil

	case spinner.TickMsg:
		if !m.scanning {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case portsTickMsg:
		if m.paused || m.view != viewTable {
			return m, m.portsTick()
		}
		return m, tea.Batch(m.fetchPorts(), m.portsTick())

	case statsTickMsg:
		if m.paused {
			return m, m.statsTick()
		}
		return m, tea.Batch(m.fetchStats(), m.statsTick())

	case portsMsg:
		m.scanning = false
		m.scanErr = msg.err
		if msg.err == nil {
			m.ports = msg.ports
			m.loaded = true
			m.applyView()
		}
		return m, nil

	case statsMsg:
		m.stats = stats.GlobalStats(msg)
		return m, nil

	case killDoneMsg:
		m.killErr = msg.err
		m.killResult = ""
		if msg.err == nil {
			m.killResult = fmt.Sprintf("Sent %s to %s (PID %d) on port %d",
				msg.signal, msg.target.Name, msg.target.PID, msg.target.Port)
		}
		m.view = viewKillResult
		return m, nil

	case detailsMsg:
		m.details = msg.details
		m.detailsErr = msg.err
		m.view = viewInfo
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

		switch m.view {
		case viewTable:
			return m.updateTable(msg)
		case viewInfo:
			return m.updateInfo(msg)
		case viewKillConfirm:
			return m.updateKillConfirm(msg)
		case viewKillResult:
			return m.updateKillResult(msg)
		case viewSearch:
			return m.updateSearch(msg)
		}
	}

	return m, nil
}

func (m Model) updateTable(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "j", "down":
		if m.cursor < len(m.visible)-1 {
			m.cursor++
			m.adjustScroll()
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
			m.adjustScroll()
		}
	case "g", "home":
		m.cursor = 0
		m.adjustScroll()
	case "G", "end":
		m.cursor = max(0, len(m.visible)-1)
		m.adjustScroll()
	case "K", "x":
		if p := m.selectedPort(); p != nil {
			m.selected = p
			m.view = viewKillConfirm
		}
	case "i", "enter":
		if p := m.selectedPort(); p != nil {
			m.selected = p
			m.details = nil
			m.detailsErr = nil
			return m, m.fetchDetails(p.PID)
		}
	case "r":
		m.scanning = true
		return m, tea.Batch(m.fetchPorts(), m.fetchStats(), m.spinner.Tick)
	case "s":
		m.sortBy = (m.sortBy + 1) % sortFieldCount
		m.applyView()
	case "p":
		m.paused = !m.paused
	case "/":
		m.view = viewSearch
		m.search.Focus()
		return m, textinput.Blink
	case "esc":
		if m.search.Value() != "" {
			m.search.SetValue("")
			m.applyView()
		}
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.search.Blur()
		m.view = viewTable
		return m, nil
	case "esc":
		m.search.Blur()
		m.search.SetValue("")
		m.view = viewTable
		m.applyView()
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.applyView()
	return m, cmd
}

func (m Model) updateInfo(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc", "backspace":
		m.view = viewTable
	case "K", "x":
		if m.selected != nil {
			m.view = viewKillConfirm
		}
	}
	return m, nil
}

func (m Model) updateKillConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y":
		if m.selected != nil {
			return m, m.kill(*m.selected, process.SIGKILL)
		}
	case "t":
		if m.selected != nil {
			return m, m.kill(*m.selected, process.SIGTERM)
		}
	case "n", "N", "esc":
		m.view = viewTable
		m.selected = nil
	case "q":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updateKillResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc", "enter", "backspace":
		m.view = viewTable
		m.selected = nil
		m.killResult = ""
		m.killErr = nil
		m.scanning = true
		return m, tea.Batch(m.fetchPorts(), m.spinner.Tick)
	}
	return m, nil
}

// killFailure returns the message a user should see for a failed kill.
func killFailure(err error) string {
	var kerr *process.KillError
	if errors.As(err, &kerr) {
		return kerr.Message
	}
	return err.Error()
}
