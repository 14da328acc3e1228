// Package tui implements the interactive portsniper dashboard.
package tui

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lu-zhengda/portsniper/internal/port"
	"github.com/lu-zhengda/portsniper/internal/process"
	"github.com/lu-zhengda/portsniper/internal/stats"
	"github.com/muesli/termenv"
)

// Backend is what the dashboard needs from the application. *app.App
// satisfies it.
type Backend interface {
	ActivePorts(ctx context.Context) ([]port.PortInfo, error)
	GlobalStats(ctx context.Context) stats.GlobalStats
	KillProcess(ctx context.Context, pid uint32) error
	SignalProcess(ctx context.Context, pid uint32, sig process.Signal) error
	Details(ctx context.Context, pid uint32) (*process.Details, error)
}

// Options configures the dashboard.
type Options struct {
	Version         string
	RefreshInterval time.Duration // port list
	StatsInterval   time.Duration // CPU/memory bar
	ColorEnabled    bool
}

type viewState int

const (
	viewTable viewState = iota
	viewInfo
	viewKillConfirm
	viewKillResult
	viewSearch
)

type sortField int

const (
	sortByPort sortField = iota
	sortByPID
	sortByName
	sortFieldCount
)

func (f sortField) String() string {
	switch f {
	case sortByPID:
		return "pid"
	case sortByName:
		return "name"
	default:
		return "port"
	}
}

type portsMsg struct {
	ports []port.PortInfo
	err   error
}

type statsMsg stats.GlobalStats

type portsTickMsg time.Time

type statsTickMsg time.Time

type killDoneMsg struct {
	target port.PortInfo
	signal process.Signal
	err    error
}

type detailsMsg struct {
	details *process.Details
	err     error
}

// Model is the bubbletea model for the dashboard.
type Model struct {
	backend Backend
	opts    Options

	ports   []port.PortInfo
	visible []port.PortInfo // ports after search and sort
	scanErr error
	stats   stats.GlobalStats
	loaded  bool

	cursor       int
	scrollOffset int
	sortBy       sortField
	paused       bool
	search       textinput.Model

	selected   *port.PortInfo
	details    *process.Details
	detailsErr error

	killResult string
	killErr    error

	scanning bool
	spinner  spinner.Model

	width  int
	height int

	view viewState
}

// New creates the dashboard model.
func New(backend Backend, opts Options) Model {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = 3 * time.Second
	}
	if opts.StatsInterval <= 0 {
		opts.StatsInterval = 2 * time.Second
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorCyan)

	ti := textinput.New()
	ti.Placeholder = "port, pid or name"
	ti.CharLimit = 64
	ti.Width = 32
	ti.Prompt = "/ "
	ti.Blur()

	return Model{
		backend:  backend,
		opts:     opts,
		search:   ti,
		scanning: true,
		spinner:  sp,
		view:     viewTable,
	}
}

// Run starts the dashboard on the alternate screen and blocks until it exits.
func Run(backend Backend, opts Options) error {
	if !opts.ColorEnabled {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
	p := tea.NewProgram(New(backend, opts), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running tui: %w", err)
	}
	return nil
}

// Init kicks off the first scan and stats read and starts both tickers.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.fetchPorts(),
		m.fetchStats(),
		m.portsTick(),
		m.statsTick(),
	)
}

func (m Model) portsTick() tea.Cmd {
	return tea.Tick(m.opts.RefreshInterval, func(t time.Time) tea.Msg {
		return portsTickMsg(t)
	})
}

func (m Model) statsTick() tea.Cmd {
	return tea.Tick(m.opts.StatsInterval, func(t time.Time) tea.Msg {
		return statsTickMsg(t)
	})
}

func (m Model) fetchPorts() tea.Cmd {
	b := m.backend
	return func() tea.Msg {
		ports, err := b.ActivePorts(context.Background())
		return portsMsg{ports: ports, err: err}
	}
}

func (m Model) fetchStats() tea.Cmd {
	b := m.backend
	return func() tea.Msg {
		return statsMsg(b.GlobalStats(context.Background()))
	}
}

func (m Model) fetchDetails(pid uint32) tea.Cmd {
	b := m.backend
	return func() tea.Msg {
		d, err := b.Details(context.Background(), pid)
		return detailsMsg{details: d, err: err}
	}
}

func (m Model) kill(target port.PortInfo, sig process.Signal) tea.Cmd {
	b := m.backend
	return func() tea.Msg {
		ctx := context.Background()
		var err error
		if sig == process.SIGKILL {
			err = b.KillProcess(ctx, target.PID)
		} else {
			err = b.SignalProcess(ctx, target.PID, sig)
		}
		return killDoneMsg{target: target, signal: sig, err: err}
	}
}

// applyView rebuilds the visible rows from the last scan, the search query
// and the sort field, keeping the cursor in range.
func (m *Model) applyView() {
	query := strings.ToLower(strings.TrimSpace(m.search.Value()))

	visible := make([]port.PortInfo, 0, len(m.ports))
	for _, p := range m.ports {
		if query != "" && !matches(p, query) {
			continue
		}
		visible = append(visible, p)
	}

	slices.SortStableFunc(visible, func(a, b port.PortInfo) int {
		switch m.sortBy {
		case sortByPID:
			return cmp.Compare(a.PID, b.PID)
		case sortByName:
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		default:
			return cmp.Compare(a.Port, b.Port)
		}
	})
	m.visible = visible

	if m.cursor >= len(m.visible) {
		m.cursor = max(0, len(m.visible)-1)
	}
	m.adjustScroll()
}

func matches(p port.PortInfo, query string) bool {
	return strings.Contains(strings.ToLower(p.Name), query) ||
		strings.Contains(strconv.FormatUint(uint64(p.Port), 10), query) ||
		strings.Contains(strconv.FormatUint(uint64(p.PID), 10), query)
}

func (m *Model) selectedPort() *port.PortInfo {
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return nil
	}
	p := m.visible[m.cursor]
	return &p
}

func (m *Model) adjustScroll() {
	rows := m.tableRows()
	if m.cursor < m.scrollOffset {
		m.scrollOffset = m.cursor
	}
	if m.cursor >= m.scrollOffset+rows {
		m.scrollOffset = m.cursor - rows + 1
	}
	m.scrollOffset = min(m.scrollOffset, max(0, len(m.visible)-rows))
	m.scrollOffset = max(m.scrollOffset, 0)
}

// tableRows is the number of port rows that fit below the title, telemetry
// bar and column header and above the help line.
func (m Model) tableRows() int {
	const reserved = 8
	return max(1, m.height-reserved)
}
