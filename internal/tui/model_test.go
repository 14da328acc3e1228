package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lu-zhengda/portsniper/internal/port"
	"github.com/lu-zhengda/portsniper/internal/process"
	"github.com/lu-zhengda/portsniper/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	ports    []port.PortInfo
	killErr  error
	killed   []uint32
	signaled []process.Signal
}

func (f *fakeBackend) ActivePorts(context.Context) ([]port.PortInfo, error) {
	return f.ports, nil
}

func (f *fakeBackend) GlobalStats(context.Context) stats.GlobalStats {
	return stats.GlobalStats{CPUUsage: 42, MemoryTotal: 16 << 30, MemoryUsed: 4 << 30}
}

func (f *fakeBackend) KillProcess(_ context.Context, pid uint32) error {
	f.killed = append(f.killed, pid)
	return f.killErr
}

func (f *fakeBackend) SignalProcess(_ context.Context, pid uint32, sig process.Signal) error {
	f.killed = append(f.killed, pid)
	f.signaled = append(f.signaled, sig)
	return f.killErr
}

func (f *fakeBackend) Details(_ context.Context, pid uint32) (*process.Details, error) {
	return &process.Details{PID: pid, Command: "node /home/app/server.js", User: "dev"}, nil
}

var samplePorts = []port.PortInfo{
	{PID: 100, Name: "nginx", Port: 80, Protocol: port.TCP},
	{PID: 1234, Name: "server.js", Port: 3000, Protocol: port.TCP},
	{PID: 42, Name: "postgres", Port: 5432, Protocol: port.TCP},
}

func key(s string) tea.KeyMsg {
	switch s {
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func loaded(t *testing.T, b *fakeBackend) Model {
	t.Helper()
	m := New(b, Options{Version: "test"})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	next, _ = next.Update(portsMsg{ports: b.ports})
	return next.(Model)
}

func press(t *testing.T, m Model, keys ...string) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	var next tea.Model = m
	for _, k := range keys {
		next, cmd = next.Update(key(k))
	}
	return next.(Model), cmd
}

func ports(m Model) []uint16 {
	out := make([]uint16, len(m.visible))
	for i, p := range m.visible {
		out[i] = p.Port
	}
	return out
}

func TestModel_SortCycle(t *testing.T) {
	m := loaded(t, &fakeBackend{ports: samplePorts})
	assert.Equal(t, []uint16{80, 3000, 5432}, ports(m))

	m, _ = press(t, m, "s")
	assert.Equal(t, sortByPID, m.sortBy)
	assert.Equal(t, []uint16{5432, 80, 3000}, ports(m))

	m, _ = press(t, m, "s")
	assert.Equal(t, sortByName, m.sortBy)
	assert.Equal(t, []uint16{80, 5432, 3000}, ports(m))

	m, _ = press(t, m, "s")
	assert.Equal(t, sortByPort, m.sortBy)
}

func TestModel_Search(t *testing.T) {
	m := loaded(t, &fakeBackend{ports: samplePorts})

	m, _ = press(t, m, "/", "3", "0")
	assert.Equal(t, viewSearch, m.view)
	assert.Equal(t, []uint16{3000}, ports(m))

	m, _ = press(t, m, "enter")
	assert.Equal(t, viewTable, m.view)
	assert.Equal(t, []uint16{3000}, ports(m))

	m, _ = press(t, m, "esc")
	assert.Equal(t, []uint16{80, 3000, 5432}, ports(m))
}

func TestModel_SearchByName(t *testing.T) {
	m := loaded(t, &fakeBackend{ports: samplePorts})

	m, _ = press(t, m, "/", "N", "G", "I")
	assert.Equal(t, []uint16{80}, ports(m))
}

func TestModel_PauseSkipsScan(t *testing.T) {
	m := loaded(t, &fakeBackend{ports: samplePorts})
	m, _ = press(t, m, "p")
	require.True(t, m.paused)

	next, cmd := m.Update(portsTickMsg{})
	require.NotNil(t, cmd)
	// Only the next tick is scheduled; no scan runs while paused.
	assert.Equal(t, m.ports, next.(Model).ports)
}

func TestModel_KillFlow(t *testing.T) {
	b := &fakeBackend{ports: samplePorts}
	m := loaded(t, b)

	m, _ = press(t, m, "j", "K")
	require.Equal(t, viewKillConfirm, m.view)
	require.NotNil(t, m.selected)
	assert.Equal(t, uint32(1234), m.selected.PID)

	m, cmd := press(t, m, "y")
	require.NotNil(t, cmd)
	msg := cmd()
	assert.Equal(t, []uint32{1234}, b.killed)

	next, _ := m.Update(msg)
	m = next.(Model)
	assert.Equal(t, viewKillResult, m.view)
	assert.Contains(t, m.killResult, "SIGKILL")
	assert.Contains(t, m.View(), "server.js")

	m, cmd = press(t, m, "enter")
	assert.Equal(t, viewTable, m.view)
	assert.True(t, m.scanning)
	assert.NotNil(t, cmd)
}

func TestModel_KillTerm(t *testing.T) {
	b := &fakeBackend{ports: samplePorts}
	m := loaded(t, b)

	m, _ = press(t, m, "K")
	_, cmd := press(t, m, "t")
	require.NotNil(t, cmd)
	cmd()

	assert.Equal(t, []process.Signal{process.SIGTERM}, b.signaled)
	assert.Equal(t, []uint32{100}, b.killed)
}

func TestModel_KillFailureShowsMessage(t *testing.T) {
	b := &fakeBackend{ports: samplePorts, killErr: &process.KillError{PID: 100, Message: "Operation not permitted"}}
	m := loaded(t, b)

	m, _ = press(t, m, "K")
	m, cmd := press(t, m, "y")
	next, _ := m.Update(cmd())
	m = next.(Model)

	assert.Equal(t, viewKillResult, m.view)
	assert.Contains(t, m.View(), "Operation not permitted")
}

func TestModel_KillCancel(t *testing.T) {
	b := &fakeBackend{ports: samplePorts}
	m := loaded(t, b)

	m, _ = press(t, m, "K", "n")

	assert.Equal(t, viewTable, m.view)
	assert.Nil(t, m.selected)
	assert.Empty(t, b.killed)
}

func TestModel_InfoView(t *testing.T) {
	m := loaded(t, &fakeBackend{ports: samplePorts})

	m, cmd := press(t, m, "j", "i")
	require.NotNil(t, cmd)
	next, _ := m.Update(cmd())
	m = next.(Model)

	require.Equal(t, viewInfo, m.view)
	out := m.View()
	assert.Contains(t, out, "node /home/app/server.js")
	assert.Contains(t, out, "3000/TCP")
}

func TestModel_ScanErrorKeepsPreviousPorts(t *testing.T) {
	m := loaded(t, &fakeBackend{ports: samplePorts})

	next, _ := m.Update(portsMsg{err: errors.New("failed to run lsof")})
	m = next.(Model)

	assert.Len(t, m.visible, 3)
	assert.Contains(t, m.View(), "failed to run lsof")
}

func TestModel_StatsMsg(t *testing.T) {
	m := loaded(t, &fakeBackend{ports: samplePorts})

	next, _ := m.Update(statsMsg{CPUUsage: 91, MemoryTotal: 8 << 30, MemoryUsed: 2 << 30})
	m = next.(Model)

	out := m.View()
	assert.Contains(t, out, "91.0%")
	assert.Contains(t, out, "2.0 / 8.0 GB")
}

func TestUsageColor(t *testing.T) {
	assert.Equal(t, colorGreen, usageColor(0))
	assert.Equal(t, colorGreen, usageColor(49.9))
	assert.Equal(t, colorYellow, usageColor(50))
	assert.Equal(t, colorYellow, usageColor(79.9))
	assert.Equal(t, colorRed, usageColor(80))
	assert.Equal(t, colorRed, usageColor(100))
}

func TestUsageBar(t *testing.T) {
	assert.Equal(t, "[     ]", usageBar(0, 5))
	assert.Equal(t, "[||   ]", usageBar(40, 5))
	assert.Equal(t, "[|||||]", usageBar(150, 5))
	assert.Equal(t, "[     ]", usageBar(-3, 5))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.True(t, strings.HasSuffix(truncate("ünïcödé-name", 8), "..."))
}
