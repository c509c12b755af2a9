package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/fleethelm/internal/discovery"
)

func f64(v float64) *float64 { return &v }

func testDevices() []discovery.Device {
	return []discovery.Device{
		{
			Hostname:            "voron",
			IP:                  "192.168.1.40",
			BaseURL:             "http://192.168.1.40:7125",
			Status:              "Printing",
			ExtruderTemperature: f64(240),
			PrintProgress:       0.42,
			FilePath:            "/home/pi/printer_data/gcodes/benchy.gcode",
		},
		{
			Hostname: "ender",
			IP:       "192.168.1.41",
			BaseURL:  "http://192.168.1.41:7125",
			Status:   "Idle",
		},
	}
}

func newTestModel(scan ScanFunc) WatchModel {
	return NewWatchModel(context.Background(), scan, time.Minute)
}

// drive feeds msg to m and returns the updated model.
func drive(t *testing.T, m WatchModel, msg tea.Msg) (WatchModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	wm, ok := next.(WatchModel)
	require.True(t, ok)
	return wm, cmd
}

func TestNewWatchModel_DefaultInterval(t *testing.T) {
	m := NewWatchModel(context.Background(), nil, 0)
	assert.Equal(t, DefaultInterval, m.Interval)
	assert.Contains(t, m.View(), "waiting for first scan")
}

func TestWatch_ScanPopulatesTable(t *testing.T) {
	calls := 0
	m := newTestModel(func(context.Context) ([]discovery.Device, error) {
		calls++
		return testDevices(), nil
	})

	m, cmd := drive(t, m, scanStartMsg{})
	require.NotNil(t, cmd)
	assert.True(t, m.Scanning)

	// A second start while scanning is ignored.
	m, cmd = drive(t, m, scanStartMsg{})
	assert.Nil(t, cmd)

	msg := m.runScan()()
	done, ok := msg.(scanCompleteMsg)
	require.True(t, ok)
	assert.Equal(t, 1, calls)

	m, cmd = drive(t, m, done)
	assert.NotNil(t, cmd, "next scan is scheduled")
	assert.False(t, m.Scanning)
	assert.Len(t, m.Table.Rows(), 2)
	assert.Equal(t, "voron", m.Table.Rows()[0][0])
	assert.Equal(t, "42%", m.Table.Rows()[0][5])
	assert.Equal(t, "-", m.Table.Rows()[1][5])

	sel, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "voron", sel.Hostname)

	view := m.View()
	assert.Contains(t, view, "2 printers")
	assert.Contains(t, view, "benchy.gcode")
}

func TestWatch_ScanErrorKeepsDevices(t *testing.T) {
	m := newTestModel(nil)
	m, _ = drive(t, m, scanStartMsg{})
	m, _ = drive(t, m, scanCompleteMsg{devices: testDevices(), at: time.Now()})

	m, _ = drive(t, m, rescanMsg{})
	m, _ = drive(t, m, scanCompleteMsg{err: errors.New("neighbor table unavailable"), at: time.Now()})

	assert.Len(t, m.Devices, 2)
	assert.Error(t, m.Err)
	assert.Contains(t, m.View(), "neighbor table unavailable")
}

func TestWatch_CursorClampsWhenPrintersDisappear(t *testing.T) {
	m := newTestModel(nil)
	m, _ = drive(t, m, scanStartMsg{})
	m, _ = drive(t, m, scanCompleteMsg{devices: testDevices(), at: time.Now()})
	m, _ = drive(t, m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, m.Table.Cursor())

	m, _ = drive(t, m, rescanMsg{})
	m, _ = drive(t, m, scanCompleteMsg{devices: testDevices()[:1], at: time.Now()})
	assert.Equal(t, 0, m.Table.Cursor())

	m, _ = drive(t, m, rescanMsg{})
	m, _ = drive(t, m, scanCompleteMsg{devices: nil, at: time.Now()})
	_, ok := m.Selected()
	assert.False(t, ok)
}

func TestWatch_Keys(t *testing.T) {
	m := newTestModel(nil)

	_, cmd := drive(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	require.NotNil(t, cmd)
	_, ok := cmd().(scanStartMsg)
	assert.True(t, ok, "r starts a scan")

	_, cmd = drive(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	_, ok = cmd().(tea.QuitMsg)
	assert.True(t, ok, "q quits")
}

func TestWatch_WindowSize(t *testing.T) {
	m := newTestModel(nil)
	m, _ = drive(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Equal(t, 120, m.Width)
	assert.LessOrEqual(t, m.Table.Height(), 24)
	assert.Positive(t, m.Table.Height())
	assert.True(t, strings.HasPrefix(m.View(), TitleStyle.Render(AppName)))
}
