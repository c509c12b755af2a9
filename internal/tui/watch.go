package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/fleethelm/internal/discovery"
	"github.com/muurk/fleethelm/internal/ui"
)

// DefaultInterval is the pause between two scans.
const DefaultInterval = 30 * time.Second

// ScanFunc runs one discovery pass.
type ScanFunc func(ctx context.Context) ([]discovery.Device, error)

// Messages for async operations
type scanStartMsg struct{}
type scanCompleteMsg struct {
	devices []discovery.Device
	err     error
	at      time.Time
}
type rescanMsg struct{}

// watchKeyMap defines key bindings for the watch screen
type watchKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Rescan key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k watchKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Rescan, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k watchKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down}, {k.Rescan, k.Quit}}
}

// WatchModel shows the printers on the network and rescans periodically.
type WatchModel struct {
	ctx      context.Context
	scan     ScanFunc
	Interval time.Duration

	Devices  []discovery.Device
	Err      error
	Scanning bool
	LastScan time.Time

	Width  int
	Height int

	Table   table.Model
	Spinner spinner.Model
	Help    help.Model
	Keys    watchKeyMap
}

var watchColumns = []table.Column{
	{Title: "Hostname", Width: 18},
	{Title: "IP", Width: 15},
	{Title: "Status", Width: 10},
	{Title: "Extruder", Width: 9},
	{Title: "Bed", Width: 9},
	{Title: "Progress", Width: 8},
	{Title: "File", Width: 28},
}

// NewWatchModel creates the watch screen. interval <= 0 uses DefaultInterval.
func NewWatchModel(ctx context.Context, scan ScanFunc, interval time.Duration) WatchModel {
	if interval <= 0 {
		interval = DefaultInterval
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	t := table.New(
		table.WithColumns(watchColumns),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ui.MutedColor).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(ui.TextColor).
		Background(ui.PrimaryColor)
	t.SetStyles(styles)

	keys := watchKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Rescan: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "rescan"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}

	return WatchModel{
		ctx:      ctx,
		scan:     scan,
		Interval: interval,
		Table:    t,
		Spinner:  s,
		Help:     help.New(),
		Keys:     keys,
	}
}

// Init starts the first scan
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return scanStartMsg{} },
		m.Spinner.Tick,
	)
}

func (m WatchModel) runScan() tea.Cmd {
	ctx, scan := m.ctx, m.scan
	return func() tea.Msg {
		devices, err := scan(ctx)
		return scanCompleteMsg{devices: devices, err: err, at: time.Now()}
	}
}

func (m WatchModel) scheduleRescan() tea.Cmd {
	return tea.Tick(m.Interval, func(time.Time) tea.Msg { return rescanMsg{} })
}

// Update handles messages and updates the model
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.Keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.Keys.Rescan):
			if m.Scanning {
				return m, nil
			}
			return m, func() tea.Msg { return scanStartMsg{} }
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Table.SetHeight(max(msg.Height-16, 3))

	case scanStartMsg, rescanMsg:
		if m.Scanning {
			return m, nil
		}
		m.Scanning = true
		return m, tea.Batch(m.runScan(), m.Spinner.Tick)

	case scanCompleteMsg:
		m.Scanning = false
		m.Err = msg.err
		m.LastScan = msg.at
		if msg.err == nil {
			m.Devices = msg.devices
			m.Table.SetRows(deviceRows(msg.devices))
			if m.Table.Cursor() >= len(msg.devices) {
				m.Table.SetCursor(max(len(msg.devices)-1, 0))
			}
		}
		return m, m.scheduleRescan()

	case spinner.TickMsg:
		if !m.Scanning {
			return m, nil
		}
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	m.Table, cmd = m.Table.Update(msg)
	return m, cmd
}

func deviceRows(devices []discovery.Device) []table.Row {
	rows := make([]table.Row, 0, len(devices))
	for _, d := range devices {
		progress := "-"
		if d.Printing() {
			progress = fmt.Sprintf("%.0f%%", d.PrintProgress*100)
		}
		rows = append(rows, table.Row{
			d.Hostname,
			d.IP,
			d.Status,
			ui.FormatTemp(d.ExtruderTemperature),
			ui.FormatTemp(d.HeaterBedTemperature),
			progress,
			ui.FormatFile(d.FilePath),
		})
	}
	return rows
}

// Selected returns the highlighted printer, if any.
func (m WatchModel) Selected() (discovery.Device, bool) {
	i := m.Table.Cursor()
	if i < 0 || i >= len(m.Devices) {
		return discovery.Device{}, false
	}
	return m.Devices[i], true
}

// View renders the watch screen
func (m WatchModel) View() string {
	var b strings.Builder

	b.WriteString(renderTitle())
	b.WriteString("\n\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n\n")
	b.WriteString(m.Table.View())
	b.WriteString("\n")

	if d, ok := m.Selected(); ok {
		b.WriteString(m.renderDetail(d))
		b.WriteString("\n")
	}

	b.WriteString(HelpStyle.Render(m.Help.View(m.Keys)))
	return b.String()
}

func (m WatchModel) statusLine() string {
	var parts []string
	if m.Scanning {
		parts = append(parts, m.Spinner.View()+" scanning")
	}
	if !m.LastScan.IsZero() {
		parts = append(parts, fmt.Sprintf("%d printers · last scan %s", len(m.Devices), m.LastScan.Format("15:04:05")))
	}
	if m.Err != nil {
		parts = append(parts, ErrorStyle.Render("✗ "+m.Err.Error()))
	}
	if len(parts) == 0 {
		return SubtitleStyle.Render("waiting for first scan")
	}
	return strings.Join(parts, "  ")
}

func (m WatchModel) renderDetail(d discovery.Device) string {
	lines := []string{
		TitleStyle.Render(d.Hostname) + " " + SubtitleStyle.Render(d.BaseURL),
		fmt.Sprintf("Status:    %s  %s", ui.StatusStyle(d.Status).Render(d.Status), d.StateMessage),
		fmt.Sprintf("Version:   %s", d.SoftwareVersion),
		fmt.Sprintf("Heaters:   extruder %s  extruder1 %s  extruder2 %s  bed %s",
			ui.FormatTemp(d.ExtruderTemperature),
			ui.FormatTemp(d.Extruder1Temperature),
			ui.FormatTemp(d.Extruder2Temperature),
			ui.FormatTemp(d.HeaterBedTemperature)),
		fmt.Sprintf("Web UI:    %s", d.UIURL),
	}
	if d.Printing() {
		lines = append(lines, "Progress:  "+ui.ProgressBar(d.PrintProgress, 30))
	}
	if d.ThumbnailURL != "" {
		lines = append(lines, "Thumbnail: "+d.ThumbnailURL)
	}
	return DetailBoxStyle.Render(strings.Join(lines, "\n"))
}

// Run shows the watch screen until the user quits or ctx is cancelled.
func Run(ctx context.Context, scan ScanFunc, interval time.Duration) error {
	p := tea.NewProgram(
		NewWatchModel(ctx, scan, interval),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
