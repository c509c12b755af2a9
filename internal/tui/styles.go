package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/fleethelm/internal/ui"
	"github.com/muurk/fleethelm/internal/version"
)

// AppName is shown in the dashboard title bar.
const AppName = "FLEETHELM"

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(ui.PrimaryColor).
			Bold(true)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ui.MutedColor).
			Italic(true)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(ui.PrimaryColor)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ui.ErrorColor).
			Bold(true)

	DetailBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ui.PrimaryColor).
			Padding(0, 1)

	HelpStyle = lipgloss.NewStyle().
			Foreground(ui.MutedColor).
			PaddingTop(1)
)

func renderTitle() string {
	return TitleStyle.Render(AppName) + " " + SubtitleStyle.Render(version.Version+" · printer fleet")
}
