package ui

import (
	"github.com/charmbracelet/bubbles/progress"
)

// ProgressBar renders a print progress fraction in [0, 1] as a bar of the
// given width followed by the percentage.
func ProgressBar(fraction float64, width int) string {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	bar := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(max(width, 10)),
	)
	return bar.ViewAs(fraction)
}
