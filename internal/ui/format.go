package ui

import (
	"fmt"
	"path"
	"time"
)

const none = "-"

// FormatTemp renders a heater temperature, or "-" when the printer has none.
func FormatTemp(t *float64) string {
	if t == nil {
		return none
	}
	return fmt.Sprintf("%.1f°C", *t)
}

// FormatHours renders a duration given in seconds as hours.
func FormatHours(seconds float64) string {
	return fmt.Sprintf("%.1f h", seconds/3600)
}

// FormatDuration renders seconds as "3h 05m" (or "12m" below an hour).
func FormatDuration(seconds float64) string {
	d := time.Duration(seconds) * time.Second
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %02dm", h, m)
}

// FormatFilament renders millimetres of filament as metres.
func FormatFilament(mm float64) string {
	return fmt.Sprintf("%.1f m", mm/1000)
}

// FormatTime renders an optional timestamp in local time.
func FormatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return none
	}
	return t.Local().Format("2006-01-02 15:04")
}

// FormatFile shortens a gcode path to its file name.
func FormatFile(p string) string {
	if p == "" {
		return none
	}
	return path.Base(p)
}
