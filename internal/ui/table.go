package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/muurk/fleethelm/internal/discovery"
	"github.com/muurk/fleethelm/internal/fleet"
	"github.com/muurk/fleethelm/internal/history"
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(MutedColor)).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			return TableCellStyle
		}).
		Headers(headers...)
}

// RenderDevices renders discovered printers as a table.
func RenderDevices(devices []discovery.Device, width int) string {
	if len(devices) == 0 {
		return lipgloss.NewStyle().Foreground(MutedColor).Render("No printers found.")
	}

	t := newTable("HOSTNAME", "IP", "STATUS", "EXTRUDER", "BED", "PROGRESS", "FILE")
	for _, d := range devices {
		progress := none
		if d.Printing() {
			progress = ProgressBar(d.PrintProgress, 16)
		}
		t.Row(
			d.Hostname,
			d.IP,
			StatusStyle(d.Status).Render(d.Status),
			FormatTemp(d.ExtruderTemperature),
			FormatTemp(d.HeaterBedTemperature),
			progress,
			FormatFile(d.FilePath),
		)
	}
	return t.Render()
}

// RenderFleet renders the fleet summary followed by the per-printer table.
func RenderFleet(report *fleet.Report, width int) string {
	width = clampWidth(width)
	f := report.Fleet

	summary := []Param{
		{"Printers", fmt.Sprintf("%d seen, %d ok", f.PrintersSeen, f.PrintersOK)},
		{"Jobs", strconv.Itoa(f.TotalJobs)},
		{"Print time", FormatHours(f.TotalPrintTime)},
		{"Total time", FormatHours(f.TotalTime)},
		{"Filament", FormatFilament(f.TotalFilamentUsed)},
	}
	if f.LongestPrint != nil {
		summary = append(summary, Param{"Longest print", fmt.Sprintf("%s on %s", FormatDuration(f.LongestPrint.Seconds), f.LongestPrint.Printer)})
	}
	if f.LongestJob != nil {
		summary = append(summary, Param{"Longest job", fmt.Sprintf("%s on %s", FormatDuration(f.LongestJob.Seconds), f.LongestJob.Printer)})
	}
	if f.Stats != nil {
		summary = append(summary, Param{"Last print finished", FormatTime(f.Stats.LastPrintFinished)})
	}

	var lines []string
	for _, p := range summary {
		lines = append(lines, ResultKeyStyle.Render(p.Key+":")+" "+ResultValueStyle.Render(p.Value))
	}

	blocks := []string{strings.Join(lines, "\n")}
	if f.Stats != nil {
		blocks = append(blocks,
			SectionTitleStyle.Render("Outcomes"),
			renderBuckets(f.Stats),
			SectionTitleStyle.Render("Print hours by month"),
			renderPeriods(f.Stats.ByPeriod, width),
		)
	}
	blocks = append(blocks, SectionTitleStyle.Render("Printers"), renderPrinters(report.ByPrinter, width))

	return lipgloss.JoinVertical(lipgloss.Left, blocks...)
}

func renderBuckets(s *history.Stats) string {
	t := newTable("OUTCOME", "JOBS", "HOURS")
	for _, b := range history.Buckets {
		t.Row(StatusStyle(b).Render(b), strconv.Itoa(s.StatusBreakdown[b]), fmt.Sprintf("%.1f", s.StatusTimeHours[b]))
	}
	return t.Render()
}

func renderPeriods(periods []history.Period, width int) string {
	if len(periods) == 0 {
		return lipgloss.NewStyle().Foreground(MutedColor).Render("No dated jobs.")
	}

	peak := 0.0
	for _, p := range periods {
		peak = max(peak, p.Hours)
	}
	barWidth := max(width-24, 10)

	bar := lipgloss.NewStyle().Foreground(PrimaryColor)
	lines := make([]string, 0, len(periods))
	for _, p := range periods {
		n := 0
		if peak > 0 {
			n = int(p.Hours / peak * float64(barWidth))
		}
		lines = append(lines, fmt.Sprintf("%-8s %7.1f h %s", p.Label, p.Hours, bar.Render(strings.Repeat("█", n))))
	}
	return strings.Join(lines, "\n")
}

func renderPrinters(reports []fleet.PrinterReport, width int) string {
	t := newTable("PRINTER", "IP", "OK", "JOBS", "PRINT TIME", "FILAMENT", "DONE", "CANCELLED", "ERROR", "LAST FINISHED")
	for _, r := range reports {
		ok := StatusStyle("ok").Render(SuccessMarker)
		if !r.OK {
			ok = StatusStyle("failed").Render(FailureMarker + " " + r.Error)
		}

		jobs, printTime, filament := none, none, none
		if r.JobTotals != nil {
			jobs = strconv.Itoa(r.JobTotals.TotalJobs)
			printTime = FormatHours(r.JobTotals.TotalPrintTime)
			filament = FormatFilament(r.JobTotals.TotalFilamentUsed)
		}

		done, cancelled, failed, last := none, none, none, none
		if r.Stats != nil {
			done = strconv.Itoa(r.Stats.StatusBreakdown[history.BucketCompleted])
			cancelled = strconv.Itoa(r.Stats.StatusBreakdown[history.BucketCancelled])
			failed = strconv.Itoa(r.Stats.StatusBreakdown[history.BucketError])
			last = FormatTime(r.Stats.LastPrintFinished)
		}

		t.Row(r.Name(), r.IP, ok, jobs, printTime, filament, done, cancelled, failed, last)
	}
	return t.Render()
}
