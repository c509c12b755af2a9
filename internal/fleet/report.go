package fleet

import (
	"sort"

	"github.com/muurk/fleethelm/internal/history"
	"github.com/muurk/fleethelm/internal/moonraker"
)

// PrinterReport is one printer's history summary.
type PrinterReport struct {
	Hostname string `json:"hostname"`
	IP       string `json:"ip"`
	BaseURL  string `json:"base_url"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`

	JobTotals *moonraker.JobTotals `json:"job_totals"`

	// LongestJob and LongestPrint are the matched job records, or only the
	// durations when matching is disabled. Nil when no job matched.
	LongestJob   *moonraker.Job `json:"longest_job"`
	LongestPrint *moonraker.Job `json:"longest_print"`

	*history.Stats
}

// TotalPrintTime is the lifetime print time in seconds, 0 when unknown.
func (r *PrinterReport) TotalPrintTime() float64 {
	if r.JobTotals == nil {
		return 0
	}
	return r.JobTotals.TotalPrintTime
}

// Name identifies the printer: its hostname, or its address without one.
func (r *PrinterReport) Name() string {
	if r.Hostname != "" {
		return r.Hostname
	}
	return r.IP
}

// Longest is the fleet's longest job or print and the printer it ran on.
type Longest struct {
	Seconds float64        `json:"seconds"`
	Printer string         `json:"printer"`
	Job     *moonraker.Job `json:"job"`
}

// Fleet is the reduction of all printer reports.
type Fleet struct {
	PrintersSeen int `json:"printers_seen"`
	PrintersOK   int `json:"printers_ok"`

	// Lifetime totals as reported by the printers (seconds, millimetres)
	TotalJobs         int     `json:"total_jobs"`
	TotalTime         float64 `json:"total_time"`
	TotalPrintTime    float64 `json:"total_print_time"`
	TotalFilamentUsed float64 `json:"total_filament_used"`

	LongestJob   *Longest `json:"fleet_longest_job"`
	LongestPrint *Longest `json:"fleet_longest_print"`

	*history.Stats
}

// Report is the result of an aggregation.
type Report struct {
	Fleet     Fleet           `json:"fleet"`
	ByPrinter []PrinterReport `json:"by_printer"`
}

// Reduce sums the printer reports into fleet totals and orders them by
// lifetime print time, longest first. Printers with equal print time keep
// their input order.
func Reduce(reports []PrinterReport) *Report {
	fleet := Fleet{
		PrintersSeen: len(reports),
		Stats:        history.NewStats(),
	}

	var bestJob, bestPrint Longest
	for i := range reports {
		r := &reports[i]
		if r.OK {
			fleet.PrintersOK++
		}
		fleet.Stats.Merge(r.Stats)

		jt := r.JobTotals
		if jt == nil {
			continue
		}
		fleet.TotalJobs += jt.TotalJobs
		fleet.TotalTime += jt.TotalTime
		fleet.TotalPrintTime += jt.TotalPrintTime
		fleet.TotalFilamentUsed += jt.TotalFilamentUsed

		if jt.LongestJob > bestJob.Seconds {
			bestJob = Longest{Seconds: jt.LongestJob, Printer: r.Name(), Job: r.LongestJob}
		}
		if jt.LongestPrint > bestPrint.Seconds {
			bestPrint = Longest{Seconds: jt.LongestPrint, Printer: r.Name(), Job: r.LongestPrint}
		}
	}
	fleet.Stats.Finalize()

	if bestJob.Printer != "" {
		fleet.LongestJob = &bestJob
	}
	if bestPrint.Printer != "" {
		fleet.LongestPrint = &bestPrint
	}

	sorted := make([]PrinterReport, len(reports))
	copy(sorted, reports)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TotalPrintTime() > sorted[j].TotalPrintTime()
	})

	return &Report{Fleet: fleet, ByPrinter: sorted}
}
