package fleet

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/fleethelm/internal/discovery"
	"github.com/muurk/fleethelm/internal/history"
	"github.com/muurk/fleethelm/internal/moonraker"
)

func f64(v float64) *float64 { return &v }

type fakePrinter struct {
	totals    *moonraker.JobTotals
	totalsErr error
	jobs      []moonraker.Job
}

func (p *fakePrinter) HistoryTotals(context.Context) (*moonraker.JobTotals, error) {
	return p.totals, p.totalsErr
}

func (p *fakePrinter) HistoryPage(_ context.Context, limit, start int, _ string) ([]moonraker.Job, error) {
	if start >= len(p.jobs) {
		return nil, nil
	}
	return p.jobs[start:min(start+limit, len(p.jobs))], nil
}

func newTestAggregator(printers map[string]*fakePrinter) *Aggregator {
	scanner := history.NewScanner(time.Second)
	scanner.Location = time.UTC
	return &Aggregator{
		TotalsTimeout: time.Second,
		Scanner:       scanner,
		NewClient: func(baseURL string) HistorySource {
			if p, ok := printers[baseURL]; ok {
				return p
			}
			return &fakePrinter{totalsErr: errors.New("connection refused")}
		},
	}
}

func device(hostname, ip string) discovery.Device {
	return discovery.Device{Hostname: hostname, IP: ip, BaseURL: "http://" + ip + ":7125"}
}

func TestAggregate_SortsByPrintTime(t *testing.T) {
	printers := map[string]*fakePrinter{
		"http://10.0.0.5:7125": {totals: &moonraker.JobTotals{TotalJobs: 4, TotalPrintTime: 5 * 3600}},
		"http://10.0.0.9:7125": {totals: &moonraker.JobTotals{TotalJobs: 6, TotalPrintTime: 10 * 3600}},
	}
	agg := newTestAggregator(printers)

	report := agg.Aggregate(context.Background(), []discovery.Device{
		device("small", "10.0.0.5"),
		device("big", "10.0.0.9"),
	}, DefaultOptions())

	assert.InDelta(t, 15*3600.0, report.Fleet.TotalPrintTime, 1e-6)
	assert.Equal(t, 10, report.Fleet.TotalJobs)
	assert.Equal(t, 2, report.Fleet.PrintersSeen)
	assert.Equal(t, 2, report.Fleet.PrintersOK)
	require.Len(t, report.ByPrinter, 2)
	assert.Equal(t, "big", report.ByPrinter[0].Hostname)
	assert.Equal(t, "small", report.ByPrinter[1].Hostname)
}

func TestAggregate_UnavailablePrinterStaysInReport(t *testing.T) {
	printers := map[string]*fakePrinter{
		"http://10.0.0.5:7125": {
			totals: &moonraker.JobTotals{TotalJobs: 2, TotalPrintTime: 3600},
			jobs: []moonraker.Job{
				{Status: "completed", PrintDuration: f64(1800)},
				{Status: "cancelled", PrintDuration: f64(1800)},
			},
		},
	}
	agg := newTestAggregator(printers)

	noBase := discovery.Device{Hostname: "orphan", IP: "10.0.0.8"}
	report := agg.Aggregate(context.Background(), []discovery.Device{
		device("ok", "10.0.0.5"),
		device("down", "10.0.0.6"),
		noBase,
	}, DefaultOptions())

	require.Len(t, report.ByPrinter, 3)
	assert.Equal(t, 3, report.Fleet.PrintersSeen)
	assert.Equal(t, 1, report.Fleet.PrintersOK)

	byName := map[string]PrinterReport{}
	for _, r := range report.ByPrinter {
		byName[r.Hostname] = r
	}
	assert.False(t, byName["down"].OK)
	assert.Equal(t, ErrTotalsUnavailable, byName["down"].Error)
	assert.Nil(t, byName["down"].Stats, "no stats are made up for an unavailable printer")
	assert.Equal(t, ErrMissingBaseURL, byName["orphan"].Error)

	assert.Equal(t, 1, report.Fleet.StatusBreakdown["completed"])
	assert.Equal(t, 1, report.Fleet.StatusBreakdown["cancelled"])
}

func TestAggregate_MatchesLongestJobs(t *testing.T) {
	printers := map[string]*fakePrinter{
		"http://10.0.0.5:7125": {
			totals: &moonraker.JobTotals{LongestJob: 4000, LongestPrint: 3661.0},
			jobs: []moonraker.Job{
				{JobID: "000003", Status: "completed", TotalDuration: f64(1200), PrintDuration: f64(1100)},
				{JobID: "000002", Status: "completed", TotalDuration: f64(3700), PrintDuration: f64(3661.004)},
				{JobID: "000001", Status: "error", TotalDuration: f64(4000), PrintDuration: f64(10)},
			},
		},
	}
	agg := newTestAggregator(printers)

	report := agg.Aggregate(context.Background(), []discovery.Device{device("voron", "10.0.0.5")}, DefaultOptions())
	r := report.ByPrinter[0]

	require.NotNil(t, r.LongestJob)
	require.NotNil(t, r.LongestPrint)
	assert.Equal(t, "000001", r.LongestJob.JobID)
	assert.Equal(t, "000002", r.LongestPrint.JobID)

	require.NotNil(t, report.Fleet.LongestPrint)
	assert.Equal(t, "voron", report.Fleet.LongestPrint.Printer)
	assert.InDelta(t, 3661.0, report.Fleet.LongestPrint.Seconds, 1e-9)
	assert.Equal(t, "000002", report.Fleet.LongestPrint.Job.JobID)
}

func TestAggregate_WithoutMatchingReportsDurations(t *testing.T) {
	printers := map[string]*fakePrinter{
		"http://10.0.0.5:7125": {totals: &moonraker.JobTotals{LongestJob: 7200, LongestPrint: 7000}},
	}
	agg := newTestAggregator(printers)

	opts := DefaultOptions()
	opts.MatchLongest = false
	report := agg.Aggregate(context.Background(), []discovery.Device{device("voron", "10.0.0.5")}, opts)

	lj, err := json.Marshal(report.ByPrinter[0].LongestJob)
	require.NoError(t, err)
	assert.JSONEq(t, `{"total_duration": 7200}`, string(lj))

	lp, err := json.Marshal(report.ByPrinter[0].LongestPrint)
	require.NoError(t, err)
	assert.JSONEq(t, `{"print_duration": 7000}`, string(lp))
}

func TestReduce_StatusBreakdownIsSumOfPrinters(t *testing.T) {
	stats := func(completed, cancelled, failed, other int) *history.Stats {
		s := history.NewStats()
		s.StatusBreakdown[history.BucketCompleted] = completed
		s.StatusBreakdown[history.BucketCancelled] = cancelled
		s.StatusBreakdown[history.BucketError] = failed
		s.StatusBreakdown[history.BucketOther] = other
		return s
	}

	tests := []struct {
		name    string
		reports []PrinterReport
		want    map[string]int
	}{
		{
			name:    "no printers",
			reports: nil,
			want:    map[string]int{"completed": 0, "cancelled": 0, "error": 0, "other": 0},
		},
		{
			name: "all failed",
			reports: []PrinterReport{
				{Hostname: "a", Error: ErrTotalsUnavailable},
				{Hostname: "b", Error: ErrTotalsUnavailable},
			},
			want: map[string]int{"completed": 0, "cancelled": 0, "error": 0, "other": 0},
		},
		{
			name: "all ok",
			reports: []PrinterReport{
				{Hostname: "a", OK: true, JobTotals: &moonraker.JobTotals{}, Stats: stats(3, 1, 0, 2)},
				{Hostname: "b", OK: true, JobTotals: &moonraker.JobTotals{}, Stats: stats(1, 0, 4, 0)},
			},
			want: map[string]int{"completed": 4, "cancelled": 1, "error": 4, "other": 2},
		},
		{
			name: "mixed",
			reports: []PrinterReport{
				{Hostname: "a", OK: true, JobTotals: &moonraker.JobTotals{}, Stats: stats(5, 0, 1, 0)},
				{Hostname: "b", Error: ErrTotalsUnavailable},
			},
			want: map[string]int{"completed": 5, "cancelled": 0, "error": 1, "other": 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Reduce(tt.reports)
			assert.Equal(t, tt.want, report.Fleet.StatusBreakdown)
			assert.Len(t, report.ByPrinter, len(tt.reports))
			assert.NotNil(t, report.Fleet.ByPeriod)
		})
	}
}

func TestReduce_FleetLongestFallsBackToAddress(t *testing.T) {
	report := Reduce([]PrinterReport{
		{IP: "10.0.0.5", OK: true, JobTotals: &moonraker.JobTotals{LongestJob: 50}},
		{Hostname: "b", OK: true, JobTotals: &moonraker.JobTotals{LongestJob: 20}},
	})

	require.NotNil(t, report.Fleet.LongestJob)
	assert.Equal(t, "10.0.0.5", report.Fleet.LongestJob.Printer)
	assert.Nil(t, report.Fleet.LongestPrint, "no printer reported a longest print")
}

func TestReduce_MergesPeriods(t *testing.T) {
	a := history.NewStats()
	a.ByPeriod = []history.Period{{Label: "Jan 2026", Hours: 1}, {Label: "Mar 2026", Hours: 2}}
	b := history.NewStats()
	b.ByPeriod = []history.Period{{Label: "Jan 2026", Hours: 0.5}, {Label: "Dec 2025", Hours: 4}}

	report := Reduce([]PrinterReport{
		{Hostname: "a", OK: true, JobTotals: &moonraker.JobTotals{}, Stats: a},
		{Hostname: "b", OK: true, JobTotals: &moonraker.JobTotals{}, Stats: b},
	})

	assert.Equal(t, []history.Period{
		{Label: "Dec 2025", Hours: 4},
		{Label: "Jan 2026", Hours: 1.5},
		{Label: "Mar 2026", Hours: 2},
	}, report.Fleet.ByPeriod)
}

func TestReport_JSONShape(t *testing.T) {
	report := Reduce([]PrinterReport{
		{Hostname: "a", IP: "10.0.0.5", BaseURL: "http://10.0.0.5:7125", OK: true,
			JobTotals: &moonraker.JobTotals{TotalPrintTime: 10}, Stats: history.NewStats()},
	})

	data, err := json.Marshal(report)
	require.NoError(t, err)

	var top map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &top))
	assert.Contains(t, top, "fleet")
	assert.Contains(t, top, "by_printer")

	var fleet map[string]any
	require.NoError(t, json.Unmarshal(top["fleet"], &fleet))
	for _, key := range []string{
		"printers_seen", "printers_ok", "total_jobs", "total_time", "total_print_time",
		"total_filament_used", "fleet_longest_job", "fleet_longest_print",
		"status_breakdown", "status_time_hours", "by_period", "last_print_finished",
	} {
		assert.Contains(t, fleet, key)
	}
}

func TestTotalsFailure(t *testing.T) {
	const addr = "192.168.1.40:7125"
	tests := []struct {
		err  error
		want string
	}{
		{moonraker.NewHTTPError(404, addr), "history component unavailable"},
		{moonraker.NewShapeError("totals missing job_totals", addr), "unexpected totals response"},
		{moonraker.NewParseError("invalid JSON", addr, errors.New("unexpected EOF")), "unexpected totals response"},
		{moonraker.ClassifyNetworkError(errors.New("no route to host"), addr), "unreachable"},
		{errors.New("boom"), "totals request failed"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, totalsFailure(tt.err), "%v", tt.err)
	}
}
