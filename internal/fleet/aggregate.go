package fleet

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/muurk/fleethelm/internal/discovery"
	"github.com/muurk/fleethelm/internal/history"
	"github.com/muurk/fleethelm/internal/logging"
	"github.com/muurk/fleethelm/internal/moonraker"
)

const (
	// DefaultTotalsTimeout bounds the /server/history/totals request.
	DefaultTotalsTimeout = 3 * time.Second

	DefaultMaxPages   = 6
	DefaultPageLimit  = 200
	DefaultStatsPages = 12
)

// Per-printer error strings.
const (
	ErrMissingBaseURL    = "missing base_url"
	ErrTotalsUnavailable = "history totals unavailable"
)

// Options control how much history is read per printer.
type Options struct {
	// MatchLongest looks up the job records behind the longest job and
	// longest print; when false only the durations are reported
	MatchLongest bool

	// MaxPages bounds the longest job lookups
	MaxPages int

	// PageLimit is the page size for every history request
	PageLimit int

	// StatsPages bounds the breakdown scan
	StatsPages int
}

// DefaultOptions returns the options used when a request sets none.
func DefaultOptions() Options {
	return Options{
		MatchLongest: true,
		MaxPages:     DefaultMaxPages,
		PageLimit:    DefaultPageLimit,
		StatsPages:   DefaultStatsPages,
	}
}

// HistorySource is the part of the Moonraker API the aggregator reads.
// *moonraker.Client implements it.
type HistorySource interface {
	HistoryTotals(ctx context.Context) (*moonraker.JobTotals, error)
	history.PageFetcher
}

// Aggregator collects job history from every printer of a fleet.
type Aggregator struct {
	TotalsTimeout time.Duration
	Scanner       *history.Scanner

	// NewClient returns the history source for a printer's base URL
	NewClient func(baseURL string) HistorySource
}

// NewAggregator creates an Aggregator talking to real printers.
func NewAggregator(totalsTimeout, pageTimeout time.Duration) *Aggregator {
	if totalsTimeout <= 0 {
		totalsTimeout = DefaultTotalsTimeout
	}
	return &Aggregator{
		TotalsTimeout: totalsTimeout,
		Scanner:       history.NewScanner(pageTimeout),
		NewClient: func(baseURL string) HistorySource {
			return moonraker.NewClientWithURL(baseURL)
		},
	}
}

// Aggregate reads every device's history concurrently and reduces the
// results into a fleet report. Devices whose history cannot be read are
// still listed, marked not ok.
func (a *Aggregator) Aggregate(ctx context.Context, devices []discovery.Device, opts Options) *Report {
	reports := make([]PrinterReport, len(devices))

	var g errgroup.Group
	for i := range devices {
		g.Go(func() error {
			reports[i] = a.printer(ctx, &devices[i], opts)
			return nil
		})
	}
	_ = g.Wait()

	return Reduce(reports)
}

func (a *Aggregator) printer(ctx context.Context, dev *discovery.Device, opts Options) PrinterReport {
	report := PrinterReport{
		Hostname: dev.Hostname,
		IP:       dev.IP,
		BaseURL:  dev.BaseURL,
	}

	if dev.BaseURL == "" {
		report.Error = ErrMissingBaseURL
		return report
	}

	src := a.NewClient(dev.BaseURL)

	tctx, cancel := context.WithTimeout(ctx, a.TotalsTimeout)
	totals, err := src.HistoryTotals(tctx)
	cancel()
	if err != nil {
		logging.Info("History totals unavailable",
			zap.String("hostname", dev.Hostname),
			zap.String("base_url", dev.BaseURL),
			zap.String("reason", totalsFailure(err)),
			zap.Error(err))
		report.Error = ErrTotalsUnavailable
		return report
	}

	report.OK = true
	report.JobTotals = totals

	var g errgroup.Group
	if opts.MatchLongest {
		g.Go(func() error {
			report.LongestJob = a.longest(ctx, src, totals.LongestJob, history.TotalDuration, opts)
			return nil
		})
		g.Go(func() error {
			report.LongestPrint = a.longest(ctx, src, totals.LongestPrint, history.PrintDuration, opts)
			return nil
		})
	} else {
		report.LongestJob = &moonraker.Job{TotalDuration: floatPtr(totals.LongestJob)}
		report.LongestPrint = &moonraker.Job{PrintDuration: floatPtr(totals.LongestPrint)}
	}
	g.Go(func() error {
		report.Stats = a.Scanner.Scan(ctx, src, opts.PageLimit, opts.StatsPages)
		return nil
	})
	_ = g.Wait()

	logging.Debug("Printer history read",
		zap.String("hostname", dev.Hostname),
		zap.Int("jobs_scanned", report.Stats.JobsScanned))

	return report
}

// totalsFailure names why /server/history/totals could not be read. A
// rejected request usually means the history component is not loaded.
func totalsFailure(err error) string {
	switch {
	case moonraker.IsHTTPError(err):
		return "history component unavailable"
	case moonraker.IsShapeError(err), moonraker.IsParseError(err):
		return "unexpected totals response"
	case moonraker.IsNetworkError(err):
		return "unreachable"
	default:
		return "totals request failed"
	}
}

func (a *Aggregator) longest(ctx context.Context, src HistorySource, seconds float64, field history.DurationField, opts Options) *moonraker.Job {
	job, ok := a.Scanner.FindMatchingJob(ctx, src, seconds, field, opts.PageLimit, opts.MaxPages)
	if !ok {
		return nil
	}
	return job
}

func floatPtr(v float64) *float64 { return &v }
