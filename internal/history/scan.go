package history

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/fleethelm/internal/logging"
	"github.com/muurk/fleethelm/internal/moonraker"
)

const (
	// DefaultPageTimeout bounds each history page request.
	DefaultPageTimeout = 4 * time.Second

	// MatchTolerance is how close, in seconds, a job's duration must be to
	// the target for FindMatchingJob to accept it.
	MatchTolerance = 0.01

	orderNewestFirst = "desc"
)

// DurationField names the job field compared by FindMatchingJob.
type DurationField string

const (
	TotalDuration DurationField = "total_duration"
	PrintDuration DurationField = "print_duration"
)

// PageFetcher reads one page of a printer's job log. *moonraker.Client
// implements it.
type PageFetcher interface {
	HistoryPage(ctx context.Context, limit, start int, order string) ([]moonraker.Job, error)
}

// Scanner walks a printer's job history newest first.
type Scanner struct {
	PageTimeout time.Duration

	// Location is used for month labels and finish times (nil = time.Local)
	Location *time.Location
}

// NewScanner creates a Scanner with the given page timeout.
func NewScanner(pageTimeout time.Duration) *Scanner {
	if pageTimeout <= 0 {
		pageTimeout = DefaultPageTimeout
	}
	return &Scanner{PageTimeout: pageTimeout}
}

func (s *Scanner) location() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.Local
}

// pages calls visit for each page of up to pageSize jobs, at most maxPages
// times, and stops early at the first empty or unavailable page or when
// visit returns false.
func (s *Scanner) pages(ctx context.Context, src PageFetcher, pageSize, maxPages int, visit func([]moonraker.Job) bool) {
	if pageSize <= 0 || maxPages <= 0 {
		return
	}

	timeout := s.PageTimeout
	if timeout <= 0 {
		timeout = DefaultPageTimeout
	}

	start := 0
	for page := 0; page < maxPages; page++ {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		jobs, err := src.HistoryPage(pctx, pageSize, start, orderNewestFirst)
		cancel()

		if err != nil {
			logging.Debug("History page unavailable", zap.Int("start", start), zap.Error(err))
			return
		}
		if len(jobs) == 0 || !visit(jobs) {
			return
		}
		start += pageSize
	}
}

// Scan reads up to maxPages pages of pageSize jobs and returns their
// outcome and time breakdown. A page that cannot be read ends the scan;
// whatever was accounted so far is returned.
func (s *Scanner) Scan(ctx context.Context, src PageFetcher, pageSize, maxPages int) *Stats {
	stats := NewStats()
	loc := s.location()

	s.pages(ctx, src, pageSize, maxPages, func(jobs []moonraker.Job) bool {
		for i := range jobs {
			stats.AddJob(&jobs[i], loc)
		}
		return true
	})

	return stats.Finalize()
}

// FindMatchingJob returns the newest job whose field is within
// MatchTolerance of targetSeconds.
//
// Moonraker's totals report the longest job and print only as durations.
// This recovers the job behind such a value by comparing durations, so two
// jobs of near identical length cannot be told apart. A miss within
// maxPages is a reporting gap, not an error.
func (s *Scanner) FindMatchingJob(ctx context.Context, src PageFetcher, targetSeconds float64, field DurationField, pageSize, maxPages int) (*moonraker.Job, bool) {
	if targetSeconds <= 0 {
		return nil, false
	}

	var found *moonraker.Job
	s.pages(ctx, src, pageSize, maxPages, func(jobs []moonraker.Job) bool {
		for i := range jobs {
			v, _ := jobs[i].Duration(string(field))
			if math.Abs(v-targetSeconds) <= MatchTolerance {
				found = &jobs[i]
				return false
			}
		}
		return true
	})

	return found, found != nil
}
