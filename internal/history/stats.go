package history

import (
	"sort"
	"strings"
	"time"

	"github.com/muurk/fleethelm/internal/moonraker"
)

// Outcome buckets. Every job lands in exactly one.
const (
	BucketCompleted = "completed"
	BucketCancelled = "cancelled"
	BucketError     = "error"
	BucketOther     = "other"
)

// Buckets lists the outcome buckets in display order.
var Buckets = []string{BucketCompleted, BucketCancelled, BucketError, BucketOther}

// cancelledStatuses are the Moonraker job statuses for a print that stopped
// without completing or failing on its own.
var cancelledStatuses = map[string]struct{}{
	"cancelled":       {},
	"canceled":        {},
	"interrupted":     {},
	"server_exit":     {},
	"klippy_shutdown": {},
	"shutdown":        {},
	"aborted":         {},
}

// ClassifyStatus maps a Moonraker job status to its bucket. Matching ignores
// case and surrounding whitespace.
func ClassifyStatus(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "completed":
		return BucketCompleted
	case "error":
		return BucketError
	}
	if _, ok := cancelledStatuses[s]; ok {
		return BucketCancelled
	}
	return BucketOther
}

// monthLayout renders labels like "Jan 2026".
const monthLayout = "Jan 2006"

// MonthLabel returns the calendar month label of t in t's location.
func MonthLabel(t time.Time) string {
	return t.Format(monthLayout)
}

// Period is the printing time attributed to one calendar month.
type Period struct {
	Label string  `json:"label"`
	Hours float64 `json:"hours"`
}

// Stats is the outcome and time breakdown of the jobs scanned on one
// printer, or of a whole fleet once merged.
type Stats struct {
	StatusBreakdown   map[string]int     `json:"status_breakdown"`
	StatusTimeHours   map[string]float64 `json:"status_time_hours"`
	ByPeriod          []Period           `json:"by_period"`
	LastPrintFinished *time.Time         `json:"last_print_finished"`

	// JobsScanned equals the sum of StatusBreakdown
	JobsScanned int `json:"jobs_scanned"`

	months map[string]float64
}

// NewStats returns empty stats with every bucket present.
func NewStats() *Stats {
	s := &Stats{
		StatusBreakdown: make(map[string]int, len(Buckets)),
		StatusTimeHours: make(map[string]float64, len(Buckets)),
		ByPeriod:        []Period{},
		months:          make(map[string]float64),
	}
	for _, b := range Buckets {
		s.StatusBreakdown[b] = 0
		s.StatusTimeHours[b] = 0
	}
	return s
}

// JobHours is the time a job counts for: print_duration when reported,
// otherwise total_duration, never negative.
func JobHours(job *moonraker.Job) float64 {
	d, ok := job.Duration("print_duration")
	if !ok {
		d, _ = job.Duration("total_duration")
	}
	if d < 0 {
		d = 0
	}
	return d / 3600
}

// AddJob accounts one job. Month attribution uses the end time, or the
// start time for jobs that never ended, converted to loc.
func (s *Stats) AddJob(job *moonraker.Job, loc *time.Location) {
	bucket := ClassifyStatus(job.Status)
	hours := JobHours(job)

	s.StatusBreakdown[bucket]++
	s.StatusTimeHours[bucket] += hours
	s.JobsScanned++

	ts, ok := job.Ended()
	if !ok {
		ts, ok = job.Started()
	}
	if ok {
		s.months[MonthLabel(ts.In(loc))] += hours
	}

	if end, ok := job.Ended(); ok {
		s.observeFinished(end.In(loc))
	}
}

func (s *Stats) observeFinished(t time.Time) {
	if s.LastPrintFinished == nil || t.After(*s.LastPrintFinished) {
		s.LastPrintFinished = &t
	}
}

// Merge adds finalized stats into s. Bucket counts and hours are summed,
// months are union-summed and the later finish time is kept. Call Finalize
// on s afterwards.
func (s *Stats) Merge(other *Stats) {
	if other == nil {
		return
	}
	for k, v := range other.StatusBreakdown {
		s.StatusBreakdown[k] += v
	}
	for k, v := range other.StatusTimeHours {
		s.StatusTimeHours[k] += v
	}
	s.JobsScanned += other.JobsScanned

	for _, p := range other.ByPeriod {
		if p.Label = strings.TrimSpace(p.Label); p.Label != "" {
			s.months[p.Label] += p.Hours
		}
	}

	if other.LastPrintFinished != nil {
		s.observeFinished(*other.LastPrintFinished)
	}
}

// Finalize rebuilds ByPeriod from the accumulated months, sorted
// chronologically. Call it once accounting is complete.
func (s *Stats) Finalize() *Stats {
	periods := make([]Period, 0, len(s.months))
	for label, hours := range s.months {
		periods = append(periods, Period{Label: label, Hours: hours})
	}
	SortPeriods(periods)
	s.ByPeriod = periods
	return s
}

// SortPeriods orders periods by calendar month, oldest first. Labels that do
// not parse sort before all others, by label.
func SortPeriods(periods []Period) {
	key := func(label string) time.Time {
		t, err := time.Parse(monthLayout, label)
		if err != nil {
			return time.Time{}
		}
		return t
	}
	sort.SliceStable(periods, func(i, j int) bool {
		ki, kj := key(periods[i].Label), key(periods[j].Label)
		if ki.Equal(kj) {
			return periods[i].Label < periods[j].Label
		}
		return ki.Before(kj)
	})
}
