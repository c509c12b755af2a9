package health

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/muurk/fleethelm/internal/discovery"
)

// Snapshot describes the most recent discovery run.
type Snapshot struct {
	LastDiscovery *time.Time `json:"last_discovery"`
	CIDR          string     `json:"last_discovery_cidr,omitempty"`
	PrintersFound int        `json:"last_printers_found"`
	ElapsedMS     int64      `json:"last_discovery_ms"`

	// LastError is empty when the run completed
	LastError string `json:"last_error,omitempty"`
}

// Status is the health document served to the dashboard.
type Status struct {
	OK       bool      `json:"ok"`
	UptimeS  int64     `json:"uptime_s"`
	Time     time.Time `json:"time"`
	Snapshot Snapshot  `json:"snapshot"`
}

// Monitor keeps the last discovery snapshot. It implements
// discovery.Reporter and is safe for concurrent use.
type Monitor struct {
	started time.Time
	now     func() time.Time

	last atomic.Pointer[Snapshot]

	mu     sync.Mutex
	subs   map[int]chan Snapshot
	nextID int
}

// NewMonitor creates a Monitor whose uptime starts now.
func NewMonitor() *Monitor {
	return &Monitor{
		started: time.Now(),
		now:     time.Now,
		subs:    make(map[int]chan Snapshot),
	}
}

// PublishDiscovery records a finished run and notifies subscribers.
// It never blocks: a subscriber that has not read the previous snapshot
// only sees the newest one.
func (m *Monitor) PublishDiscovery(r discovery.RunReport) {
	finished := r.StartedAt.Add(r.Elapsed)
	snap := Snapshot{
		LastDiscovery: &finished,
		CIDR:          r.CIDR,
		PrintersFound: r.Found,
		ElapsedMS:     r.Elapsed.Milliseconds(),
	}
	if r.Err != nil {
		snap.LastError = r.Err.Error()
	}
	m.last.Store(&snap)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// Snapshot returns the last published snapshot, or the zero value before
// the first run.
func (m *Monitor) Snapshot() Snapshot {
	if s := m.last.Load(); s != nil {
		return *s
	}
	return Snapshot{}
}

// Status returns the current health document.
func (m *Monitor) Status() Status {
	now := m.now()
	return Status{
		OK:       true,
		UptimeS:  int64(now.Sub(m.started) / time.Second),
		Time:     now,
		Snapshot: m.Snapshot(),
	}
}

// Subscribe returns a channel receiving every snapshot published from now
// on and a function that ends the subscription.
func (m *Monitor) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = ch
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

// Subscribers returns the number of active subscriptions.
func (m *Monitor) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}
