package discovery

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/muurk/fleethelm/internal/moonraker"
	"github.com/muurk/fleethelm/internal/neighbor"
	"github.com/muurk/fleethelm/internal/probe"
)

type fakeNeighbors struct {
	local    netip.Addr
	localErr error
	entries  []neighbor.Entry
	listErr  error

	mu        sync.Mutex
	warmed    []netip.Prefix
	warmLimit int
}

func (f *fakeNeighbors) LocalAddress(context.Context) (netip.Addr, error) {
	return f.local, f.localErr
}

func (f *fakeNeighbors) Warm(_ context.Context, prefix netip.Prefix, limit int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.warmed = append(f.warmed, prefix)
	f.warmLimit = limit
}

func (f *fakeNeighbors) List(context.Context) ([]neighbor.Entry, error) {
	return f.entries, f.listErr
}

// fakePorts reports every candidate port as open for hosts in open.
type fakePorts struct {
	mu      sync.Mutex
	open    map[netip.Addr]bool
	scanned []netip.Addr
}

func (f *fakePorts) OpenPorts(_ context.Context, addr netip.Addr, ports []int) []int {
	f.mu.Lock()
	f.scanned = append(f.scanned, addr)
	f.mu.Unlock()
	if f.open[addr] {
		return ports
	}
	return nil
}

type fakeDetector struct{}

func (fakeDetector) Detect(_ context.Context, addr netip.Addr, open []int) (probe.Endpoint, bool) {
	return probe.Endpoint{Address: addr, Port: open[0]}, true
}

type fakeFetch struct {
	hostname string
	delay    time.Duration
	err      error
}

type fakeFetcher map[netip.Addr]fakeFetch

func (f fakeFetcher) Fetch(_ context.Context, ep probe.Endpoint, entry neighbor.Entry) (*Device, error) {
	r := f[ep.Address]
	time.Sleep(r.delay)
	if r.err != nil {
		return nil, r.err
	}
	return &Device{Hostname: r.hostname, IP: ep.Address.String(), MAC: entry.LinkAddress, BaseURL: ep.BaseURL()}, nil
}

type fakeBrowser struct {
	ads []neighbor.Advertisement
	err error
}

func (f fakeBrowser) Browse(context.Context) ([]neighbor.Advertisement, error) { return f.ads, f.err }

type recordingReporter struct {
	mu      sync.Mutex
	reports []RunReport
}

func (r *recordingReporter) PublishDiscovery(rep RunReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, rep)
}

func addr(s string) netip.Addr { return netip.MustParseAddr(s) }

func entry(ip, mac string) neighbor.Entry {
	return neighbor.Entry{Address: addr(ip), LinkAddress: mac}
}

var defaultOpts = Options{CIDR: "10.0.0.0/24", Warm: true, Ports: []int{7125, 80, 4408}}

func TestDiscover_DedupesByHostnameFirstInTableWins(t *testing.T) {
	nb := &fakeNeighbors{
		local: addr("10.0.0.2"),
		entries: []neighbor.Entry{
			entry("10.0.0.30", "aa-bb-cc-dd-ee-30"),
			entry("10.0.0.5", "aa-bb-cc-dd-ee-05"),
		},
	}
	ports := &fakePorts{open: map[netip.Addr]bool{addr("10.0.0.30"): true, addr("10.0.0.5"): true}}
	// Same printer reachable on two addresses (wired and wifi); the second
	// table entry answers first.
	fetcher := fakeFetcher{
		addr("10.0.0.30"): {hostname: "voron", delay: 30 * time.Millisecond},
		addr("10.0.0.5"):  {hostname: "voron"},
	}

	d := &Discoverer{Neighbors: nb, Ports: ports, Detector: fakeDetector{}, Fetcher: fetcher}

	devices, err := d.Discover(context.Background(), defaultOpts)
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("Discover() returned %d devices, want 1: %+v", len(devices), devices)
	}
	if devices[0].IP != "10.0.0.30" {
		t.Errorf("kept %s, want the entry listed first in the neighbor table", devices[0].IP)
	}
}

func TestDiscover_SkipsLocalAndSortsByAddress(t *testing.T) {
	nb := &fakeNeighbors{
		local: addr("10.0.0.2"),
		entries: []neighbor.Entry{
			entry("10.0.0.100", "aa-bb-cc-dd-ee-64"),
			entry("10.0.0.2", "aa-bb-cc-dd-ee-02"),
			entry("10.0.0.9", "aa-bb-cc-dd-ee-09"),
			entry("10.0.0.20", "aa-bb-cc-dd-ee-14"),
		},
	}
	ports := &fakePorts{open: map[netip.Addr]bool{
		addr("10.0.0.100"): true, addr("10.0.0.2"): true, addr("10.0.0.9"): true, addr("10.0.0.20"): true,
	}}
	fetcher := fakeFetcher{
		addr("10.0.0.100"): {hostname: "c"},
		addr("10.0.0.2"):   {hostname: "self"},
		addr("10.0.0.9"):   {hostname: "a"},
		addr("10.0.0.20"):  {hostname: "b"},
	}

	d := &Discoverer{Neighbors: nb, Ports: ports, Detector: fakeDetector{}, Fetcher: fetcher}
	devices, err := d.Discover(context.Background(), defaultOpts)
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}

	want := []string{"10.0.0.9", "10.0.0.20", "10.0.0.100"}
	if len(devices) != len(want) {
		t.Fatalf("got %d devices, want %d", len(devices), len(want))
	}
	for i, ip := range want {
		if devices[i].IP != ip {
			t.Errorf("devices[%d].IP = %s, want %s", i, devices[i].IP, ip)
		}
	}
	for _, a := range ports.scanned {
		if a == addr("10.0.0.2") {
			t.Error("local address must not be scanned")
		}
	}
}

func TestDiscover_FailedCandidatesAreExcluded(t *testing.T) {
	nb := &fakeNeighbors{
		local: addr("10.0.0.2"),
		entries: []neighbor.Entry{
			entry("10.0.0.5", "aa-bb-cc-dd-ee-05"),
			entry("10.0.0.6", "aa-bb-cc-dd-ee-06"),
			entry("10.0.0.7", "aa-bb-cc-dd-ee-07"),
		},
	}
	ports := &fakePorts{open: map[netip.Addr]bool{addr("10.0.0.5"): true, addr("10.0.0.6"): true}}
	fetcher := fakeFetcher{
		addr("10.0.0.5"): {hostname: "ok"},
		addr("10.0.0.6"): {err: errors.New("klippy not ready")},
	}
	rep := &recordingReporter{}

	d := &Discoverer{Neighbors: nb, Ports: ports, Detector: fakeDetector{}, Fetcher: fetcher, Reporter: rep}
	devices, err := d.Discover(context.Background(), defaultOpts)
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	if len(devices) != 1 || devices[0].Hostname != "ok" {
		t.Errorf("devices = %+v, want only the ready printer", devices)
	}

	if len(rep.reports) != 1 {
		t.Fatalf("reporter got %d reports, want 1", len(rep.reports))
	}
	r := rep.reports[0]
	if r.Found != 1 || r.CIDR != "10.0.0.0/24" || r.Err != nil {
		t.Errorf("report = %+v", r)
	}
	if len(nb.warmed) != 1 || nb.warmed[0].String() != "10.0.0.0/24" {
		t.Errorf("warmed = %v, want the request CIDR once", nb.warmed)
	}
}

func TestDiscover_NoWarm(t *testing.T) {
	nb := &fakeNeighbors{local: addr("10.0.0.2")}
	d := &Discoverer{Neighbors: nb, Ports: &fakePorts{}, Detector: fakeDetector{}, Fetcher: fakeFetcher{}}

	opts := defaultOpts
	opts.Warm = false
	devices, err := d.Discover(context.Background(), opts)
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	if devices == nil || len(devices) != 0 {
		t.Errorf("devices = %#v, want empty non-nil slice", devices)
	}
	if len(nb.warmed) != 0 {
		t.Error("Warm should not be called when disabled")
	}
}

func TestDiscover_TopLevelErrorsAreReported(t *testing.T) {
	tests := []struct {
		name string
		nb   *fakeNeighbors
		opts Options
	}{
		{"bad cidr", &fakeNeighbors{local: addr("10.0.0.2")}, Options{CIDR: "10.0.0.0/99", Ports: []int{7125}}},
		{"no ports", &fakeNeighbors{local: addr("10.0.0.2")}, Options{CIDR: "10.0.0.0/24"}},
		{"no local address", &fakeNeighbors{localErr: errors.New("network is unreachable")}, defaultOpts},
		{"table unreadable", &fakeNeighbors{local: addr("10.0.0.2"), listErr: errors.New("arp: not found")}, defaultOpts},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := &recordingReporter{}
			d := &Discoverer{Neighbors: tt.nb, Ports: &fakePorts{}, Detector: fakeDetector{}, Fetcher: fakeFetcher{}, Reporter: rep}

			if _, err := d.Discover(context.Background(), tt.opts); err == nil {
				t.Fatal("Discover() expected error")
			}
			if len(rep.reports) != 1 || rep.reports[0].Err == nil || rep.reports[0].Found != 0 {
				t.Errorf("reports = %+v, want one report carrying the error", rep.reports)
			}
		})
	}
}

func TestDiscover_CancelledRunIsReportedAsError(t *testing.T) {
	nb := &fakeNeighbors{local: addr("10.0.0.2"), entries: []neighbor.Entry{entry("10.0.0.5", "aa-bb-cc-dd-ee-01")}}
	rep := &recordingReporter{}
	d := &Discoverer{
		Neighbors: nb,
		Ports:     &fakePorts{open: map[netip.Addr]bool{addr("10.0.0.5"): true}},
		Detector:  fakeDetector{},
		Fetcher:   fakeFetcher{addr("10.0.0.5"): {hostname: "voron"}},
		Reporter:  rep,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Discover(ctx, defaultOpts)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Discover() error = %v, want context.Canceled", err)
	}
	if len(rep.reports) != 1 || !errors.Is(rep.reports[0].Err, context.Canceled) {
		t.Errorf("reports = %+v, want the interruption recorded", rep.reports)
	}
}

func TestDiscover_MDNSAddsCandidates(t *testing.T) {
	nb := &fakeNeighbors{
		local:   addr("10.0.0.2"),
		entries: []neighbor.Entry{entry("10.0.0.5", "aa-bb-cc-dd-ee-05")},
	}
	ports := &fakePorts{open: map[netip.Addr]bool{addr("10.0.0.5"): true, addr("10.0.0.77"): true}}
	fetcher := fakeFetcher{
		addr("10.0.0.5"):  {hostname: "one"},
		addr("10.0.0.77"): {hostname: "two"},
	}
	browser := fakeBrowser{ads: []neighbor.Advertisement{{Address: addr("10.0.0.77"), Port: 7125}}}

	d := &Discoverer{Neighbors: nb, Ports: ports, Detector: fakeDetector{}, Fetcher: fetcher, Browser: browser}

	devices, err := d.Discover(context.Background(), defaultOpts)
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("without MDNS option got %d devices, want 1", len(devices))
	}

	opts := defaultOpts
	opts.MDNS = true
	devices, err = d.Discover(context.Background(), opts)
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	if len(devices) != 2 || devices[1].Hostname != "two" || devices[1].MAC != "" {
		t.Errorf("devices = %+v, want the advertised printer with no link address", devices)
	}
}

func TestFetchFailure(t *testing.T) {
	const addr = "192.168.1.40:7125"
	tests := []struct {
		err  error
		want string
	}{
		{moonraker.NewShapeError("missing result.status.extruder", addr), "incomplete telemetry"},
		{moonraker.NewParseError("invalid JSON", addr, errors.New("unexpected EOF")), "malformed telemetry"},
		{moonraker.NewHTTPError(503, addr), "query rejected"},
		{moonraker.ClassifyNetworkError(context.DeadlineExceeded, addr), "unreachable"},
		{errors.New("boom"), "fetch failed"},
	}

	for _, tt := range tests {
		if got := fetchFailure(tt.err); got != tt.want {
			t.Errorf("fetchFailure(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
