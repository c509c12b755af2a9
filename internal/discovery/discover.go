package discovery

import (
	"context"
	"fmt"
	"net/netip"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/muurk/fleethelm/internal/logging"
	"github.com/muurk/fleethelm/internal/moonraker"
	"github.com/muurk/fleethelm/internal/neighbor"
	"github.com/muurk/fleethelm/internal/probe"
)

// NeighborSource lists candidate hosts. *neighbor.Source implements it.
type NeighborSource interface {
	LocalAddress(ctx context.Context) (netip.Addr, error)
	Warm(ctx context.Context, prefix netip.Prefix, limit int)
	List(ctx context.Context) ([]neighbor.Entry, error)
}

// PortProber reports which ports of a host accept connections.
type PortProber interface {
	OpenPorts(ctx context.Context, addr netip.Addr, ports []int) []int
}

// EndpointDetector picks the Moonraker port among open ones.
type EndpointDetector interface {
	Detect(ctx context.Context, addr netip.Addr, openPorts []int) (probe.Endpoint, bool)
}

// DetailFetcher builds the device record for a confirmed endpoint.
type DetailFetcher interface {
	Fetch(ctx context.Context, ep probe.Endpoint, entry neighbor.Entry) (*Device, error)
}

// AdvertisementBrowser finds hosts announcing Moonraker over mDNS.
type AdvertisementBrowser interface {
	Browse(ctx context.Context) ([]neighbor.Advertisement, error)
}

// RunReport summarizes one discovery run for health reporting.
type RunReport struct {
	StartedAt time.Time
	CIDR      string
	Found     int
	Elapsed   time.Duration
	Err       error
}

// Reporter receives a RunReport after every run. Implementations must not block.
type Reporter interface {
	PublishDiscovery(RunReport)
}

// Options are the per-request discovery parameters.
type Options struct {
	// CIDR is the network swept when Warm is set
	CIDR string
	Warm bool
	// WarmLimit caps the hosts probed while warming (0 = all)
	WarmLimit int
	// Ports are candidate API ports in priority order
	Ports []int
	// MDNS adds hosts advertising _moonraker._tcp to the candidates
	MDNS bool
}

// Discoverer runs the neighbor, probe and fetch pipeline.
type Discoverer struct {
	Neighbors NeighborSource
	Ports     PortProber
	Detector  EndpointDetector
	Fetcher   DetailFetcher

	// Browser is optional; without it Options.MDNS is ignored
	Browser AdvertisementBrowser

	// Reporter is optional
	Reporter Reporter
}

// Discover returns the printers reachable through the neighbor table, one
// per hostname, sorted by IPv4 address.
//
// Each candidate runs its own scan, detect and fetch pipeline concurrently
// and writes only to its own result slot. When two candidates report the same
// hostname the one earlier in the neighbor table wins. Candidates that fail
// at any stage are left out; only a failure to build the candidate list is
// returned as an error.
func (d *Discoverer) Discover(ctx context.Context, opts Options) (devices []Device, err error) {
	started := time.Now()
	defer func() {
		if err == nil && ctx.Err() != nil {
			err = fmt.Errorf("discovery interrupted: %w", ctx.Err())
		}
		elapsed := time.Since(started)
		logging.LogDiscoveryRun(opts.CIDR, len(devices), elapsed, err)
		if d.Reporter != nil {
			d.Reporter.PublishDiscovery(RunReport{
				StartedAt: started,
				CIDR:      opts.CIDR,
				Found:     len(devices),
				Elapsed:   elapsed,
				Err:       err,
			})
		}
	}()

	candidates, err := d.candidates(ctx, opts)
	if err != nil {
		return nil, err
	}

	results := make([]*Device, len(candidates))

	var g errgroup.Group
	for i, entry := range candidates {
		g.Go(func() error {
			results[i] = d.probe(ctx, entry, opts.Ports)
			return nil
		})
	}
	_ = g.Wait()

	return reduce(results), nil
}

// candidates resolves the local address, optionally warms the table, and
// returns every neighbor except this host.
func (d *Discoverer) candidates(ctx context.Context, opts Options) ([]neighbor.Entry, error) {
	prefix, err := netip.ParsePrefix(opts.CIDR)
	if err != nil {
		return nil, fmt.Errorf("invalid cidr %q: %w", opts.CIDR, err)
	}
	if len(opts.Ports) == 0 {
		return nil, fmt.Errorf("no candidate ports")
	}

	local, err := d.Neighbors.LocalAddress(ctx)
	if err != nil {
		return nil, err
	}
	logging.Debug("Starting discovery",
		zap.Stringer("local", local),
		zap.String("cidr", opts.CIDR),
		zap.Ints("ports", opts.Ports),
		zap.Bool("warm", opts.Warm))

	if opts.Warm {
		d.Neighbors.Warm(ctx, prefix, opts.WarmLimit)
	}

	entries, err := d.Neighbors.List(ctx)
	if err != nil {
		return nil, err
	}
	logging.Debug("Neighbor table read", zap.Int("entries", len(entries)))

	if opts.MDNS && d.Browser != nil {
		ads, err := d.Browser.Browse(ctx)
		if err != nil {
			logging.Debug("mDNS browse failed", zap.Error(err))
		}
		entries = neighbor.Merge(entries, ads)
	}

	out := make([]neighbor.Entry, 0, len(entries))
	for _, e := range entries {
		if e.Address == local {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// probe runs one candidate's pipeline. It never fails; a candidate that is
// not a ready Moonraker printer yields nil.
func (d *Discoverer) probe(ctx context.Context, entry neighbor.Entry, ports []int) *Device {
	open := d.Ports.OpenPorts(ctx, entry.Address, ports)
	if len(open) == 0 {
		return nil
	}

	ep, ok := d.Detector.Detect(ctx, entry.Address, open)
	if !ok {
		return nil
	}

	dev, err := d.Fetcher.Fetch(ctx, ep, entry)
	if err != nil {
		logging.Info("Printer not ready, skipping",
			zap.Stringer("endpoint", ep),
			zap.String("reason", fetchFailure(err)),
			zap.Error(err))
		return nil
	}
	return dev
}

// fetchFailure names why a detail fetch produced no record.
func fetchFailure(err error) string {
	switch {
	case moonraker.IsShapeError(err):
		return "incomplete telemetry"
	case moonraker.IsParseError(err):
		return "malformed telemetry"
	case moonraker.IsHTTPError(err):
		return "query rejected"
	case moonraker.IsNetworkError(err):
		return "unreachable"
	default:
		return "fetch failed"
	}
}

// reduce drops empty slots and duplicate hostnames (first slot wins), then
// orders the records by address.
func reduce(results []*Device) []Device {
	seen := make(map[string]struct{}, len(results))
	devices := make([]Device, 0, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		if _, dup := seen[r.Hostname]; dup {
			logging.Debug("Duplicate hostname, keeping first", zap.String("hostname", r.Hostname), zap.String("ip", r.IP))
			continue
		}
		seen[r.Hostname] = struct{}{}
		devices = append(devices, *r)
	}

	sort.SliceStable(devices, func(i, j int) bool {
		return devices[i].Addr().Less(devices[j].Addr())
	})
	return devices
}
