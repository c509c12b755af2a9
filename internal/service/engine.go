package service

import (
	"context"
	"fmt"

	"github.com/muurk/fleethelm/internal/config"
	"github.com/muurk/fleethelm/internal/discovery"
	"github.com/muurk/fleethelm/internal/fleet"
	"github.com/muurk/fleethelm/internal/health"
	"github.com/muurk/fleethelm/internal/neighbor"
	"github.com/muurk/fleethelm/internal/probe"
)

// Discoverer finds printers. *discovery.Discoverer implements it.
type Discoverer interface {
	Discover(ctx context.Context, opts discovery.Options) ([]discovery.Device, error)
}

// Aggregator reads fleet history. *fleet.Aggregator implements it.
type Aggregator interface {
	Aggregate(ctx context.Context, devices []discovery.Device, opts fleet.Options) *fleet.Report
}

// Engine exposes the two fleet operations: listing devices and
// aggregating their history.
type Engine struct {
	Discoverer Discoverer
	Aggregator Aggregator
	Monitor    *health.Monitor

	discovery config.DiscoveryConfig
	history   config.HistoryConfig
}

// New wires an Engine from configuration.
func New(cfg *config.Config) *Engine {
	d := cfg.Discovery

	src := neighbor.NewSource()
	if d.WarmRate > 0 {
		src.WarmRate = d.WarmRate
	}

	browser := neighbor.NewBrowser()
	if d.MDNSTimeout > 0 {
		browser.Timeout = d.MDNSTimeout
	}

	monitor := health.NewMonitor()

	return &Engine{
		Discoverer: &discovery.Discoverer{
			Neighbors: src,
			Ports:     probe.NewPortScanner(d.ConnectTimeout),
			Detector:  probe.NewDetector(d.IdentifyTimeout),
			Fetcher:   discovery.NewFetcher(d.QueryTimeout, d.ThumbnailPrefix),
			Browser:   browser,
			Reporter:  monitor,
		},
		Aggregator: fleet.NewAggregator(cfg.History.TotalsTimeout, cfg.History.PageTimeout),
		Monitor:    monitor,
		discovery:  d,
		history:    cfg.History,
	}
}

// DiscoveryOptions returns the configured discovery defaults.
func (e *Engine) DiscoveryOptions() discovery.Options {
	return discovery.Options{
		CIDR:      e.discovery.CIDR,
		Warm:      e.discovery.Warm,
		WarmLimit: e.discovery.WarmLimit,
		Ports:     append([]int(nil), e.discovery.Ports...),
		MDNS:      e.discovery.MDNS,
	}
}

// HistoryOptions returns the configured history defaults.
func (e *Engine) HistoryOptions() fleet.Options {
	return fleet.Options{
		MatchLongest: e.history.MatchLongest,
		MaxPages:     e.history.MaxPages,
		PageLimit:    e.history.PageLimit,
		StatsPages:   e.history.StatsPages,
	}
}

// Devices discovers the printers in scope.
func (e *Engine) Devices(ctx context.Context, opts discovery.Options) ([]discovery.Device, error) {
	return e.Discoverer.Discover(ctx, opts)
}

// HistoryAggregate discovers the printers in scope and aggregates their
// job history.
func (e *Engine) HistoryAggregate(ctx context.Context, dopts discovery.Options, hopts fleet.Options) (*fleet.Report, error) {
	devices, err := e.Discoverer.Discover(ctx, dopts)
	if err != nil {
		return nil, fmt.Errorf("discovery failed: %w", err)
	}
	return e.Aggregator.Aggregate(ctx, devices, hopts), nil
}
