package neighbor

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is the mDNS service type Moonraker advertises when its
	// zeroconf component is enabled.
	ServiceType = "_moonraker._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultBrowseTimeout is how long a browse listens for answers.
	DefaultBrowseTimeout = 2 * time.Second
)

// Advertisement is one Moonraker instance announced over mDNS.
type Advertisement struct {
	Instance string
	Hostname string
	Address  netip.Addr
	Port     int
}

// Browser handles mDNS discovery of Moonraker instances
type Browser struct {
	// Timeout is how long to wait for advertisements
	Timeout time.Duration
}

// NewBrowser creates a new mDNS browser with default settings
func NewBrowser() *Browser {
	return &Browser{Timeout: DefaultBrowseTimeout}
}

// Browse collects advertisements until the timeout or ctx ends.
func (b *Browser) Browse(ctx context.Context) ([]Advertisement, error) {
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = DefaultBrowseTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	var (
		mu    sync.Mutex
		found []Advertisement
	)

	go func() {
		for entry := range entries {
			if ad, ok := parseServiceEntry(entry); ok {
				mu.Lock()
				found = append(found, ad)
				mu.Unlock()
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	return append([]Advertisement(nil), found...), nil
}

// parseServiceEntry converts a zeroconf entry; entries without an IPv4
// address are dropped since the rest of discovery is IPv4 only.
func parseServiceEntry(entry *zeroconf.ServiceEntry) (Advertisement, bool) {
	if entry == nil {
		return Advertisement{}, false
	}

	var addr netip.Addr
	for _, ip := range entry.AddrIPv4 {
		if a, ok := netip.AddrFromSlice(ip); ok {
			addr = a.Unmap()
			break
		}
	}
	if !addr.IsValid() || !addr.Is4() {
		return Advertisement{}, false
	}

	return Advertisement{
		Instance: entry.Instance,
		Hostname: entry.HostName,
		Address:  addr,
		Port:     entry.Port,
	}, true
}

// Merge appends advertised addresses missing from entries, with an empty
// link address, keeping table order first.
func Merge(entries []Entry, ads []Advertisement) []Entry {
	seen := make(map[netip.Addr]struct{}, len(entries))
	for _, e := range entries {
		seen[e.Address] = struct{}{}
	}
	for _, ad := range ads {
		if _, ok := seen[ad.Address]; ok {
			continue
		}
		if Excluded(ad.Address.String(), "") {
			continue
		}
		seen[ad.Address] = struct{}{}
		entries = append(entries, Entry{Address: ad.Address})
	}
	return entries
}
