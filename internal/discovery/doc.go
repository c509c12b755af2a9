// Package discovery finds Moonraker printers on the local network.
//
// There is no registry of printer addresses. Every run starts from the
// operating system neighbor table and narrows it down:
//  1. Resolve this host's LAN address so it can be skipped
//  2. Optionally warm the neighbor table with a paced probe sweep of the CIDR
//  3. List the neighbors (plus mDNS advertisements when enabled)
//  4. For each neighbor concurrently: scan the candidate ports, detect the
//     one speaking Moonraker, then fetch the printer's status
//  5. Join, keep one record per hostname, sort by address
//
// A neighbor that fails at any step is simply absent from the result. Only a
// failure to build the candidate list (bad CIDR, no local address, unreadable
// neighbor table) fails the run.
//
// # Usage Example
//
//	d := &discovery.Discoverer{
//	    Neighbors: neighbor.NewSource(),
//	    Ports:     probe.NewPortScanner(0),
//	    Detector:  probe.NewDetector(0),
//	    Fetcher:   discovery.NewFetcher(0, discovery.DefaultThumbnailPrefix),
//	}
//
//	devices, err := d.Discover(ctx, discovery.Options{
//	    CIDR:  "192.168.1.0/24",
//	    Warm:  true,
//	    Ports: []int{7125, 80, 4408},
//	})
//
// # Device Records
//
// A Device is only produced when /printer/info and all six object queries
// (three extruders, bed, idle_timeout, virtual_sdcard) succeed. Heaters the
// printer does not have are reported as null temperatures.
//
// # Thread Safety
//
// A Discoverer holds no per-run state and can serve concurrent requests.
// Each run owns its result slots; the Reporter is the only shared sink.
package discovery
