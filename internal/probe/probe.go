package probe

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/muurk/fleethelm/internal/logging"
	"github.com/muurk/fleethelm/internal/moonraker"
)

const (
	// DefaultConnectTimeout bounds each TCP connect attempt.
	DefaultConnectTimeout = 250 * time.Millisecond

	// DefaultIdentifyTimeout bounds each GET /printer/info.
	DefaultIdentifyTimeout = 1500 * time.Millisecond
)

// Endpoint is an address and port confirmed to serve the Moonraker API.
type Endpoint struct {
	Address netip.Addr
	Port    int
}

// BaseURL returns the HTTP root of the endpoint.
func (e Endpoint) BaseURL() string {
	return "http://" + net.JoinHostPort(e.Address.String(), strconv.Itoa(e.Port))
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.Address, e.Port)
}

// PortScanner tests which candidate ports accept TCP connections.
type PortScanner struct {
	Timeout time.Duration
	dial    func(ctx context.Context, network, address string) (net.Conn, error)
}

// NewPortScanner creates a scanner with DefaultConnectTimeout.
func NewPortScanner(timeout time.Duration) *PortScanner {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	d := &net.Dialer{}
	return &PortScanner{Timeout: timeout, dial: d.DialContext}
}

// OpenPorts tries every port concurrently and returns the ones that
// accepted a connection, in the order they were given. A refused or timed
// out connection is a negative result, never an error.
func (s *PortScanner) OpenPorts(ctx context.Context, addr netip.Addr, ports []int) []int {
	open := make([]bool, len(ports))

	var g errgroup.Group
	for i, port := range ports {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, s.Timeout)
			defer cancel()

			conn, err := s.dial(cctx, "tcp", net.JoinHostPort(addr.String(), strconv.Itoa(port)))
			if err != nil {
				return nil
			}
			_ = conn.Close()
			open[i] = true
			return nil
		})
	}
	_ = g.Wait()

	var result []int
	for i, ok := range open {
		if ok {
			result = append(result, ports[i])
		}
	}
	return result
}

// Identifier is the part of the Moonraker client the detector needs.
type Identifier interface {
	Identify(ctx context.Context) error
}

// Detector picks the first open port that answers like Moonraker.
type Detector struct {
	Timeout time.Duration

	// NewClient builds a client for a candidate base URL. Replaced in tests.
	NewClient func(baseURL string) Identifier
}

// NewDetector creates a detector using the moonraker client.
func NewDetector(timeout time.Duration) *Detector {
	if timeout <= 0 {
		timeout = DefaultIdentifyTimeout
	}
	return &Detector{
		Timeout: timeout,
		NewClient: func(baseURL string) Identifier {
			return moonraker.NewClientWithURL(baseURL)
		},
	}
}

// Detect tries openPorts in the given priority order and returns the first
// endpoint whose /printer/info is a JSON object with a "result" member.
// Network and decode failures on a port just move on to the next one.
func (d *Detector) Detect(ctx context.Context, addr netip.Addr, openPorts []int) (Endpoint, bool) {
	for _, port := range openPorts {
		ep := Endpoint{Address: addr, Port: port}

		cctx, cancel := context.WithTimeout(ctx, d.Timeout)
		err := d.NewClient(ep.BaseURL()).Identify(cctx)
		cancel()

		if err == nil {
			return ep, true
		}
		logging.Debug("Port is not Moonraker", zap.Stringer("endpoint", ep), zap.Error(err))

		if ctx.Err() != nil {
			break
		}
	}
	return Endpoint{}, false
}
