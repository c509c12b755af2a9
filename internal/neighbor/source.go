package neighbor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"os/exec"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/time/rate"

	"github.com/muurk/fleethelm/internal/logging"
)

const (
	// DefaultWarmRate is the number of presence probes sent per second.
	DefaultWarmRate = 500

	// DefaultSettle is how long Warm waits after the last probe so address
	// resolution can finish before the table is read.
	DefaultSettle = 300 * time.Millisecond

	// routeProbeTarget is only used to let the kernel pick the outbound
	// interface; nothing is sent to it.
	routeProbeTarget = "8.8.8.8:80"

	procNetARP = "/proc/net/arp"

	// maxWarmHosts bounds an unlimited sweep of a very large prefix.
	maxWarmHosts = 65534
)

// Source reads the operating system neighbor table.
type Source struct {
	// WarmRate caps presence probes per second (0 = DefaultWarmRate)
	WarmRate int

	// Settle is the pause after warming (0 = DefaultSettle)
	Settle time.Duration

	// readTable returns the raw neighbor table and the parser for it.
	// Replaced in tests.
	readTable func(ctx context.Context) (string, func(string) []Entry, error)
}

// NewSource creates a Source for the current platform.
func NewSource() *Source {
	return &Source{
		WarmRate:  DefaultWarmRate,
		Settle:    DefaultSettle,
		readTable: readSystemTable,
	}
}

// LocalAddress returns the IPv4 address the host would use for outbound
// traffic. It connects a UDP socket, which selects a route without sending
// any datagram.
func (s *Source) LocalAddress(ctx context.Context) (netip.Addr, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp4", routeProbeTarget)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("cannot determine local address: %w", err)
	}
	defer func() { _ = conn.Close() }()

	udpAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return netip.Addr{}, fmt.Errorf("cannot determine local address: unexpected %T", conn.LocalAddr())
	}
	addr, ok := netip.AddrFromSlice(udpAddr.IP)
	if !ok {
		return netip.Addr{}, fmt.Errorf("cannot determine local address: invalid %v", udpAddr.IP)
	}
	return addr.Unmap(), nil
}

// List returns the current unicast neighbors, first occurrence per address,
// in table order.
func (s *Source) List(ctx context.Context) ([]Entry, error) {
	read := s.readTable
	if read == nil {
		read = readSystemTable
	}

	raw, parse, err := read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read neighbor table: %w", err)
	}
	return dedupe(parse(raw)), nil
}

func readSystemTable(ctx context.Context) (string, func(string) []Entry, error) {
	if runtime.GOOS == "linux" {
		content, err := os.ReadFile(procNetARP)
		if err == nil {
			return string(content), ParseProcNetARP, nil
		}
		logging.Debug("Falling back to arp -a", zap.Error(err))
	}

	out, err := exec.CommandContext(ctx, "arp", "-a").Output()
	if err != nil {
		return "", nil, fmt.Errorf("arp -a: %w", err)
	}

	if runtime.GOOS == "windows" {
		return string(out), ParseARPOutput, nil
	}
	// macOS, the BSDs and net-tools on Linux share this layout
	return string(out), ParseBSDARPOutput, nil
}

// Hosts returns the host addresses of prefix in ascending order, excluding
// the network and broadcast addresses when the prefix has room for them.
// limit > 0 caps the count.
func Hosts(prefix netip.Prefix, limit int) []netip.Addr {
	prefix = prefix.Masked()
	if !prefix.Addr().Is4() {
		return nil
	}

	bits := prefix.Bits()
	size := 1 << (32 - bits)

	first := prefix.Addr()
	count := size
	if bits < 31 {
		first = first.Next()
		count = size - 2
	}
	if limit > 0 && count > limit {
		count = limit
	}

	hosts := make([]netip.Addr, 0, count)
	for a := first; len(hosts) < count && prefix.Contains(a); a = a.Next() {
		hosts = append(hosts, a)
	}
	return hosts
}

// Warm sends one presence probe to each host of prefix (at most limit when
// limit > 0) so the operating system populates its neighbor table. Every
// failure is ignored: the result of warming is only visible through List.
func (s *Source) Warm(ctx context.Context, prefix netip.Prefix, limit int) {
	if limit <= 0 || limit > maxWarmHosts {
		limit = maxWarmHosts
	}
	hosts := Hosts(prefix, limit)
	if len(hosts) == 0 {
		return
	}

	send, closeFn, err := openProber()
	if err != nil {
		logging.Debug("Warm sweep unavailable", zap.Error(err))
		return
	}
	defer closeFn()

	r := s.WarmRate
	if r <= 0 {
		r = DefaultWarmRate
	}
	limiter := rate.NewLimiter(rate.Limit(r), max(1, r/20))

	started := time.Now()
	sent := 0
	for i, host := range hosts {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		if err := send(host, i); err != nil {
			logging.Debug("Warm probe failed", zap.Stringer("host", host), zap.Error(err))
			continue
		}
		sent++
	}

	settle := s.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}
	select {
	case <-ctx.Done():
	case <-time.After(settle):
	}

	logging.Debug("Warm sweep finished",
		zap.String("cidr", prefix.String()),
		zap.Int("hosts", len(hosts)),
		zap.Int("sent", sent),
		zap.Duration("elapsed", time.Since(started)))
}

// openProber prefers an unprivileged ICMP echo socket and falls back to a
// UDP datagram to the discard port. Either one makes the kernel resolve the
// target's link address.
func openProber() (func(netip.Addr, int) error, func(), error) {
	conn, err := icmp.ListenPacket("udp4", "0.0.0.0")
	if err == nil {
		id := os.Getpid() & 0xffff
		send := func(host netip.Addr, seq int) error {
			msg := icmp.Message{
				Type: ipv4.ICMPTypeEcho,
				Code: 0,
				Body: &icmp.Echo{ID: id, Seq: seq & 0xffff, Data: []byte("fleethelm")},
			}
			b, err := msg.Marshal(nil)
			if err != nil {
				return err
			}
			_, err = conn.WriteTo(b, &net.UDPAddr{IP: host.AsSlice()})
			return err
		}
		return send, func() { _ = conn.Close() }, nil
	}
	logging.Debug("ICMP socket unavailable, using UDP probes", zap.Error(err))

	udp, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return nil, nil, errors.Join(errors.New("no probe socket available"), err)
	}
	send := func(host netip.Addr, _ int) error {
		_, err := udp.WriteTo([]byte{0}, net.UDPAddrFromAddrPort(netip.AddrPortFrom(host, 9)))
		return err
	}
	return send, func() { _ = udp.Close() }, nil
}
