// Package neighbor lists the LAN hosts the operating system already knows.
//
// Discovery never sweeps the network for printers directly. It reads the
// neighbor (ARP) table and only probes hosts found there:
//
//   - Linux: /proc/net/arp, falling back to `arp -a`
//   - Windows: `arp -a` ("192.168.1.210   d8-3a-dd-e0-c9-4b   dynamic")
//   - macOS and the BSDs: `arp -a` ("? (192.168.1.210) at d8:3a:dd:e0:c9:4b on en0")
//
// Link addresses are normalized to lower-case hyphenated form. Multicast and
// broadcast shaped entries are dropped, as are lines of any other layout.
//
// Warm can be called first to coax the table into containing every live host.
// It sends one ICMP echo (or a UDP datagram when unprivileged ICMP sockets
// are not allowed) to each address of a prefix, paced by a rate limiter. Its
// outcome is not reported; a host that does not answer simply does not
// appear in List.
//
// Browse optionally supplements the table with hosts announcing
// _moonraker._tcp over mDNS.
package neighbor
