package neighbor

import (
	"net/netip"
	"regexp"
	"strings"
)

// Entry is one unicast neighbor known to the operating system.
type Entry struct {
	Address     netip.Addr `json:"ip"`
	LinkAddress string     `json:"mac"` // lower-case, hyphen separated; empty when learned from mDNS
}

// arpLine matches the `arp -a` layout printed by Windows:
//
//	192.168.1.210         d8-3a-dd-e0-c9-4b     dynamic
var arpLine = regexp.MustCompile(`^\s*(\d{1,3}(?:\.\d{1,3}){3})\s+([0-9a-fA-F]{2}(?:-[0-9a-fA-F]{2}){5})\s+(\w+)\s*$`)

// linkAddress is the normalized form every parser produces.
var linkAddress = regexp.MustCompile(`^[0-9a-f]{2}(?:-[0-9a-f]{2}){5}$`)

// bsdARPLine matches the BSD/macOS layout:
//
//	? (192.168.1.210) at d8:3a:dd:e0:c9:4b on en0 ifscope [ethernet]
var bsdARPLine = regexp.MustCompile(`\((\d{1,3}(?:\.\d{1,3}){3})\) at ([0-9a-fA-F]{1,2}(?::[0-9a-fA-F]{1,2}){5}) `)

// ParseARPOutput extracts entries from Windows-style `arp -a` output.
// Lines of any other shape are skipped.
func ParseARPOutput(out string) []Entry {
	var entries []Entry
	for _, line := range strings.Split(out, "\n") {
		m := arpLine.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		if e, ok := newEntry(m[1], m[2]); ok {
			entries = append(entries, e)
		}
	}
	return entries
}

// ParseBSDARPOutput extracts entries from BSD/macOS `arp -a` output.
// Octets printed without a leading zero are padded.
func ParseBSDARPOutput(out string) []Entry {
	var entries []Entry
	for _, line := range strings.Split(out, "\n") {
		m := bsdARPLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		octets := strings.Split(m[2], ":")
		for i, o := range octets {
			if len(o) == 1 {
				octets[i] = "0" + o
			}
		}
		if e, ok := newEntry(m[1], strings.Join(octets, "-")); ok {
			entries = append(entries, e)
		}
	}
	return entries
}

// ParseProcNetARP extracts entries from Linux /proc/net/arp:
//
//	IP address       HW type     Flags       HW address            Mask     Device
//	192.168.1.210    0x1         0x2         d8:3a:dd:e0:c9:4b     *        eth0
//
// Incomplete entries (flags 0x0) are skipped.
func ParseProcNetARP(content string) []Entry {
	var entries []Entry
	for _, line := range strings.Split(content, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 || fields[2] == "0x0" {
			continue
		}
		if e, ok := newEntry(fields[0], strings.ReplaceAll(fields[3], ":", "-")); ok {
			entries = append(entries, e)
		}
	}
	return entries
}

func newEntry(ip, mac string) (Entry, bool) {
	mac = strings.ToLower(mac)
	if !linkAddress.MatchString(mac) || Excluded(ip, mac) {
		return Entry{}, false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil || !addr.Is4() {
		return Entry{}, false
	}
	return Entry{Address: addr, LinkAddress: mac}, true
}

// Excluded reports whether an address pair is multicast or broadcast shaped.
// mac must already be lower-case and hyphen separated.
func Excluded(ip, mac string) bool {
	if strings.HasPrefix(ip, "224.") || strings.HasPrefix(ip, "239.") ||
		strings.HasSuffix(ip, ".255") || ip == "255.255.255.255" {
		return true
	}
	if strings.HasPrefix(mac, "01-00-5e") || mac == "ff-ff-ff-ff-ff-ff" || mac == "00-00-00-00-00-00" {
		return true
	}
	return false
}

// dedupe keeps the first entry for every address.
func dedupe(entries []Entry) []Entry {
	seen := make(map[netip.Addr]struct{}, len(entries))
	out := entries[:0]
	for _, e := range entries {
		if _, ok := seen[e.Address]; ok {
			continue
		}
		seen[e.Address] = struct{}{}
		out = append(out, e)
	}
	return out
}
