package discovery

import (
	"fmt"
	"net/netip"
	"net/url"
	"strings"
)

// Device represents one Moonraker printer found on the network.
// Records are built once by the Fetcher and never modified afterwards.
type Device struct {
	// Hostname is the printer host's own name from /printer/info; it
	// identifies the device within one discovery run
	Hostname string `json:"hostname"`

	// IP is the IPv4 address the printer was reached on (e.g., "192.168.1.40")
	IP string `json:"ip"`

	// MAC is the link address from the neighbor table (e.g., "d8-3a-dd-e0-c9-4b")
	MAC string `json:"mac"`

	// BaseURL is the Moonraker API root (e.g., "http://192.168.1.40:7125")
	BaseURL string `json:"base_url"`

	// UIURL is the web interface (Mainsail/Fluidd) on port 80
	UIURL string `json:"ui_url"`

	SoftwareVersion string `json:"software_version"`
	StateMessage    string `json:"state_message"`

	// Status is idle_timeout.state: "Idle", "Ready" or "Printing"
	Status string `json:"status"`

	// Temperatures are nil when the printer has no such heater
	ExtruderTemperature  *float64 `json:"extruder_temperature"`
	Extruder1Temperature *float64 `json:"extruder1_temperature"`
	Extruder2Temperature *float64 `json:"extruder2_temperature"`
	HeaterBedTemperature *float64 `json:"heater_bed_temperature"`

	// PrintProgress is virtual_sdcard.progress in [0, 1]
	PrintProgress float64 `json:"print_progress"`

	// FilePath is the absolute path of the loaded gcode file, if any
	FilePath string `json:"file_path"`

	// ThumbnailURL is only set when FilePath lies under the gcode root
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// String returns a human-readable string representation of the device
func (d *Device) String() string {
	return fmt.Sprintf("Printer %s at %s (%s)", d.Hostname, d.IP, d.BaseURL)
}

// Addr parses IP; invalid addresses sort first.
func (d *Device) Addr() netip.Addr {
	a, _ := netip.ParseAddr(d.IP)
	return a
}

// Printing reports whether the printer is running a job.
func (d *Device) Printing() bool {
	return strings.EqualFold(d.Status, "Printing")
}

// thumbnailURL maps a gcode path under prefix to Moonraker's thumbnail
// endpoint. Paths outside prefix have no thumbnail.
func thumbnailURL(baseURL, filePath, prefix string) string {
	if filePath == "" || prefix == "" || !strings.HasPrefix(filePath, prefix) {
		return ""
	}
	rel := strings.TrimPrefix(filePath, prefix)
	if rel == "" {
		return ""
	}

	segments := strings.Split(rel, "/")
	for i, s := range segments {
		segments[i] = strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
	}
	return baseURL + "/server/files/thumbnails?filename=" + strings.Join(segments, "/")
}
