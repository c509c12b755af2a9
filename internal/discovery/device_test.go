package discovery

import "testing"

func TestDevice_String(t *testing.T) {
	device := &Device{
		Hostname: "voron24",
		IP:       "192.168.1.40",
		BaseURL:  "http://192.168.1.40:7125",
	}

	expected := "Printer voron24 at 192.168.1.40 (http://192.168.1.40:7125)"
	if device.String() != expected {
		t.Errorf("Device.String() = %v, want %v", device.String(), expected)
	}
}

func TestDevice_Printing(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{"Printing", true},
		{"printing", true},
		{"Idle", false},
		{"Ready", false},
		{"", false},
	}

	for _, tt := range tests {
		d := &Device{Status: tt.status}
		if got := d.Printing(); got != tt.want {
			t.Errorf("Printing() with status %q = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestThumbnailURL(t *testing.T) {
	const base = "http://192.168.1.40:7125"

	tests := []struct {
		name     string
		filePath string
		prefix   string
		expected string
	}{
		{
			name:     "file under gcode root",
			filePath: "/home/pi/printer_data/gcodes/benchy.gcode",
			prefix:   DefaultThumbnailPrefix,
			expected: base + "/server/files/thumbnails?filename=benchy.gcode",
		},
		{
			name:     "subdirectory and spaces",
			filePath: "/home/pi/printer_data/gcodes/parts/clip v2 & co.gcode",
			prefix:   DefaultThumbnailPrefix,
			expected: base + "/server/files/thumbnails?filename=parts/clip%20v2%20%26%20co.gcode",
		},
		{
			name:     "file outside gcode root",
			filePath: "/tmp/benchy.gcode",
			prefix:   DefaultThumbnailPrefix,
			expected: "",
		},
		{
			name:     "no file loaded",
			filePath: "",
			prefix:   DefaultThumbnailPrefix,
			expected: "",
		},
		{
			name:     "prefix only",
			filePath: DefaultThumbnailPrefix,
			prefix:   DefaultThumbnailPrefix,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := thumbnailURL(base, tt.filePath, tt.prefix); got != tt.expected {
				t.Errorf("thumbnailURL() = %q, want %q", got, tt.expected)
			}
		})
	}
}
