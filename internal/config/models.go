package config

import "time"

// Config represents the entire fleethelm configuration file.
type Config struct {
	Version   int             `yaml:"version"`
	Server    ServerConfig    `yaml:"server"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	History   HistoryConfig   `yaml:"history"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig controls the HTTP API listener.
type ServerConfig struct {
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	FallbackPorts     []int         `yaml:"fallback_ports,omitempty"` // Tried in order when Port is taken; 0 means any free port
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
}

// DiscoveryConfig holds the request defaults for printer discovery.
// Every field except the timeouts can be overridden per request.
type DiscoveryConfig struct {
	CIDR            string        `yaml:"cidr"`             // Network swept when warming the neighbor table
	Warm            bool          `yaml:"warm"`             // Send presence probes before reading the neighbor table
	WarmLimit       int           `yaml:"warm_limit"`       // Max hosts probed while warming (0 = whole network)
	WarmRate        int           `yaml:"warm_rate"`        // Presence probes per second
	Ports           []int         `yaml:"ports"`            // Candidate API ports in priority order
	MDNS            bool          `yaml:"mdns"`             // Also browse _moonraker._tcp
	MDNSTimeout     time.Duration `yaml:"mdns_timeout"`     // How long the mDNS browse listens
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`  // TCP connect probe
	IdentifyTimeout time.Duration `yaml:"identify_timeout"` // GET /printer/info during detection
	QueryTimeout    time.Duration `yaml:"query_timeout"`    // Each status query in the detail fetch
	ThumbnailPrefix string        `yaml:"thumbnail_prefix"` // gcode root on the printer; thumbnails only resolve under it
}

// HistoryConfig holds the request defaults for the history aggregate.
type HistoryConfig struct {
	MatchLongest  bool          `yaml:"match_longest"`
	MaxPages      int           `yaml:"max_pages"`   // Pages searched for the longest job/print
	PageLimit     int           `yaml:"page_limit"`  // Jobs per history page
	StatsPages    int           `yaml:"stats_pages"` // Pages scanned for status/month breakdowns
	TotalsTimeout time.Duration `yaml:"totals_timeout"`
	PageTimeout   time.Duration `yaml:"page_timeout"`
}

// LoggingConfig holds logging preferences.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default values, matching what the dashboard has always assumed.
const (
	DefaultCIDR            = "192.168.1.0/24"
	DefaultServerPort      = 5000
	DefaultWarmRate        = 500
	DefaultConnectTimeout  = 250 * time.Millisecond
	DefaultIdentifyTimeout = 1500 * time.Millisecond
	DefaultQueryTimeout    = 2 * time.Second
	DefaultMDNSTimeout     = 2 * time.Second
	DefaultTotalsTimeout   = 3 * time.Second
	DefaultPageTimeout     = 4 * time.Second
	DefaultMaxPages        = 6
	DefaultPageLimit       = 200
	DefaultStatsPages      = 12
	DefaultThumbnailPrefix = "/home/pi/printer_data/gcodes/"
)

// DefaultPorts lists the usual places Moonraker answers: its own port,
// a reverse proxy on 80, and the Creality/K1 layout on 4408.
func DefaultPorts() []int {
	return []int{7125, 80, 4408}
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              DefaultServerPort,
			FallbackPorts:     []int{5050, 8000, 8080, 0},
			ReadHeaderTimeout: 10 * time.Second,
		},
		Discovery: DiscoveryConfig{
			CIDR:            DefaultCIDR,
			Warm:            true,
			WarmRate:        DefaultWarmRate,
			Ports:           DefaultPorts(),
			MDNSTimeout:     DefaultMDNSTimeout,
			ConnectTimeout:  DefaultConnectTimeout,
			IdentifyTimeout: DefaultIdentifyTimeout,
			QueryTimeout:    DefaultQueryTimeout,
			ThumbnailPrefix: DefaultThumbnailPrefix,
		},
		History: HistoryConfig{
			MatchLongest:  true,
			MaxPages:      DefaultMaxPages,
			PageLimit:     DefaultPageLimit,
			StatsPages:    DefaultStatsPages,
			TotalsTimeout: DefaultTotalsTimeout,
			PageTimeout:   DefaultPageTimeout,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// applyDefaults fills zero values left by a partial config file.
func (c *Config) applyDefaults() {
	def := NewConfig()

	if c.Version == 0 {
		c.Version = def.Version
	}
	if c.Server.Host == "" {
		c.Server.Host = def.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = def.Server.Port
	}
	if c.Server.ReadHeaderTimeout == 0 {
		c.Server.ReadHeaderTimeout = def.Server.ReadHeaderTimeout
	}

	d := &c.Discovery
	if d.CIDR == "" {
		d.CIDR = def.Discovery.CIDR
	}
	if d.WarmRate == 0 {
		d.WarmRate = def.Discovery.WarmRate
	}
	if len(d.Ports) == 0 {
		d.Ports = def.Discovery.Ports
	}
	if d.MDNSTimeout == 0 {
		d.MDNSTimeout = def.Discovery.MDNSTimeout
	}
	if d.ConnectTimeout == 0 {
		d.ConnectTimeout = def.Discovery.ConnectTimeout
	}
	if d.IdentifyTimeout == 0 {
		d.IdentifyTimeout = def.Discovery.IdentifyTimeout
	}
	if d.QueryTimeout == 0 {
		d.QueryTimeout = def.Discovery.QueryTimeout
	}
	if d.ThumbnailPrefix == "" {
		d.ThumbnailPrefix = def.Discovery.ThumbnailPrefix
	}

	h := &c.History
	if h.MaxPages == 0 {
		h.MaxPages = def.History.MaxPages
	}
	if h.PageLimit == 0 {
		h.PageLimit = def.History.PageLimit
	}
	if h.StatsPages == 0 {
		h.StatsPages = def.History.StatsPages
	}
	if h.TotalsTimeout == 0 {
		h.TotalsTimeout = def.History.TotalsTimeout
	}
	if h.PageTimeout == 0 {
		h.PageTimeout = def.History.PageTimeout
	}

	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
}
