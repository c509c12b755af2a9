package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	appName    = "fleethelm"
	configFile = "config.yaml"
)

// fileMutex serializes writes from concurrent Save calls.
var fileMutex sync.Mutex

// GetConfigDir returns the OS-appropriate configuration directory for the application.
// This follows platform conventions:
//   - Linux: $XDG_CONFIG_HOME/fleethelm or $HOME/.config/fleethelm
//   - macOS: $HOME/.config/fleethelm (following XDG convention on macOS)
//   - Windows: %LOCALAPPDATA%\fleethelm
func GetConfigDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, appName), nil
		}
		userProfile := os.Getenv("USERPROFILE")
		if userProfile == "" {
			return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
		}
		return filepath.Join(userProfile, "AppData", "Local", appName), nil

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil

	default:
		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			return filepath.Join(xdgConfigHome, appName), nil
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil
	}
}

// GetConfigPath returns the full path to the default configuration file.
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFile), nil
}

// Load reads the configuration at path. An empty path means the default
// location. A missing file is not an error: the defaults are returned.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = GetConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes a YAML document on top of the defaults, so omitted keys keep
// their default values, then validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported config version: %d (expected 1)", cfg.Version)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the values that would otherwise fail deep inside a request.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	for _, p := range c.Server.FallbackPorts {
		if p < 0 || p > 65535 {
			return fmt.Errorf("server.fallback_ports entry %d out of range", p)
		}
	}

	if _, err := netip.ParsePrefix(c.Discovery.CIDR); err != nil {
		return fmt.Errorf("discovery.cidr: %w", err)
	}
	if err := ValidatePorts(c.Discovery.Ports); err != nil {
		return fmt.Errorf("discovery.ports: %w", err)
	}
	if c.Discovery.WarmLimit < 0 {
		return fmt.Errorf("discovery.warm_limit must not be negative")
	}
	if c.Discovery.WarmRate < 0 {
		return fmt.Errorf("discovery.warm_rate must not be negative")
	}

	if c.History.MaxPages < 1 || c.History.PageLimit < 1 || c.History.StatsPages < 1 {
		return fmt.Errorf("history.max_pages, page_limit and stats_pages must be positive")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error")
	}

	return nil
}

// ValidatePorts checks a candidate port list. Order is preserved by callers;
// this only rejects values that cannot be dialed.
func ValidatePorts(ports []int) error {
	if len(ports) == 0 {
		return fmt.Errorf("at least one port is required")
	}
	for _, p := range ports {
		if p < 1 || p > 65535 {
			return fmt.Errorf("port %d out of range 1-65535", p)
		}
	}
	return nil
}

// ParsePorts parses a comma separated port list such as "7125,80,4408".
// Blank items are ignored; an empty list returns nil.
func ParsePorts(s string) ([]int, error) {
	var ports []int
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		p, err := strconv.Atoi(item)
		if err != nil {
			return nil, fmt.Errorf("invalid port %q", item)
		}
		ports = append(ports, p)
	}
	if len(ports) == 0 {
		return nil, nil
	}
	if err := ValidatePorts(ports); err != nil {
		return nil, err
	}
	return ports, nil
}

// Save writes the configuration to path (empty means the default location).
// Performs an atomic write to prevent corruption on crash.
func (c *Config) Save(path string) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	if path == "" {
		var err error
		path, err = GetConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# fleethelm configuration
# Request parameters (cidr, warm, ports, page settings) override these defaults.
#
# Location: ` + path + `

`)
	data = append(header, data...)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}

	return nil
}
