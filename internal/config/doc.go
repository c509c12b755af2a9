// Package config provides configuration management for fleethelm.
//
// The configuration is a YAML file holding the listener settings for the API
// server and the defaults used by discovery and history aggregation when a
// request does not override them.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/fleethelm/config.yaml or $HOME/.config/fleethelm/config.yaml
//   - macOS: $HOME/.config/fleethelm/config.yaml
//   - Windows: %LOCALAPPDATA%\fleethelm\config.yaml
//
// Both binaries accept --config to point somewhere else.
//
// # Usage Example
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Discovery.CIDR, cfg.Discovery.Ports)
//
// A missing file yields the defaults. Keys omitted from the file keep their
// default values, so a file containing only
//
//	version: 1
//	discovery:
//	  cidr: 10.20.0.0/24
//
// is complete.
//
// # Thread Safety
//
// Save is serialized by a package mutex and writes atomically (temp file and
// rename). A loaded *Config is treated as read-only by the rest of the program.
package config
