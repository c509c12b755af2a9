// Fleethelm-server serves the fleet dashboard API.
//
// It discovers Moonraker printers on the local network on demand and
// exposes them, their aggregated job history, and the health of the last
// discovery run over HTTP and WebSocket.
//
// Usage:
//
//	fleethelm-server serve [flags]
//
// See 'fleethelm-server serve --help' for available options.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/fleethelm/internal/config"
	"github.com/muurk/fleethelm/internal/logging"
	"github.com/muurk/fleethelm/internal/server"
	"github.com/muurk/fleethelm/internal/service"
	"github.com/muurk/fleethelm/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fleethelm-server",
	Short: "Fleethelm API server",
	Long: `A small HTTP server that finds the Moonraker printers on your network
and reports their live status and print history.

Endpoints:
  GET /api/devices            printers currently on the network
  GET /api/history/aggregate  fleet-wide print history
  GET /api/health             result of the last discovery run
  GET /api/health/stream      the same, pushed over WebSocket

For a terminal view of the same data, use the separate 'fleethelm' utility.`,
	Version: version.Version,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// Serve command and flags
var (
	configPath  string
	host        string
	port        int
	cidr        string
	logLevel    string
	allowOrigin string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Start the fleethelm API server.

Defaults come from the configuration file (see 'fleethelm config show');
flags override them. If the port is taken, the configured fallback ports
are tried in order.`,
	Example: `  # Start with the configured defaults
  fleethelm-server serve

  # Different port and network, verbose logging
  fleethelm-server serve --port 8080 --cidr 10.0.0.0/24 --log-level debug

  # Only let one dashboard origin call the API
  fleethelm-server serve --allow-origin http://dashboard.lan`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "Path to config file (default: user config directory)")
	serveCmd.Flags().StringVar(&host, "host", "", "Listen address (default from config)")
	serveCmd.Flags().IntVar(&port, "port", 0, "Listen port (default from config)")
	serveCmd.Flags().StringVar(&cidr, "cidr", "", "Network to discover printers on (default from config)")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	serveCmd.Flags().StringVar(&allowOrigin, "allow-origin", "*", "Access-Control-Allow-Origin sent to browsers")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if cidr != "" {
		cfg.Discovery.CIDR = cidr
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logging.Initialize(cfg.Logging.Level); err != nil {
		return err
	}
	defer logging.Sync()

	logging.Info("Starting fleethelm-server",
		zap.String("version", version.Version),
		zap.String("cidr", cfg.Discovery.CIDR),
		zap.Ints("ports", cfg.Discovery.Ports))

	engine := service.New(cfg)
	srv := server.New(&server.Config{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		FallbackPorts:     cfg.Server.FallbackPorts,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		AllowedOrigin:     allowOrigin,
	}, engine, engine.Monitor)

	return srv.Start()
}

// Version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fleethelm-server %s\n", version.Full())
	},
}
