package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/muurk/fleethelm/internal/config"
	"github.com/muurk/fleethelm/internal/discovery"
	"github.com/muurk/fleethelm/internal/fleet"
	"github.com/muurk/fleethelm/internal/service"
	"github.com/muurk/fleethelm/internal/tui"
	"github.com/muurk/fleethelm/internal/ui"
)

// Flags shared by the discovery commands
var (
	configPath string
	cidr       string
	ports      string
	noWarm     bool
	warmLimit  int
	mdns       bool
	jsonOutput bool
)

// History flags
var (
	noMatch    bool
	maxPages   int
	pageLimit  int
	statsPages int
)

var watchInterval time.Duration

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to config file (default: user config directory)")
	pf.StringVar(&cidr, "cidr", "", "Network to discover printers on (default from config)")
	pf.StringVar(&ports, "ports", "", "Moonraker ports to try, in order (e.g. 7125,80,4408)")
	pf.BoolVar(&noWarm, "no-warm", false, "Read the neighbor table without pinging the network first")
	pf.IntVar(&warmLimit, "warm-limit", -1, "Max hosts pinged while warming (0 = whole network)")
	pf.BoolVar(&mdns, "mdns", false, "Also browse for _moonraker._tcp over mDNS")
	pf.BoolVar(&jsonOutput, "json", false, "Print JSON instead of tables")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
}

// scanCmd lists the printers on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List the printers on the network",
	Long: `Discover Moonraker printers and show their current status.

Each printer is listed once, by hostname, with its heater temperatures
and the progress of the current print.`,
	Example: `  # Scan the configured network
  fleethelm scan

  # Scan another network without pinging it first
  fleethelm scan --cidr 10.0.0.0/24 --no-warm

  # JSON for scripting
  fleethelm scan --json | jq '.[].hostname'`,
	RunE: runScan,
}

// historyCmd aggregates print history across the fleet
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Summarize print history across the fleet",
	Long: `Discover printers, read each one's job history, and show fleet totals.

Printers are listed by total print time, longest first. A printer whose
history cannot be read is still listed, with the reason.`,
	Example: `  # Fleet totals with the longest jobs looked up
  fleethelm history

  # Faster: skip looking up which job was the longest
  fleethelm history --no-match

  # Scan deeper into each printer's history
  fleethelm history --stats-pages 30 --json`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().BoolVar(&noMatch, "no-match", false, "Report longest durations without finding the jobs behind them")
	historyCmd.Flags().IntVar(&maxPages, "max-pages", 0, "History pages searched for the longest jobs (default from config)")
	historyCmd.Flags().IntVar(&pageLimit, "page-limit", 0, "Jobs per history page (default from config)")
	historyCmd.Flags().IntVar(&statsPages, "stats-pages", 0, "History pages scanned for the breakdowns (default from config)")
}

// watchCmd shows a live dashboard
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live dashboard of the printers on the network",
	Long: `Open a full-screen dashboard that rescans the network periodically.

Use the arrow keys to select a printer, r to rescan now, q to quit.`,
	Example: `  fleethelm watch
  fleethelm watch --interval 10s --no-warm`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", tui.DefaultInterval, "Time between scans")
}

// configCmd manages the configuration file
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the defaults",
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

// signalContext is cancelled on Ctrl-C so long scans stop promptly.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// loadEngine reads the config file and applies the discovery flags.
func loadEngine() (*service.Engine, discovery.Options, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, discovery.Options{}, err
	}

	engine := service.New(cfg)
	opts, err := discoveryOptions(engine.DiscoveryOptions())
	if err != nil {
		return nil, discovery.Options{}, err
	}
	return engine, opts, nil
}

func discoveryOptions(opts discovery.Options) (discovery.Options, error) {
	if cidr != "" {
		opts.CIDR = cidr
	}
	if ports != "" {
		p, err := config.ParsePorts(ports)
		if err != nil {
			return opts, fmt.Errorf("invalid --ports: %w", err)
		}
		if p != nil {
			opts.Ports = p
		}
	}
	if noWarm {
		opts.Warm = false
	}
	if warmLimit >= 0 {
		opts.WarmLimit = warmLimit
	}
	if mdns {
		opts.MDNS = true
	}
	return opts, nil
}

func runScan(cmd *cobra.Command, args []string) error {
	engine, opts, err := loadEngine()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	out := ui.NewPrinter(cmd.OutOrStdout())
	if !jsonOutput {
		out.PrintHeader("Printer Scan", "fleethelm scan", discoveryParams(opts)...)
	}

	devices, err := engine.Devices(ctx, opts)
	if err != nil {
		if jsonOutput {
			return err
		}
		out.PrintError("Discovery failed", err,
			"Check that --cidr matches the network this host is on",
			"Try --no-warm if ping is blocked, or --mdns if printers advertise themselves")
		return fmt.Errorf("discovery failed")
	}

	if jsonOutput {
		return out.PrintJSON(devices)
	}

	out.PrintDevices(devices)
	out.Newline()
	out.Println(fmt.Sprintf("%d printer(s) found", len(devices)))
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	engine, dopts, err := loadEngine()
	if err != nil {
		return err
	}
	hopts := historyOptions(engine.HistoryOptions())

	ctx, cancel := signalContext()
	defer cancel()

	out := ui.NewPrinter(cmd.OutOrStdout())
	if !jsonOutput {
		params := append(discoveryParams(dopts),
			ui.Param{Key: "Match longest", Value: fmt.Sprintf("%t", hopts.MatchLongest)},
			ui.Param{Key: "Stats pages", Value: fmt.Sprintf("%d × %d jobs", hopts.StatsPages, hopts.PageLimit)},
		)
		out.PrintHeader("Fleet History", "fleethelm history", params...)
	}

	report, err := engine.HistoryAggregate(ctx, dopts, hopts)
	if err != nil {
		if jsonOutput {
			return err
		}
		out.PrintError("History aggregation failed", err)
		return fmt.Errorf("history aggregation failed")
	}

	if jsonOutput {
		return out.PrintJSON(report)
	}

	out.PrintFleet(report)
	return nil
}

func historyOptions(opts fleet.Options) fleet.Options {
	if noMatch {
		opts.MatchLongest = false
	}
	if maxPages > 0 {
		opts.MaxPages = maxPages
	}
	if pageLimit > 0 {
		opts.PageLimit = pageLimit
	}
	if statsPages > 0 {
		opts.StatsPages = statsPages
	}
	return opts
}

func runWatch(cmd *cobra.Command, args []string) error {
	engine, opts, err := loadEngine()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	return tui.Run(ctx, func(ctx context.Context) ([]discovery.Device, error) {
		return engine.Devices(ctx, opts)
	}, watchInterval)
}

func discoveryParams(opts discovery.Options) []ui.Param {
	ps := make([]string, len(opts.Ports))
	for i, p := range opts.Ports {
		ps[i] = fmt.Sprintf("%d", p)
	}
	warm := "off"
	if opts.Warm {
		warm = "on"
		if opts.WarmLimit > 0 {
			warm = fmt.Sprintf("first %d hosts", opts.WarmLimit)
		}
	}
	return []ui.Param{
		{Key: "Network", Value: opts.CIDR},
		{Key: "Ports", Value: strings.Join(ps, ", ")},
		{Key: "Warm", Value: warm},
		{Key: "mDNS", Value: fmt.Sprintf("%t", opts.MDNS)},
	}
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		var err error
		path, err = config.GetConfigPath()
		if err != nil {
			return err
		}
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	if err := config.NewConfig().Save(path); err != nil {
		return err
	}

	out := ui.NewPrinter(cmd.OutOrStdout())
	out.PrintSuccess("Configuration written", ui.Param{Key: "Path", Value: path})
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
