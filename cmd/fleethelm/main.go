// Fleethelm is a terminal client for a fleet of Klipper/Moonraker printers.
//
// It finds the printers on the local network, shows their live status,
// and summarizes their print history. Output is styled for a terminal, or
// JSON with --json for scripting.
//
// Usage:
//
//	fleethelm [command] [flags]
//
// Running without arguments is the same as 'fleethelm scan'.
// See 'fleethelm --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/fleethelm/internal/logging"
	"github.com/muurk/fleethelm/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fleethelm",
	Short: "Moonraker printer fleet utility",
	Long: `Find the Klipper/Moonraker printers on your network, watch their
status, and total up their print history.

Printers are found from the host's neighbor table, optionally warmed by
pinging the network first, and optionally via mDNS. Each candidate is
checked on the configured Moonraker ports.

If no command is specified, a single scan is run.

Set FLEETHELM_LOG_LEVEL=debug to see what discovery is doing.`,
	Version: version.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.InitializeFromEnv()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
	RunE: runScan,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fleethelm %s\n", version.Full())
	},
}
