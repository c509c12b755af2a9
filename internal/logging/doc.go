// Package logging provides structured logging for fleethelm.
//
// This package wraps a zap logger with package-level helpers so that the
// discovery engine, the HTTP API and the CLI all log the same way.
//
// # Log Levels
//
//   - Debug: probe noise (closed ports, protocol mismatches, warm sweep errors)
//   - Info: normal operations (requests served, printers dropped for partial telemetry)
//   - Warn: non-fatal issues (history endpoints unavailable, listener fallbacks)
//   - Error: discovery runs that failed as a whole, startup failures
//
// # Configuration
//
// Initialize logging at startup:
//
//	if err := logging.Initialize("info"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// When no level is given the FLEETHELM_LOG_LEVEL environment variable is
// consulted, and when that is empty too the logger is a no-op. The CLI relies
// on this to keep its output clean.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use.
package logging
