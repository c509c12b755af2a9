// Package ui renders fleethelm CLI output with Lip Gloss.
//
// Printer is the entry point for commands: it prints command headers,
// result boxes, the printer table produced by a scan and the fleet history
// summary. Output width follows the terminal when stdout is one and falls
// back to MaxContentWidth otherwise, so piped output stays readable.
//
// Logging is controlled separately through FLEETHELM_LOG_LEVEL; when it is
// unset zap stays silent and only the curated output below is shown.
package ui
