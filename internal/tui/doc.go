// Package tui implements the live fleet dashboard behind `fleethelm watch`.
//
// WatchModel is a Bubble Tea model: it runs a discovery pass, shows the
// printers in a table with a detail pane for the highlighted one, and
// rescans every Interval. Scans never overlap; pressing r while one is
// running is ignored.
package tui
