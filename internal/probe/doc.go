// Package probe finds the Moonraker endpoint of a neighbor, if it has one.
//
// PortScanner connects to every candidate port (7125, 80 and 4408 by
// default) with a short timeout and reports the ones that accepted. All
// candidates are tried so the Detector can then walk the open ones in the
// caller's priority order and stop at the first that answers
// GET /printer/info with {"result": ...}.
package probe
