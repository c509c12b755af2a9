// Package urls holds documentation links printed by the fleethelm CLI when a
// scan or history run comes back empty or degraded.
package urls
