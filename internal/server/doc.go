// Package server implements the fleethelm HTTP API.
//
// Routes:
//
//	GET /api/devices             discovered printers
//	GET /api/history/aggregate   fleet history report
//	GET /api/health              uptime and last discovery snapshot
//	GET /api/health/stream       websocket, one health document per discovery run
//
// The devices and history routes accept cidr, warm, warm_limit, ports and
// mdns; the history route also accepts match_longest, max_pages,
// page_limit and stats_pages. Malformed parameters are answered with
// 400 {"error": "..."} before any network activity; a failed discovery is
// answered with 500.
//
// Start binds the configured port, falling back through FallbackPorts, and
// shuts down gracefully on SIGINT or SIGTERM, closing open health streams.
package server
