// Package health tracks the outcome of the most recent discovery run.
//
// A Monitor is handed to the discovery engine as its Reporter. The HTTP
// server reads it for GET /api/health and streams new snapshots to
// websocket subscribers.
package health
