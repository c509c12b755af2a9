// Package service wires the discovery and history engines from
// configuration. Both the HTTP server and the CLI drive an Engine.
package service
