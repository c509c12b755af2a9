package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/fleethelm/internal/config"
	"github.com/muurk/fleethelm/internal/discovery"
	"github.com/muurk/fleethelm/internal/fleet"
	"github.com/muurk/fleethelm/internal/logging"
)

const (
	msgInvalidPorts = "Invalid ports param. Use e.g. ?ports=7125,80,4408"
	msgInvalidCIDR  = "Invalid cidr param. Use e.g. ?cidr=192.168.1.0/24"
)

func (s *Server) setupRoutes() {
	s.router.Use(s.logRequests)
	s.router.Use(s.cors)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/devices", s.getDevices).Methods(http.MethodGet)
	api.HandleFunc("/history/aggregate", s.getHistoryAggregate).Methods(http.MethodGet)
	api.HandleFunc("/health", s.getHealth).Methods(http.MethodGet)
	api.HandleFunc("/health/stream", s.streamHealth).Methods(http.MethodGet)
	api.HandleFunc("/{rest:.*}", s.preflight).Methods(http.MethodOptions)
}

func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.config.AllowedOrigin
	if origin == "" {
		origin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) preflight(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// statusRecorder captures the response code for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("Failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// badRequest is malformed caller input, reported before any network work.
type badRequest string

func (e badRequest) Error() string { return string(e) }

// discoveryOptions reads cidr, warm, warm_limit, ports and mdns, falling
// back to the configured defaults.
func (s *Server) discoveryOptions(r *http.Request) (discovery.Options, error) {
	q := r.URL.Query()
	opts := s.engine.DiscoveryOptions()

	if v := q.Get("cidr"); v != "" {
		if _, err := netip.ParsePrefix(v); err != nil {
			return opts, badRequest(msgInvalidCIDR)
		}
		opts.CIDR = v
	}
	if q.Has("warm") {
		opts.Warm = q.Get("warm") != "0"
	}
	if q.Has("mdns") {
		opts.MDNS = q.Get("mdns") != "0"
	}
	if q.Has("warm_limit") {
		n, err := strconv.Atoi(q.Get("warm_limit"))
		if err != nil || n < 0 {
			return opts, badRequest("Invalid warm_limit param. Use a number of hosts, 0 for all")
		}
		opts.WarmLimit = n
	}

	ports, err := config.ParsePorts(q.Get("ports"))
	if err != nil {
		return opts, badRequest(msgInvalidPorts)
	}
	if ports != nil {
		opts.Ports = ports
	}
	return opts, nil
}

// historyOptions reads match_longest, max_pages, page_limit and stats_pages.
func (s *Server) historyOptions(r *http.Request) (fleet.Options, error) {
	q := r.URL.Query()
	opts := s.engine.HistoryOptions()

	if q.Has("match_longest") {
		opts.MatchLongest = q.Get("match_longest") != "0"
	}

	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"max_pages", &opts.MaxPages},
		{"page_limit", &opts.PageLimit},
		{"stats_pages", &opts.StatsPages},
	} {
		if !q.Has(p.name) {
			continue
		}
		n, err := strconv.Atoi(q.Get(p.name))
		if err != nil || n < 1 {
			return opts, badRequest(fmt.Sprintf("Invalid %s param. Use a positive integer", p.name))
		}
		*p.dst = n
	}
	return opts, nil
}

func (s *Server) getDevices(w http.ResponseWriter, r *http.Request) {
	opts, err := s.discoveryOptions(r)
	if err != nil {
		logging.Info("Rejected devices request", zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	devices, err := s.engine.Devices(runContext(r), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

func (s *Server) getHistoryAggregate(w http.ResponseWriter, r *http.Request) {
	dopts, err := s.discoveryOptions(r)
	if err != nil {
		logging.Info("Rejected history request", zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	hopts, err := s.historyOptions(r)
	if err != nil {
		logging.Info("Rejected history request", zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.engine.HistoryAggregate(runContext(r), dopts, hopts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// runContext keeps the request's values but not its cancellation: a run
// started by a client that hangs up still completes and is reported in
// full. The per-call timeouts bound it.
func runContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func (s *Server) getHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.Status())
}
