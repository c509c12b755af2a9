package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/fleethelm/internal/discovery"
	"github.com/muurk/fleethelm/internal/fleet"
	"github.com/muurk/fleethelm/internal/health"
	"github.com/muurk/fleethelm/internal/logging"
)

// Config holds the server configuration
type Config struct {
	Host string
	Port int

	// FallbackPorts are tried in order when Port is taken; 0 picks any free port
	FallbackPorts []int

	ReadHeaderTimeout time.Duration

	// AllowedOrigin is sent as Access-Control-Allow-Origin (empty = "*")
	AllowedOrigin string
}

// Engine runs the fleet operations. *service.Engine implements it.
type Engine interface {
	DiscoveryOptions() discovery.Options
	HistoryOptions() fleet.Options
	Devices(ctx context.Context, opts discovery.Options) ([]discovery.Device, error)
	HistoryAggregate(ctx context.Context, dopts discovery.Options, hopts fleet.Options) (*fleet.Report, error)
}

// Server is the fleethelm HTTP API.
type Server struct {
	config  *Config
	engine  Engine
	monitor *health.Monitor
	router  *mux.Router

	httpServer *http.Server
	listener   net.Listener

	upgrader    websocket.Upgrader
	wg          sync.WaitGroup
	mu          sync.Mutex
	activeConns map[string]*websocket.Conn
}

// New creates a new Server instance
func New(config *Config, engine Engine, monitor *health.Monitor) *Server {
	s := &Server{
		config:      config,
		engine:      engine,
		monitor:     monitor,
		router:      mux.NewRouter(),
		activeConns: make(map[string]*websocket.Conn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	s.setupRoutes()
	return s
}

// Handler returns the router with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Listen binds the first free port among Port and FallbackPorts.
func (s *Server) Listen() (net.Listener, error) {
	ports := append([]int{s.config.Port}, s.config.FallbackPorts...)

	var lastErr error
	for _, port := range ports {
		addr := net.JoinHostPort(s.config.Host, fmt.Sprint(port))
		l, err := net.Listen("tcp", addr)
		if err != nil {
			logging.Warn("Port unavailable, trying next",
				zap.String("addr", addr),
				zap.Error(err))
			lastErr = err
			continue
		}
		return l, nil
	}
	return nil, fmt.Errorf("no usable port among %v: %w", ports, lastErr)
}

// Start starts the server and blocks until a shutdown signal or error
func (s *Server) Start() error {
	listener, err := s.Listen()
	if err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Serve(listener)
	}()

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(ctx)
	case err := <-errChan:
		return err
	}
}

// Serve accepts requests on l until Shutdown is called.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	s.listener = l
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
	}
	srv := s.httpServer
	s.mu.Unlock()

	logging.Info("Server listening for connections",
		zap.String("addr", l.Addr().String()))

	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Addr returns the bound address once Serve has been called.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	s.mu.Lock()
	srv := s.httpServer
	for addr, conn := range s.activeConns {
		logging.Info("Closing health stream", zap.String("remote_addr", addr))
		_ = conn.Close()
	}
	s.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All connections closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	}

	logging.Sync()
	return err
}

// GetActiveConnections returns the number of open health streams
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}
