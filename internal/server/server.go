package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/beyonddemise/couchdb-idp-updater/internal/status"
)

// contentSecurityPolicy is sent with every static asset response
const contentSecurityPolicy = "default-src 'self'; img-src 'self' data:;"

// Server exposes the daemon's HTTP surface: the status snapshot, health
// probes, and the static UI assets.
type Server struct {
	httpServer *http.Server
	listener   net.Listener

	httpPort  int
	staticDir string
	store     *status.Store
	ready     func() bool
	logger    *slog.Logger
}

// Config contains server configuration
type Config struct {
	// HTTPPort is the listen port
	HTTPPort int

	// StaticDir is served for all non-status requests
	StaticDir string

	// Store is the status store snapshotted by /status
	Store *status.Store

	// Ready reports whether the reconciler's first tick has begun.
	// If nil, the readiness probe always succeeds.
	Ready func() bool

	// Logger is the structured logger to use. If nil, uses slog.Default()
	Logger *slog.Logger
}

// New creates a new server with the given configuration
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		httpPort:  cfg.HTTPPort,
		staticDir: cfg.StaticDir,
		store:     cfg.Store,
		ready:     cfg.Ready,
		logger:    logger,
	}
}

// Start binds the listener and begins serving. A failed bind is returned
// synchronously so startup can abort with a non-zero exit.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.httpPort))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.httpPort, err)
	}
	s.listener = listener

	s.httpServer = &http.Server{Handler: s.Handler()}

	go func() {
		s.logger.Info("HTTP server listening", "port", s.httpPort)
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	return nil
}

// Handler builds the HTTP routing
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /healthz/live", s.handleLiveness)
	mux.HandleFunc("GET /healthz/ready", s.handleReadiness)
	mux.Handle("/", s.staticHandler())
	return mux
}

// Stop gracefully stops the server, letting in-flight requests finish
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}
	return nil
}

// handleStatus serves a snapshot of the update-URL -> last-write map
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.store.Snapshot()); err != nil {
		s.logger.Warn("failed to write status response", "error", err)
	}
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil && !s.ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("starting"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// staticHandler serves the UI assets with a restrictive CSP
func (s *Server) staticHandler() http.Handler {
	fileServer := http.FileServer(http.Dir(s.staticDir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", contentSecurityPolicy)
		fileServer.ServeHTTP(w, r)
	})
}
