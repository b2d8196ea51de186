// Package web provides the unified HTTP server for the gateway API.
package web

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"taglink/api"
	"taglink/config"
	"taglink/engine"
	"taglink/logging"
	"taglink/metric"
)

// Server is the HTTP server hosting the REST API, stream endpoint, health
// probe, and metrics exposition.
type Server struct {
	config  *config.Config
	engine  *engine.Engine
	metrics *metric.Metrics
	layout  map[string]interface{}

	server  *http.Server
	router  chi.Router
	running bool
	mu      sync.RWMutex
}

// NewServer creates a new web server.
func NewServer(cfg *config.Config, eng *engine.Engine, layout map[string]interface{}, metrics *metric.Metrics) *Server {
	s := &Server{
		config:  cfg,
		engine:  eng,
		metrics: metrics,
		layout:  layout,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures the chi router with all routes.
func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	// Unauthenticated probes
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Mount("/api", api.NewRouter(s.config, s.engine, s.layout, s.metrics))

	s.router = r
}

// corsMiddleware adds CORS headers for API access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Router returns the configured router, for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start begins the HTTP server.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	addr := fmt.Sprintf("%s:%d", s.config.Web.Host, s.config.Web.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.DebugLog("web", "server error: %v", err)
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
		}
	}()

	s.running = true
	logging.DebugLog("web", "listening on %s", addr)
	return nil
}

// Stop halts the HTTP server.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.server.Shutdown(ctx)
	s.running = false
	s.server = nil
	return err
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Address returns the server address.
func (s *Server) Address() string {
	return fmt.Sprintf("http://%s:%d", s.config.Web.Host, s.config.Web.Port)
}
