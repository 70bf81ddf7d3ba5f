// Package api runs the optional ops listener that exposes Prometheus
// metrics and health endpoints while a scan or watch session is
// running. It serves operational data only and holds no scanning
// logic.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/anstrom/portscout/internal/logging"
	"github.com/anstrom/portscout/internal/metrics"
)

const (
	serverShutdownTimeout = 5 * time.Second
	serverReadTimeout     = 10 * time.Second
	serverWriteTimeout    = 10 * time.Second
	serverIdleTimeout     = 60 * time.Second
	serverMaxHeaderBytes  = 1 << 20
)

// Server is the ops HTTP listener.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	logger     *slog.Logger
	startTime  time.Time
}

// New creates an ops server bound to addr, serving the shared metrics
// registry.
func New(addr string) *Server {
	server := &Server{
		router:    mux.NewRouter(),
		logger:    logging.Default().With("component", "api"),
		startTime: time.Now(),
	}

	server.setupRoutes()
	server.setupMiddleware()

	server.httpServer = &http.Server{
		Addr:           addr,
		Handler:        server.router,
		ReadTimeout:    serverReadTimeout,
		WriteTimeout:   serverWriteTimeout,
		IdleTimeout:    serverIdleTimeout,
		MaxHeaderBytes: serverMaxHeaderBytes,
	}

	return server
}

// Start serves until ctx is canceled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting ops listener", "address", s.httpServer.Addr)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("ops listener failed: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errChan:
		return err
	}
}

// Stop shuts the listener down, waiting at most serverShutdownTimeout
// for in-flight requests.
func (s *Server) Stop() error {
	s.logger.Info("Stopping ops listener")

	ctx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Ops listener shutdown error", "error", err)
		return fmt.Errorf("ops listener shutdown failed: %w", err)
	}
	return nil
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.httpServer.Addr
}

func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", promhttp.HandlerFor(
		metrics.GetGlobalMetrics().GetRegistry(),
		promhttp.HandlerOpts{},
	)).Methods("GET")

	s.router.HandleFunc("/healthz", s.healthHandler).Methods("GET")
	s.router.HandleFunc("/", s.indexHandler).Methods("GET")
}

func (s *Server) setupMiddleware() {
	s.router.Use(s.recoveryMiddleware)
	s.router.Use(s.loggingMiddleware)
	// Metric expositions compress well and scrapers ask for gzip.
	s.router.Use(handlers.CompressHandler)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(s.startTime).String(),
	}
	s.writeJSON(w, r, http.StatusOK, response)
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"service": "portscout",
		"endpoints": map[string]string{
			"metrics": "/metrics",
			"health":  "/healthz",
		},
		"timestamp": time.Now().UTC(),
	}
	s.writeJSON(w, r, http.StatusOK, response)
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response",
			"error", err,
			"path", r.URL.Path,
			"method", r.Method)
	}
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("Panic in ops handler",
					"error", err,
					"path", r.URL.Path,
					"method", r.Method)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration", time.Since(start),
			"remote_addr", r.RemoteAddr)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
