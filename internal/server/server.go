package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/sundayezeilo/linkregistry/internal/config"
	"github.com/sundayezeilo/linkregistry/internal/httpx"
	"github.com/sundayezeilo/linkregistry/internal/metrics"
	"github.com/sundayezeilo/linkregistry/internal/shortener"
)

// Server represents the HTTP server with all dependencies.
type Server struct {
	config  *config.Config
	logger  *slog.Logger
	handler *shortener.Handler
	metrics *metrics.Metrics
	server  *http.Server
}

// New creates a new Server instance. m may be nil when metrics are disabled.
func New(cfg *config.Config, logger *slog.Logger, handler *shortener.Handler, m *metrics.Metrics) *Server {
	return &Server{
		config:  cfg,
		logger:  logger,
		handler: handler,
		metrics: m,
	}
}

// Handler returns the fully routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.applyMiddleware(s.setupRoutes())
}

// Start starts the HTTP server and blocks until a shutdown signal arrives,
// ctx is cancelled, or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Server.Host, s.config.Server.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	// Listen for errors from the server
	serverErrors := make(chan error, 1)

	// Start server in a goroutine
	go func() {
		s.logger.Info("starting http server",
			"addr", s.server.Addr,
			"env", s.config.App.Environment,
		)
		serverErrors <- s.server.ListenAndServe()
	}()

	// Listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		s.logger.Info("received shutdown signal", "signal", sig.String())

	case <-ctx.Done():
		s.logger.Info("context cancelled, stopping server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	s.logger.Info("server stopped gracefully")
	return nil
}

// ReservedCodes returns the short codes the router would shadow: the
// default words plus a single-segment metrics path such as "/stats".
func ReservedCodes(cfg *config.Config) []string {
	reserved := slices.Clone(shortener.DefaultReservedCodes)
	if !cfg.Metrics.Enabled {
		return reserved
	}
	segment := strings.TrimPrefix(cfg.Metrics.Path, "/")
	if segment != "" && !strings.Contains(segment, "/") && !slices.Contains(reserved, segment) {
		reserved = append(reserved, segment)
	}
	return reserved
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("GET /x/health", s.healthCheckHandler)

	if s.config.Metrics.Enabled && s.metrics != nil {
		mux.Handle("GET "+s.config.Metrics.Path, s.metrics.Handler())
	}

	mux.HandleFunc("POST /api/shorten", s.handler.Shorten)
	mux.HandleFunc("GET /api/stats", s.handler.Stats)
	mux.HandleFunc("GET /{code}", s.handler.Redirect)

	// Everything else, including "/" and wrong methods on known paths.
	mux.HandleFunc("/", s.handler.NotFound)

	return mux
}

// applyMiddleware wraps the handler with middleware in the correct order.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	return httpx.Chain(
		httpx.Recovery(s.logger),                // Outermost: catch panics
		httpx.RequestID,                         // Add request ID
		httpx.Logger(s.logger),                  // Log requests
		httpx.CORS(s.config.Server.CORSOrigins), // CORS headers, preflight
		httpx.Metrics(s.metrics),                // Innermost: sees the matched route
	)(handler)
}

// healthCheckHandler handles health check requests.
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": s.config.Metrics.ServiceName,
		"version": s.config.Metrics.ServiceVersion,
	})
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	s.logger.Info("shutting down server")

	if err := s.server.Shutdown(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("shutdown timeout exceeded, forcing close")
			return s.server.Close()
		}
		return err
	}

	return nil
}
