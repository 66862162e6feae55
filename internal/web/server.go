package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/web/handlers"
	"github.com/kozaktomas/face-auth/internal/web/middleware"
)

// requestTimeout bounds a single request, encoder call included.
const requestTimeout = 2 * time.Minute

// Server represents the web server
type Server struct {
	config      *config.WebConfig
	router      *chi.Mux
	httpServer  *http.Server
	faceHandler *handlers.FaceHandler
	limiter     *middleware.RateLimiter
	metrics     http.Handler
	logger      *slog.Logger
}

// NewServer creates a new web server. metrics may be nil, in which case
// /metrics is not mounted.
func NewServer(cfg *config.WebConfig, svc handlers.FaceService, metrics http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	s := &Server{
		config:      cfg,
		router:      r,
		faceHandler: handlers.NewFaceHandler(svc, logger),
		limiter:     middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		metrics:     metrics,
		logger:      logger,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	// Forwarded headers are client-controlled unless a proxy rewrites them.
	if cfg.TrustProxyHeaders {
		r.Use(chiMiddleware.RealIP)
	}
	r.Use(middleware.RequestLogger(logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(requestTimeout))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(middleware.SecurityHeaders())

	// Set up routes
	s.setupRoutes()

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      requestTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting web server", "addr", s.httpServer.Addr,
		"rate_limit", s.limiter.Enabled(), "cors_origins", s.config.CORSAllowedOrigins)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Serve serves on an existing listener, for tests and socket activation.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("starting web server", "addr", l.Addr().String())
	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down web server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
