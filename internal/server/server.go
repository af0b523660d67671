// Package server exposes a review service over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/hupe1980/revsearch"
	"github.com/hupe1980/revsearch/internal/service"
)

// Config holds HTTP server configuration.
type Config struct {
	ListenAddr      string
	CORSOrigins     []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// MaxBodyBytes caps request bodies. Zero means unlimited.
	MaxBodyBytes int64
	RateLimit    RateLimitConfig
}

// Server routes HTTP requests to a review service.
type Server struct {
	router  chi.Router
	svc     *service.Service
	metrics *revsearch.BasicMetricsCollector
	logger  *revsearch.Logger
	cfg     Config

	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a Server.
type Option func(s *Server)

// WithLogger sets the access and error logger.
func WithLogger(l *revsearch.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics exposes the collector's counters on GET /stats. The collector
// must be the one the store was opened with.
func WithMetrics(m *revsearch.BasicMetricsCollector) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// New creates a Server with routes, CORS and rate limiting.
func New(cfg Config, svc *service.Service, optFns ...Option) (*Server, error) {
	if cfg.ListenAddr == "" {
		return nil, fmt.Errorf("listen address is required")
	}
	if svc == nil {
		return nil, fmt.Errorf("service is required")
	}
	if err := cfg.RateLimit.Validate(); err != nil {
		return nil, err
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 60 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		svc:    svc,
		logger: revsearch.NoopLogger(),
		cfg:    cfg,
		done:   make(chan struct{}),
	}
	for _, fn := range optFns {
		fn(s)
	}
	s.logger = s.logger.WithComponent("http")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware(cfg.RateLimit, s.done, s.logger))
	if cfg.MaxBodyBytes > 0 {
		r.Use(middleware.RequestSize(cfg.MaxBodyBytes))
	}

	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Post("/search", s.handleSearch)
	r.Post("/reviews", s.handleInsert)
	r.Post("/reviews/bulk", s.handleBulkInsert)
	r.Get("/reviews/{id}", s.handleGet)

	s.router = r
	return s, nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close stops background work. It does not touch the service.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Start runs the HTTP server and blocks until the context is cancelled,
// then performs graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.Close()

	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.ListenAddr, err)
	}

	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.logger.InfoContext(ctx, "listening", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}

	return <-errCh
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.InfoContext(r.Context(), "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}
