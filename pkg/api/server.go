package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-hclog"

	"github.com/orbitdash/orbitdash/internal/cache"
	"github.com/orbitdash/orbitdash/internal/metrics"
	"github.com/orbitdash/orbitdash/internal/ratelimit"
	"github.com/orbitdash/orbitdash/pkg/retry"
	"github.com/orbitdash/orbitdash/pkg/types"
)

// ServerConfig configures the API server
type ServerConfig struct {
	// Address to bind the server to (e.g., "localhost:8090")
	Address string `yaml:"address"`

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing the response
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum duration to wait for the next request
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:      "localhost:8090",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Server is the HTTP boundary of the resource layer. Every request passes
// the admission governor first; accepted artifact requests consult the
// cache and, on a miss on the populate path, the upstream fetcher.
type Server struct {
	httpServer *http.Server
	config     ServerConfig
	logger     hclog.Logger

	governor  *ratelimit.Governor
	artifacts *cache.ArtifactCache
	fetcher   types.Fetcher
	retryer   *retry.Retryer
	collector *metrics.Collector
}

// NewServer creates an API server over the given governor, cache, and
// upstream fetcher. collector may be nil when metrics are disabled.
func NewServer(config ServerConfig, governor *ratelimit.Governor, artifacts *cache.ArtifactCache, fetcher types.Fetcher, logger hclog.Logger, collector *metrics.Collector) *Server {
	if config.Address == "" {
		config = DefaultServerConfig()
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	s := &Server{
		config:    config,
		logger:    logger.Named("api"),
		governor:  governor,
		artifacts: artifacts,
		fetcher:   fetcher,
		retryer:   retry.New(retry.DefaultConfig()),
		collector: collector,
	}

	s.httpServer = &http.Server{
		Addr:         config.Address,
		Handler:      s.routes(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	// Operational endpoints sit outside the governor: a banned client must
	// still not be able to starve health checks, and probes must not burn
	// anyone's quota.
	r.Get("/healthz", s.handleHealth)
	r.Get("/healthz/tiers", s.handleTierHealth)
	if s.collector != nil {
		r.Get("/metrics", s.collector.Handler().ServeHTTP)
	}

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.admit("standard"))
			r.Get("/artifacts/{category}", s.handleListCategory)
			r.Get("/artifacts/{category}/{id}", s.handleGetArtifact)
			r.Get("/stats", s.handleStats)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.admit("intensive"))
			r.Post("/artifacts/{category}/{id}", s.handlePopulate)
			r.Delete("/artifacts/{category}", s.handleClearCategory)
		})
	})

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info("starting API server", "address", s.config.Address)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// StartBackground starts the server in a background goroutine.
func (s *Server) StartBackground() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("API server error", "error", err)
		}
	}()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
