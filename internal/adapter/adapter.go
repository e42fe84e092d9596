// Package adapter assembles the resource layer from one Configuration:
// logger, metrics collector, cache tiers, admission governor, and the HTTP
// server, wired in dependency order with a single start/stop lifecycle.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"

	"github.com/orbitdash/orbitdash/internal/cache"
	"github.com/orbitdash/orbitdash/internal/config"
	"github.com/orbitdash/orbitdash/internal/metrics"
	"github.com/orbitdash/orbitdash/internal/ratelimit"
	"github.com/orbitdash/orbitdash/pkg/api"
	"github.com/orbitdash/orbitdash/pkg/types"
)

// Adapter owns the assembled component graph.
type Adapter struct {
	config    *config.Configuration
	logger    hclog.Logger
	collector *metrics.Collector
	artifacts *cache.ArtifactCache
	governor  *ratelimit.Governor
	server    *api.Server
}

// New validates the configuration and builds the component graph. The
// fetcher is the upstream collaborator route handlers invoke on cache
// misses. A persistent tier that fails to open is logged and skipped; the
// cache runs on whichever tiers did open, the volatile tier always among
// them.
func New(cfg *config.Configuration, fetcher types.Fetcher) (*Adapter, error) {
	if cfg == nil {
		cfg = config.NewDefault()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:       "orbitdash",
		Level:      hclog.LevelFromString(cfg.Logging.Level),
		Output:     os.Stderr,
		JSONFormat: cfg.Logging.JSON,
	})

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(&metrics.Config{
			Enabled:   true,
			Namespace: cfg.Metrics.Namespace,
		})
	}

	volatile := cache.NewVolatileTier()

	var durable types.TierStore
	if cfg.Cache.Durable.Enabled {
		tier, err := cache.OpenDurableTier(cfg.Cache.Durable.Directory)
		if err != nil {
			logger.Warn("durable tier unavailable, continuing without it",
				"directory", cfg.Cache.Durable.Directory, "error", err)
		} else {
			durable = tier
		}
	}

	var degraded types.TierStore
	if cfg.Cache.Degraded.Enabled {
		tier, err := cache.OpenDegradedTier(cfg.Cache.Degraded.Path, cfg.Cache.Degraded.MaxItemBytes)
		if err != nil {
			logger.Warn("degraded tier unavailable, continuing without it",
				"path", cfg.Cache.Degraded.Path, "error", err)
		} else {
			degraded = tier
		}
	}

	artifacts := cache.New(cacheConfig(cfg), volatile, durable, degraded, logger, collector)
	governor := ratelimit.NewGovernor(governorConfig(cfg), logger, collector)
	server := api.NewServer(serverConfig(cfg), governor, artifacts, fetcher, logger, collector)

	return &Adapter{
		config:    cfg,
		logger:    logger,
		collector: collector,
		artifacts: artifacts,
		governor:  governor,
		server:    server,
	}, nil
}

// Start starts the HTTP server and blocks until it stops.
func (a *Adapter) Start() error {
	a.logger.Info("starting resource layer", "address", a.config.Server.Address)
	return a.server.Start()
}

// Stop gracefully shuts down the server and closes the cache tiers.
func (a *Adapter) Stop(ctx context.Context) error {
	a.logger.Info("stopping resource layer")
	err := a.server.Shutdown(ctx)
	if closeErr := a.artifacts.Close(); err == nil {
		err = closeErr
	}
	return err
}

// Artifacts returns the assembled artifact cache.
func (a *Adapter) Artifacts() *cache.ArtifactCache { return a.artifacts }

// Governor returns the assembled admission governor.
func (a *Adapter) Governor() *ratelimit.Governor { return a.governor }

func cacheConfig(cfg *config.Configuration) cache.Config {
	return cache.Config{
		MaxAge:              cfg.Cache.MaxAge,
		MaxItemsPerCategory: cfg.Cache.MaxItemsPerCategory,
		OpTimeout:           cfg.Cache.OpTimeout,
		SweepInterval:       cfg.Cache.SweepInterval,
	}
}

func governorConfig(cfg *config.Configuration) ratelimit.Config {
	classes := make(map[string]ratelimit.Class, len(cfg.RateLimit.Classes))
	for name, class := range cfg.RateLimit.Classes {
		classes[name] = ratelimit.Class{MaxRequests: class.MaxRequests}
	}
	return ratelimit.Config{
		Window:       cfg.RateLimit.Window,
		Classes:      classes,
		DefaultClass: cfg.RateLimit.DefaultClass,
		BanThreshold: cfg.RateLimit.BanThreshold,
		BanDuration:  cfg.RateLimit.BanDuration,
		Retention:    cfg.RateLimit.Retention,
	}
}

func serverConfig(cfg *config.Configuration) api.ServerConfig {
	return api.ServerConfig{
		Address:      cfg.Server.Address,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}
