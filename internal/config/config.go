package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Configuration represents the complete application configuration
type Configuration struct {
	Server    ServerConfig    `yaml:"server"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Cache     CacheConfig     `yaml:"cache"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig represents HTTP server settings
type ServerConfig struct {
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// RateLimitConfig represents admission control settings
type RateLimitConfig struct {
	// Window is the length of one counting window.
	Window time.Duration `yaml:"window"`

	// Classes maps an endpoint class name to its per-window request budget.
	Classes map[string]ClassConfig `yaml:"classes"`

	// DefaultClass is used when a route does not declare a class.
	DefaultClass string `yaml:"default_class"`

	// BanThreshold is the number of violations before a ban takes effect.
	BanThreshold int `yaml:"ban_threshold"`

	// BanDuration is the sliding ban length; each violation while banned
	// restarts it.
	BanDuration time.Duration `yaml:"ban_duration"`

	// Retention is the horizon after which window and violation records
	// are purged regardless of state.
	Retention time.Duration `yaml:"retention"`
}

// ClassConfig represents one endpoint class quota
type ClassConfig struct {
	MaxRequests int `yaml:"max_requests"`
}

// CacheConfig represents artifact cache settings
type CacheConfig struct {
	// MaxAge is the lifetime of a cache entry; expires_at = cached_at + max_age.
	MaxAge time.Duration `yaml:"max_age"`

	// MaxItemsPerCategory bounds the live entries kept per category.
	MaxItemsPerCategory int `yaml:"max_items_per_category"`

	// OpTimeout bounds each non-volatile tier operation; past it the tier
	// is treated as unavailable for that operation.
	OpTimeout time.Duration `yaml:"op_timeout"`

	// SweepInterval is the minimum spacing between opportunistic expiry
	// sweeps triggered on the hot path.
	SweepInterval time.Duration `yaml:"sweep_interval"`

	Durable  DurableTierConfig  `yaml:"durable"`
	Degraded DegradedTierConfig `yaml:"degraded"`
}

// DurableTierConfig represents the on-device persistent tier
type DurableTierConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Directory string `yaml:"directory"`
}

// DegradedTierConfig represents the last-resort metadata-only tier
type DegradedTierConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`

	// MaxItemBytes is the strict per-item encoded size limit.
	MaxItemBytes int `yaml:"max_item_bytes"`
}

// MetricsConfig represents metrics settings
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// LoggingConfig represents logging settings
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// NewDefault returns a configuration with sensible defaults
func NewDefault() *Configuration {
	return &Configuration{
		Server: ServerConfig{
			Address:      "localhost:8090",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Window: time.Minute,
			Classes: map[string]ClassConfig{
				"standard":  {MaxRequests: 60},
				"intensive": {MaxRequests: 10},
			},
			DefaultClass: "standard",
			BanThreshold: 5,
			BanDuration:  10 * time.Minute,
			Retention:    time.Hour,
		},
		Cache: CacheConfig{
			MaxAge:              time.Hour,
			MaxItemsPerCategory: 50,
			OpTimeout:           2 * time.Second,
			SweepInterval:       time.Minute,
			Durable: DurableTierConfig{
				Enabled:   true,
				Directory: "/var/cache/orbitdash/artifacts",
			},
			Degraded: DegradedTierConfig{
				Enabled:      true,
				Path:         "/var/cache/orbitdash/artifacts-meta.json",
				MaxItemBytes: 4096,
			},
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "orbitdash",
		},
		Logging: LoggingConfig{
			Level: "INFO",
			JSON:  false,
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv loads configuration overrides from environment variables
func (c *Configuration) LoadFromEnv() error {
	if val := os.Getenv("ORBITDASH_ADDRESS"); val != "" {
		c.Server.Address = val
	}
	if val := os.Getenv("ORBITDASH_LOG_LEVEL"); val != "" {
		c.Logging.Level = val
	}
	if val := os.Getenv("ORBITDASH_RATE_WINDOW"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.RateLimit.Window = d
		}
	}
	if val := os.Getenv("ORBITDASH_BAN_THRESHOLD"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.RateLimit.BanThreshold = n
		}
	}
	if val := os.Getenv("ORBITDASH_BAN_DURATION"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.RateLimit.BanDuration = d
		}
	}
	if val := os.Getenv("ORBITDASH_CACHE_MAX_AGE"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Cache.MaxAge = d
		}
	}
	if val := os.Getenv("ORBITDASH_CACHE_MAX_ITEMS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Cache.MaxItemsPerCategory = n
		}
	}
	if val := os.Getenv("ORBITDASH_CACHE_DIR"); val != "" {
		c.Cache.Durable.Directory = val
	}
	if val := os.Getenv("ORBITDASH_METRICS_ENABLED"); val != "" {
		c.Metrics.Enabled = strings.ToLower(val) == "true"
	}
	return nil
}

// SaveToFile saves the configuration to a YAML file
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.window must be greater than 0")
	}

	if len(c.RateLimit.Classes) == 0 {
		return fmt.Errorf("rate_limit.classes must define at least one class")
	}
	for name, class := range c.RateLimit.Classes {
		if class.MaxRequests <= 0 {
			return fmt.Errorf("rate_limit.classes[%s].max_requests must be greater than 0", name)
		}
	}
	if _, ok := c.RateLimit.Classes[c.RateLimit.DefaultClass]; !ok {
		return fmt.Errorf("rate_limit.default_class %q is not a defined class", c.RateLimit.DefaultClass)
	}

	if c.RateLimit.BanThreshold <= 0 {
		return fmt.Errorf("rate_limit.ban_threshold must be greater than 0")
	}
	if c.RateLimit.BanDuration <= 0 {
		return fmt.Errorf("rate_limit.ban_duration must be greater than 0")
	}
	if c.RateLimit.Retention < c.RateLimit.BanDuration {
		return fmt.Errorf("rate_limit.retention must not be shorter than ban_duration")
	}

	if c.Cache.MaxAge <= 0 {
		return fmt.Errorf("cache.max_age must be greater than 0")
	}
	if c.Cache.MaxItemsPerCategory <= 0 {
		return fmt.Errorf("cache.max_items_per_category must be greater than 0")
	}
	if c.Cache.OpTimeout <= 0 {
		return fmt.Errorf("cache.op_timeout must be greater than 0")
	}
	if c.Cache.Degraded.Enabled && c.Cache.Degraded.MaxItemBytes <= 0 {
		return fmt.Errorf("cache.degraded.max_item_bytes must be greater than 0")
	}

	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if strings.EqualFold(c.Logging.Level, level) {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return fmt.Errorf("invalid logging.level: %s (must be one of: %s)",
			c.Logging.Level, strings.Join(validLogLevels, ", "))
	}

	return nil
}
