package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewDefaultIsValid(t *testing.T) {
	cfg := NewDefault()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default configuration must validate: %v", err)
	}
	if cfg.RateLimit.Classes["standard"].MaxRequests != 60 {
		t.Errorf("unexpected standard class budget: %d", cfg.RateLimit.Classes["standard"].MaxRequests)
	}
	if cfg.RateLimit.Classes["intensive"].MaxRequests != 10 {
		t.Errorf("unexpected intensive class budget: %d", cfg.RateLimit.Classes["intensive"].MaxRequests)
	}
	if cfg.Cache.MaxAge != time.Hour {
		t.Errorf("unexpected default max age: %v", cfg.Cache.MaxAge)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	original := NewDefault()
	original.Server.Address = "0.0.0.0:9000"
	original.RateLimit.BanThreshold = 7
	original.Cache.MaxItemsPerCategory = 25
	if err := original.SaveToFile(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded := NewDefault()
	if err := loaded.LoadFromFile(path); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Server.Address != "0.0.0.0:9000" {
		t.Errorf("address not round-tripped: %q", loaded.Server.Address)
	}
	if loaded.RateLimit.BanThreshold != 7 {
		t.Errorf("ban threshold not round-tripped: %d", loaded.RateLimit.BanThreshold)
	}
	if loaded.Cache.MaxItemsPerCategory != 25 {
		t.Errorf("max items not round-tripped: %d", loaded.Cache.MaxItemsPerCategory)
	}
}

func TestLoadFromFilePartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
rate_limit:
  window: 30s
  classes:
    standard:
      max_requests: 120
    intensive:
      max_requests: 5
cache:
  max_age: 15m
`
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	cfg := NewDefault()
	if err := cfg.LoadFromFile(path); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.RateLimit.Window != 30*time.Second {
		t.Errorf("window not loaded: %v", cfg.RateLimit.Window)
	}
	if cfg.RateLimit.Classes["standard"].MaxRequests != 120 {
		t.Errorf("class budget not loaded: %d", cfg.RateLimit.Classes["standard"].MaxRequests)
	}
	if cfg.Cache.MaxAge != 15*time.Minute {
		t.Errorf("max age not loaded: %v", cfg.Cache.MaxAge)
	}
	// Untouched sections keep their defaults.
	if cfg.Server.Address != "localhost:8090" {
		t.Errorf("unrelated default clobbered: %q", cfg.Server.Address)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := NewDefault()
	if err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ORBITDASH_ADDRESS", "0.0.0.0:8443")
	t.Setenv("ORBITDASH_RATE_WINDOW", "90s")
	t.Setenv("ORBITDASH_BAN_THRESHOLD", "3")
	t.Setenv("ORBITDASH_CACHE_MAX_AGE", "2h")
	t.Setenv("ORBITDASH_METRICS_ENABLED", "false")

	cfg := NewDefault()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("env load failed: %v", err)
	}
	if cfg.Server.Address != "0.0.0.0:8443" {
		t.Errorf("address not overridden: %q", cfg.Server.Address)
	}
	if cfg.RateLimit.Window != 90*time.Second {
		t.Errorf("window not overridden: %v", cfg.RateLimit.Window)
	}
	if cfg.RateLimit.BanThreshold != 3 {
		t.Errorf("ban threshold not overridden: %d", cfg.RateLimit.BanThreshold)
	}
	if cfg.Cache.MaxAge != 2*time.Hour {
		t.Errorf("max age not overridden: %v", cfg.Cache.MaxAge)
	}
	if cfg.Metrics.Enabled {
		t.Error("metrics not disabled by env override")
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Configuration)
		want   string
	}{
		{
			name:   "zero window",
			mutate: func(c *Configuration) { c.RateLimit.Window = 0 },
			want:   "rate_limit.window",
		},
		{
			name:   "no classes",
			mutate: func(c *Configuration) { c.RateLimit.Classes = nil },
			want:   "rate_limit.classes",
		},
		{
			name: "zero class budget",
			mutate: func(c *Configuration) {
				c.RateLimit.Classes["standard"] = ClassConfig{MaxRequests: 0}
			},
			want: "max_requests",
		},
		{
			name:   "unknown default class",
			mutate: func(c *Configuration) { c.RateLimit.DefaultClass = "no-such-class" },
			want:   "default_class",
		},
		{
			name:   "zero ban threshold",
			mutate: func(c *Configuration) { c.RateLimit.BanThreshold = 0 },
			want:   "ban_threshold",
		},
		{
			name:   "retention shorter than ban",
			mutate: func(c *Configuration) { c.RateLimit.Retention = time.Minute },
			want:   "retention",
		},
		{
			name:   "zero max age",
			mutate: func(c *Configuration) { c.Cache.MaxAge = 0 },
			want:   "cache.max_age",
		},
		{
			name:   "zero item bound",
			mutate: func(c *Configuration) { c.Cache.MaxItemsPerCategory = 0 },
			want:   "max_items_per_category",
		},
		{
			name: "degraded without size limit",
			mutate: func(c *Configuration) {
				c.Cache.Degraded.Enabled = true
				c.Cache.Degraded.MaxItemBytes = 0
			},
			want: "max_item_bytes",
		},
		{
			name:   "bad log level",
			mutate: func(c *Configuration) { c.Logging.Level = "LOUD" },
			want:   "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefault()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %q", tt.want, err)
			}
		})
	}
}
