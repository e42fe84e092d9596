package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config represents metrics configuration
type Config struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Collector exposes Prometheus metrics for the admission governor and the
// artifact cache. A nil *Collector is valid and records nothing, so callers
// never have to guard their instrumentation sites.
type Collector struct {
	registry *prometheus.Registry

	admissions  *prometheus.CounterVec
	violations  prometheus.Counter
	bans        prometheus.Counter
	cacheHits   *prometheus.CounterVec
	cacheMisses prometheus.Counter
	evictions   *prometheus.CounterVec
	tierErrors  *prometheus.CounterVec
	tierEntries *prometheus.GaugeVec
}

// NewCollector creates a collector registered on its own registry.
// Returns nil when metrics are disabled.
func NewCollector(config *Config) *Collector {
	if config == nil {
		config = &Config{Enabled: true, Namespace: "orbitdash"}
	}
	if !config.Enabled {
		return nil
	}
	ns := config.Namespace
	if ns == "" {
		ns = "orbitdash"
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "governor",
			Name:      "admissions_total",
			Help:      "Admission decisions by outcome and endpoint class",
		}, []string{"outcome", "class"}),
		violations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "governor",
			Name:      "violations_total",
			Help:      "Quota violations recorded",
		}),
		bans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "governor",
			Name:      "bans_total",
			Help:      "Identities transitioned into the banned state",
		}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Cache hits by serving tier",
		}, []string{"tier"}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Cache misses across all tiers",
		}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Entries removed by reason (capacity, expiry, clear)",
		}, []string{"reason"}),
		tierErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "cache",
			Name:      "tier_errors_total",
			Help:      "Tier operation failures by tier and operation",
		}, []string{"tier", "op"}),
		tierEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "cache",
			Name:      "tier_entries",
			Help:      "Entries currently held per tier",
		}, []string{"tier"}),
	}

	c.registry.MustRegister(
		c.admissions, c.violations, c.bans,
		c.cacheHits, c.cacheMisses, c.evictions,
		c.tierErrors, c.tierEntries,
	)
	return c
}

// Handler returns the Prometheus scrape handler.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordAdmission counts one admission decision.
func (c *Collector) RecordAdmission(outcome, class string) {
	if c == nil {
		return
	}
	c.admissions.WithLabelValues(outcome, class).Inc()
}

// RecordViolation counts one quota violation.
func (c *Collector) RecordViolation() {
	if c == nil {
		return
	}
	c.violations.Inc()
}

// RecordBan counts one identity entering the banned state.
func (c *Collector) RecordBan() {
	if c == nil {
		return
	}
	c.bans.Inc()
}

// RecordCacheHit counts a hit served by the named tier.
func (c *Collector) RecordCacheHit(tier string) {
	if c == nil {
		return
	}
	c.cacheHits.WithLabelValues(tier).Inc()
}

// RecordCacheMiss counts a miss across all tiers.
func (c *Collector) RecordCacheMiss() {
	if c == nil {
		return
	}
	c.cacheMisses.Inc()
}

// RecordEviction counts one removed entry by reason.
func (c *Collector) RecordEviction(reason string) {
	if c == nil {
		return
	}
	c.evictions.WithLabelValues(reason).Inc()
}

// RecordTierError counts a failed tier operation.
func (c *Collector) RecordTierError(tier, op string) {
	if c == nil {
		return
	}
	c.tierErrors.WithLabelValues(tier, op).Inc()
}

// SetTierEntries records the current entry count of a tier.
func (c *Collector) SetTierEntries(tier string, entries int) {
	if c == nil {
		return
	}
	c.tierEntries.WithLabelValues(tier).Set(float64(entries))
}
