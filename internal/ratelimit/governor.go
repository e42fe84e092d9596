package ratelimit

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/orbitdash/orbitdash/internal/metrics"
	"github.com/orbitdash/orbitdash/pkg/types"
)

// Class represents one endpoint class quota
type Class struct {
	MaxRequests int `yaml:"max_requests"`
}

// Config represents governor configuration
type Config struct {
	// Window is the length of one counting window.
	Window time.Duration `yaml:"window"`

	// Classes maps endpoint class names to their per-window budgets.
	Classes map[string]Class `yaml:"classes"`

	// DefaultClass is used for unknown class names.
	DefaultClass string `yaml:"default_class"`

	// BanThreshold is the violation count at which a ban takes effect.
	BanThreshold int `yaml:"ban_threshold"`

	// BanDuration is the sliding ban length.
	BanDuration time.Duration `yaml:"ban_duration"`

	// Retention is the bookkeeping horizon for ban records.
	Retention time.Duration `yaml:"retention"`
}

// Governor is the service-boundary admission control: it decides
// allow/deny/ban for each inbound request from the sliding-window counters
// and the ban registry, and produces the quota figures the transport layer
// turns into response headers.
//
// Admit is total and never blocks: an internal inconsistency (a clock
// anomaly, a panic in the bookkeeping) degrades to Allow, because blocking
// legitimate traffic is worse than briefly under-enforcing quota.
type Governor struct {
	config  Config
	windows *WindowTable
	bans    *BanRegistry
	logger  hclog.Logger
	metrics *metrics.Collector

	lastCleanup atomic.Int64
}

// NewGovernor creates a governor owning its own counter and ban state.
func NewGovernor(config Config, logger hclog.Logger, collector *metrics.Collector) *Governor {
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	if len(config.Classes) == 0 {
		config.Classes = map[string]Class{"standard": {MaxRequests: 60}}
	}
	if _, ok := config.Classes[config.DefaultClass]; !ok {
		for name := range config.Classes {
			config.DefaultClass = name
			break
		}
	}
	if config.BanThreshold <= 0 {
		config.BanThreshold = 5
	}
	if config.BanDuration <= 0 {
		config.BanDuration = 10 * time.Minute
	}
	if config.Retention < config.BanDuration {
		config.Retention = time.Hour
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	return &Governor{
		config:  config,
		windows: NewWindowTable(config.Window),
		bans:    NewBanRegistry(config.BanThreshold, config.BanDuration, config.Retention),
		logger:  logger,
		metrics: collector,
	}
}

// Admit decides whether the request from identity against the given
// endpoint class may proceed as of now.
func (g *Governor) Admit(identity, class string, now time.Time) (result types.AdmitResult) {
	limit := g.classLimit(class)

	// Fail open: the limiter must never take the request pipeline down
	// with it.
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("admission check panicked; admitting", "identity", identity, "panic", r)
			result = allowAll(limit, now.Add(g.config.Window))
		}
	}()

	g.maybeCleanup(now)

	if banned, _ := g.bans.Status(identity, now); banned {
		// A request while banned restarts the ban clock.
		g.bans.Refresh(identity, now)
		g.metrics.RecordAdmission("ban", class)
		return types.AdmitResult{
			Decision:   types.DecisionBan,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    now.Add(g.config.BanDuration),
			RetryAfter: g.config.BanDuration,
		}
	}

	count, windowEnd := g.windows.Hit(identity, class, now)

	retry := windowEnd.Sub(now)
	if retry <= 0 || retry > g.config.Window {
		g.logger.Warn("clock anomaly in window computation; admitting",
			"identity", identity, "class", class, "retry", retry)
		g.metrics.RecordAdmission("allow", class)
		return allowAll(limit, windowEnd)
	}

	if count > limit {
		violations, banned := g.bans.RecordViolation(identity, now)
		g.metrics.RecordViolation()
		if banned && violations == g.config.BanThreshold {
			g.logger.Info("identity banned after repeated violations",
				"identity", identity, "violations", violations, "duration", g.config.BanDuration)
			g.metrics.RecordBan()
		}
		g.metrics.RecordAdmission("deny", class)
		return types.AdmitResult{
			Decision:   types.DecisionDeny,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    windowEnd,
			RetryAfter: retry,
		}
	}

	g.metrics.RecordAdmission("allow", class)
	return types.AdmitResult{
		Decision:  types.DecisionAllow,
		Limit:     limit,
		Remaining: limit - count,
		ResetAt:   windowEnd,
	}
}

func allowAll(limit int, resetAt time.Time) types.AdmitResult {
	return types.AdmitResult{
		Decision:  types.DecisionAllow,
		Limit:     limit,
		Remaining: limit,
		ResetAt:   resetAt,
	}
}

func (g *Governor) classLimit(class string) int {
	if c, ok := g.config.Classes[class]; ok {
		return c.MaxRequests
	}
	return g.config.Classes[g.config.DefaultClass].MaxRequests
}

// maybeCleanup purges dead windows and stale ban records, at most once per
// window length, from the admission path itself. No background scheduler.
func (g *Governor) maybeCleanup(now time.Time) {
	last := g.lastCleanup.Load()
	if now.UnixNano()-last < int64(g.config.Window) {
		return
	}
	if !g.lastCleanup.CompareAndSwap(last, now.UnixNano()) {
		return
	}

	windows := g.windows.PurgeBefore(now)
	bans := g.bans.Purge(now)
	if windows > 0 || bans > 0 {
		g.logger.Debug("purged rate-limit bookkeeping", "windows", windows, "bans", bans)
	}
}
