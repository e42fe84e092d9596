package cache

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/orbitdash/orbitdash/internal/circuit"
	"github.com/orbitdash/orbitdash/internal/metrics"
	"github.com/orbitdash/orbitdash/pkg/cacheerr"
	"github.com/orbitdash/orbitdash/pkg/types"
)

// Config represents artifact cache configuration
type Config struct {
	// MaxAge is the lifetime of an entry; expiry is cached_at + max_age.
	MaxAge time.Duration `yaml:"max_age"`

	// MaxItemsPerCategory bounds the live entries kept per category;
	// excess entries are evicted oldest-first after each put.
	MaxItemsPerCategory int `yaml:"max_items_per_category"`

	// OpTimeout bounds each non-volatile tier operation.
	OpTimeout time.Duration `yaml:"op_timeout"`

	// SweepInterval is the minimum spacing between opportunistic expiry
	// sweeps; sweeps run on the get/put hot path, never on a timer.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// tierSlot pairs a tier with its availability breaker. The volatile tier
// carries no breaker: it is in-process memory and cannot be unavailable.
type tierSlot struct {
	store   types.TierStore
	breaker *circuit.Breaker

	// reduced marks a tier that stores reduced-fidelity records only.
	reduced bool
}

// ArtifactCache orchestrates the tier fallback chain: write-through on put
// with a reduced-fidelity fallback, read with promotion, per-category
// capacity eviction, and lazy expiry.
//
// Both Get and Put are total: internal tier failures are logged and counted
// but never surface to the caller, who only ever observes an entry or a
// miss. A caching layer that can itself fail turns an availability
// mechanism into an availability risk.
type ArtifactCache struct {
	config  Config
	logger  hclog.Logger
	metrics *metrics.Collector
	slots   []tierSlot

	statsMu     sync.Mutex
	hits        uint64
	misses      uint64
	evictions   uint64
	expirations uint64

	lastSweep atomic.Int64
}

// New creates an artifact cache over the given tiers. volatile is required;
// durable and degraded may be nil when the corresponding tier is disabled
// or failed to open.
func New(config Config, volatile, durable, degraded types.TierStore, logger hclog.Logger, collector *metrics.Collector) *ArtifactCache {
	if config.MaxAge <= 0 {
		config.MaxAge = time.Hour
	}
	if config.MaxItemsPerCategory <= 0 {
		config.MaxItemsPerCategory = 50
	}
	if config.OpTimeout <= 0 {
		config.OpTimeout = 2 * time.Second
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = time.Minute
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	c := &ArtifactCache{
		config:  config,
		logger:  logger,
		metrics: collector,
	}

	onStateChange := func(name string, from, to circuit.State) {
		logger.Warn("tier availability changed", "tier", name, "from", from.String(), "to", to.String())
	}

	c.slots = append(c.slots, tierSlot{store: volatile})
	if durable != nil {
		c.slots = append(c.slots, tierSlot{
			store: durable,
			breaker: circuit.New(durable.Name(), circuit.Config{
				FailureThreshold: 3,
				Cooldown:         15 * time.Second,
				OnStateChange:    onStateChange,
			}),
		})
	}
	if degraded != nil {
		c.slots = append(c.slots, tierSlot{
			store: degraded,
			breaker: circuit.New(degraded.Name(), circuit.Config{
				FailureThreshold: 3,
				Cooldown:         15 * time.Second,
				OnStateChange:    onStateChange,
			}),
			reduced: true,
		})
	}
	return c
}

// Get walks the tier chain and returns the first live entry found. An entry
// found below the volatile tier is promoted into it if it carries a full
// payload. Dead entries encountered during the walk are deleted from
// whichever tier held them. A degraded-tier result is metadata-only.
func (c *ArtifactCache) Get(ctx context.Context, category, id string) (*types.CacheEntry, bool) {
	c.maybeSweep(ctx)
	now := time.Now()

	for i, slot := range c.slots {
		entry, err := c.tierGet(ctx, slot, category, id)
		if err != nil {
			if !cacheerr.IsNotFound(err) {
				c.tierFault(slot, "get", err)
			}
			continue
		}

		if !entry.Live(now) {
			c.tierDelete(ctx, slot, category, id)
			c.bumpExpirations(1)
			c.metrics.RecordEviction("expiry")
			continue
		}

		if i > 0 && entry.Fidelity == types.FidelityFull {
			if err := c.slots[0].store.Put(ctx, entry); err != nil {
				c.logger.Debug("promotion to volatile tier failed", "category", category, "id", id, "error", err)
			}
		}

		c.statsMu.Lock()
		c.hits++
		c.statsMu.Unlock()
		c.metrics.RecordCacheHit(slot.store.Name())
		return entry, true
	}

	c.statsMu.Lock()
	c.misses++
	c.statsMu.Unlock()
	c.metrics.RecordCacheMiss()
	return nil, false
}

// Put constructs an entry expiring max_age from now and writes it through
// the chain: the volatile tier synchronously, then the durable tier, and on
// durable failure the degraded tier with a reduced-fidelity record. A tier
// write failure never fails the put. Category eviction runs afterwards.
func (c *ArtifactCache) Put(ctx context.Context, category, id, sourceLocator string, payload []byte, metadata map[string]string) *types.CacheEntry {
	now := time.Now()
	entry := &types.CacheEntry{
		ID:            id,
		SourceLocator: sourceLocator,
		Category:      category,
		CachedAt:      now,
		ExpiresAt:     now.Add(c.config.MaxAge),
		Metadata:      metadata,
		Payload:       payload,
		Fidelity:      types.FidelityFull,
	}

	if err := c.slots[0].store.Put(ctx, entry); err != nil {
		c.logger.Warn("volatile tier write failed", "category", category, "id", id, "error", err)
	}

	for _, slot := range c.slots[1:] {
		record := entry
		if slot.reduced {
			record = entry.Stripped()
		}
		err := c.tierDo(ctx, slot, func(opCtx context.Context) error {
			return slot.store.Put(opCtx, record)
		})
		if err != nil {
			c.tierFault(slot, "put", err)
			continue
		}
		break
	}

	c.evictCategory(ctx, category)
	c.maybeSweep(ctx)
	return entry
}

// ListByCategory returns the live entries of a category, most recent first,
// merged across whichever tiers are available and deduplicated by id with
// the highest-fidelity copy preferred. limit <= 0 means no limit.
func (c *ArtifactCache) ListByCategory(ctx context.Context, category string, limit int) []*types.CacheEntry {
	c.maybeSweep(ctx)
	now := time.Now()

	best := make(map[string]*types.CacheEntry)
	for _, slot := range c.slots {
		entries, err := c.tierList(ctx, slot, category)
		if err != nil {
			c.tierFault(slot, "list", err)
			continue
		}
		for _, entry := range entries {
			if !entry.Live(now) {
				c.tierDelete(ctx, slot, category, entry.ID)
				c.bumpExpirations(1)
				c.metrics.RecordEviction("expiry")
				continue
			}
			current, ok := best[entry.ID]
			if !ok || (current.Fidelity == types.FidelityMetadata && entry.Fidelity == types.FidelityFull) {
				best[entry.ID] = entry
			}
		}
	}

	result := make([]*types.CacheEntry, 0, len(best))
	for _, entry := range best {
		result = append(result, entry)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CachedAt.Equal(result[j].CachedAt) {
			return result[i].CachedAt.After(result[j].CachedAt)
		}
		return result[i].ID < result[j].ID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

// ClearCategory deletes every entry of a category from every tier.
func (c *ArtifactCache) ClearCategory(ctx context.Context, category string) {
	for _, slot := range c.slots {
		entries, err := c.tierList(ctx, slot, category)
		if err != nil {
			c.tierFault(slot, "list", err)
			continue
		}
		for _, entry := range entries {
			c.tierDelete(ctx, slot, category, entry.ID)
			c.metrics.RecordEviction("clear")
		}
	}
}

// PurgeExpired deletes every entry past its expiry from every tier. It is
// idempotent and safe to call at any time; the cache also runs it
// opportunistically from the get/put hot path.
func (c *ArtifactCache) PurgeExpired(ctx context.Context) {
	now := time.Now()
	for _, slot := range c.slots {
		if slot.breaker != nil && !slot.breaker.Available() {
			continue
		}
		categories, err := slot.store.Categories(ctx)
		if err != nil {
			c.tierFault(slot, "categories", err)
			continue
		}
		for _, category := range categories {
			entries, err := c.tierList(ctx, slot, category)
			if err != nil {
				c.tierFault(slot, "list", err)
				continue
			}
			for _, entry := range entries {
				if entry.Live(now) {
					continue
				}
				c.tierDelete(ctx, slot, category, entry.ID)
				c.bumpExpirations(1)
				c.metrics.RecordEviction("expiry")
			}
		}
		c.metrics.SetTierEntries(slot.store.Name(), slot.store.Stats().Entries)
	}
}

// Stats returns combined statistics across all tiers.
func (c *ArtifactCache) Stats() types.CacheStats {
	c.statsMu.Lock()
	stats := types.CacheStats{
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
	}
	c.statsMu.Unlock()

	total := stats.Hits + stats.Misses
	if total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}

	for _, slot := range c.slots {
		tierStats := slot.store.Stats()
		if slot.breaker != nil && !slot.breaker.Available() {
			tierStats.Available = false
		}
		stats.Tiers = append(stats.Tiers, tierStats)
	}
	return stats
}

// Close closes every tier.
func (c *ArtifactCache) Close() error {
	var errs []error
	for _, slot := range c.slots {
		if err := slot.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// evictCategory enforces the per-category capacity bound: while the live
// union across tiers exceeds the limit, the oldest entries go first, ties
// broken by id so the policy is deterministic.
func (c *ArtifactCache) evictCategory(ctx context.Context, category string) {
	now := time.Now()

	cachedAt := make(map[string]time.Time)
	for _, slot := range c.slots {
		entries, err := c.tierList(ctx, slot, category)
		if err != nil {
			c.tierFault(slot, "list", err)
			continue
		}
		for _, entry := range entries {
			if !entry.Live(now) {
				continue
			}
			if at, ok := cachedAt[entry.ID]; !ok || entry.CachedAt.Before(at) {
				cachedAt[entry.ID] = entry.CachedAt
			}
		}
	}

	excess := len(cachedAt) - c.config.MaxItemsPerCategory
	if excess <= 0 {
		return
	}

	type victim struct {
		id string
		at time.Time
	}
	victims := make([]victim, 0, len(cachedAt))
	for id, at := range cachedAt {
		victims = append(victims, victim{id: id, at: at})
	}
	sort.Slice(victims, func(i, j int) bool {
		if !victims[i].at.Equal(victims[j].at) {
			return victims[i].at.Before(victims[j].at)
		}
		return victims[i].id < victims[j].id
	})

	for _, v := range victims[:excess] {
		for _, slot := range c.slots {
			c.tierDelete(ctx, slot, category, v.id)
		}
		c.statsMu.Lock()
		c.evictions++
		c.statsMu.Unlock()
		c.metrics.RecordEviction("capacity")
	}
}

// maybeSweep runs an expiry sweep if one has not run within SweepInterval.
// The sweep piggybacks on the hot path so no background scheduler is needed.
func (c *ArtifactCache) maybeSweep(ctx context.Context) {
	now := time.Now().UnixNano()
	last := c.lastSweep.Load()
	if now-last < int64(c.config.SweepInterval) {
		return
	}
	if !c.lastSweep.CompareAndSwap(last, now) {
		return
	}
	c.PurgeExpired(ctx)
}

// tierDo runs fn against a non-volatile tier under its breaker and a
// bounded timeout. The timeout context is detached from the caller's so an
// aborted request does not abandon a population write that would benefit
// future requests. The volatile tier runs the operation directly.
func (c *ArtifactCache) tierDo(ctx context.Context, slot tierSlot, fn func(context.Context) error) error {
	if slot.breaker == nil {
		return fn(ctx)
	}

	err := slot.breaker.Do(func() error {
		opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.OpTimeout)
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- fn(opCtx) }()

		select {
		case err := <-done:
			return err
		case <-opCtx.Done():
			return cacheerr.ErrTierUnavailable
		}
	})
	if errors.Is(err, circuit.ErrOpen) {
		return cacheerr.ErrTierUnavailable
	}
	return err
}

func (c *ArtifactCache) tierGet(ctx context.Context, slot tierSlot, category, id string) (*types.CacheEntry, error) {
	var entry *types.CacheEntry
	var absent error
	err := c.tierDo(ctx, slot, func(opCtx context.Context) error {
		e, err := slot.store.Get(opCtx, category, id)
		if err != nil {
			// Absence is a normal outcome, not a tier fault.
			if cacheerr.IsNotFound(err) {
				absent = err
				return nil
			}
			return err
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	if absent != nil {
		return nil, absent
	}
	return entry, nil
}

func (c *ArtifactCache) tierList(ctx context.Context, slot tierSlot, category string) ([]*types.CacheEntry, error) {
	var entries []*types.CacheEntry
	err := c.tierDo(ctx, slot, func(opCtx context.Context) error {
		list, err := slot.store.List(opCtx, category)
		if err != nil {
			return err
		}
		entries = list
		return nil
	})
	return entries, err
}

func (c *ArtifactCache) tierDelete(ctx context.Context, slot tierSlot, category, id string) {
	err := c.tierDo(ctx, slot, func(opCtx context.Context) error {
		return slot.store.Delete(opCtx, category, id)
	})
	if err != nil {
		c.tierFault(slot, "delete", err)
	}
}

func (c *ArtifactCache) tierFault(slot tierSlot, op string, err error) {
	c.logger.Warn("tier operation failed", "tier", slot.store.Name(), "op", op, "error", err)
	c.metrics.RecordTierError(slot.store.Name(), op)
}

func (c *ArtifactCache) bumpExpirations(n uint64) {
	c.statsMu.Lock()
	c.expirations += n
	c.statsMu.Unlock()
}
