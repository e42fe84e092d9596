package cache

import (
	"context"
	"sync"

	"github.com/orbitdash/orbitdash/pkg/cacheerr"
	"github.com/orbitdash/orbitdash/pkg/types"
)

// VolatileTier is the in-process memory tier. It is the fastest tier, the one
// synchronous write guarantee of the cache, and the only tier with no
// availability failure mode. Contents are lost on process restart.
type VolatileTier struct {
	mu         sync.RWMutex
	categories map[string]map[string]*types.CacheEntry
	bytes      int64

	statsMu   sync.Mutex
	hits      uint64
	misses    uint64
	evictions uint64
}

// NewVolatileTier creates an empty memory tier.
func NewVolatileTier() *VolatileTier {
	return &VolatileTier{
		categories: make(map[string]map[string]*types.CacheEntry),
	}
}

// Name identifies the tier.
func (t *VolatileTier) Name() string { return "volatile" }

// Get retrieves an entry by category and id.
func (t *VolatileTier) Get(_ context.Context, category, id string) (*types.CacheEntry, error) {
	t.mu.RLock()
	entry := t.categories[category][id]
	t.mu.RUnlock()

	t.statsMu.Lock()
	if entry == nil {
		t.misses++
	} else {
		t.hits++
	}
	t.statsMu.Unlock()

	if entry == nil {
		return nil, cacheerr.ErrNotFound
	}
	return entry.Clone(), nil
}

// Put stores an entry, replacing any existing entry with the same id.
func (t *VolatileTier) Put(_ context.Context, entry *types.CacheEntry) error {
	clone := entry.Clone()

	t.mu.Lock()
	defer t.mu.Unlock()

	byID, ok := t.categories[clone.Category]
	if !ok {
		byID = make(map[string]*types.CacheEntry)
		t.categories[clone.Category] = byID
	}
	if old, exists := byID[clone.ID]; exists {
		t.bytes -= int64(len(old.Payload))
	}
	byID[clone.ID] = clone
	t.bytes += int64(len(clone.Payload))
	return nil
}

// Delete removes an entry. Deleting an absent entry is not an error.
func (t *VolatileTier) Delete(_ context.Context, category, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	byID, ok := t.categories[category]
	if !ok {
		return nil
	}
	if old, exists := byID[id]; exists {
		t.bytes -= int64(len(old.Payload))
		delete(byID, id)
		if len(byID) == 0 {
			delete(t.categories, category)
		}
		t.statsMu.Lock()
		t.evictions++
		t.statsMu.Unlock()
	}
	return nil
}

// List returns all entries of a category.
func (t *VolatileTier) List(_ context.Context, category string) ([]*types.CacheEntry, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	byID := t.categories[category]
	entries := make([]*types.CacheEntry, 0, len(byID))
	for _, entry := range byID {
		entries = append(entries, entry.Clone())
	}
	return entries, nil
}

// Categories returns every category currently held.
func (t *VolatileTier) Categories(_ context.Context) ([]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	categories := make([]string, 0, len(t.categories))
	for category := range t.categories {
		categories = append(categories, category)
	}
	return categories, nil
}

// Stats returns tier statistics.
func (t *VolatileTier) Stats() types.TierStats {
	t.mu.RLock()
	entries := 0
	for _, byID := range t.categories {
		entries += len(byID)
	}
	bytes := t.bytes
	t.mu.RUnlock()

	t.statsMu.Lock()
	defer t.statsMu.Unlock()
	return types.TierStats{
		Tier:      t.Name(),
		Entries:   entries,
		Bytes:     bytes,
		Hits:      t.hits,
		Misses:    t.misses,
		Evictions: t.evictions,
		Available: true,
	}
}

// Clear drops all entries. Used to simulate a process restart in tests and
// to reset the tier on demand.
func (t *VolatileTier) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.categories = make(map[string]map[string]*types.CacheEntry)
	t.bytes = 0
}

// Close clears the tier. A volatile tier holds no external resources.
func (t *VolatileTier) Close() error {
	t.Clear()
	return nil
}
