package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/orbitdash/orbitdash/pkg/cacheerr"
	"github.com/orbitdash/orbitdash/pkg/types"
)

// DegradedTier is the last-resort persistent tier, used when the durable
// tier is unavailable or its write fails. It enforces a strict per-item
// encoded size limit and therefore stores only reduced-fidelity records:
// identifying metadata without the payload, enough for a later read to
// report "previously seen" rather than nothing.
//
// Records live in a single flat JSON file rewritten atomically on every
// mutation. That is deliberately primitive: this tier only matters when the
// real persistent store is broken, and a simple representation has the
// fewest ways to break alongside it.
type DegradedTier struct {
	path         string
	maxItemBytes int

	mu         sync.Mutex
	categories map[string]map[string]*types.CacheEntry
	closed     bool

	hits      uint64
	misses    uint64
	evictions uint64
	errors    uint64
	rejected  uint64
}

// OpenDegradedTier loads (or creates) the record file at path.
// maxItemBytes caps the encoded size of a single record.
func OpenDegradedTier(path string, maxItemBytes int) (*DegradedTier, error) {
	if maxItemBytes <= 0 {
		maxItemBytes = 4096
	}
	t := &DegradedTier{
		path:         path,
		maxItemBytes: maxItemBytes,
		categories:   make(map[string]map[string]*types.CacheEntry),
	}
	if err := t.load(); err != nil {
		return nil, fmt.Errorf("failed to load degraded tier: %w", err)
	}
	return t, nil
}

// Name identifies the tier.
func (t *DegradedTier) Name() string { return "degraded" }

// Get retrieves a metadata-only entry by category and id.
func (t *DegradedTier) Get(_ context.Context, category, id string) (*types.CacheEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, cacheerr.ErrClosed
	}
	entry := t.categories[category][id]
	if entry == nil {
		t.misses++
		return nil, cacheerr.ErrNotFound
	}
	t.hits++
	return entry.Clone(), nil
}

// Put stores a reduced-fidelity copy of the entry. Entries whose encoded
// form exceeds the per-item limit are rejected with ErrEntryTooLarge.
func (t *DegradedTier) Put(_ context.Context, entry *types.CacheEntry) error {
	record := entry.Stripped()

	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("degraded encode: %w", err)
	}
	if len(raw) > t.maxItemBytes {
		t.mu.Lock()
		t.rejected++
		t.mu.Unlock()
		return cacheerr.ErrEntryTooLarge
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return cacheerr.ErrClosed
	}
	byID, ok := t.categories[record.Category]
	if !ok {
		byID = make(map[string]*types.CacheEntry)
		t.categories[record.Category] = byID
	}
	byID[record.ID] = record

	if err := t.save(); err != nil {
		t.errors++
		return err
	}
	return nil
}

// Delete removes an entry. Deleting an absent entry is not an error.
func (t *DegradedTier) Delete(_ context.Context, category, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	byID, ok := t.categories[category]
	if !ok {
		return nil
	}
	if _, exists := byID[id]; !exists {
		return nil
	}
	delete(byID, id)
	if len(byID) == 0 {
		delete(t.categories, category)
	}
	t.evictions++

	if err := t.save(); err != nil {
		t.errors++
		return err
	}
	return nil
}

// List returns all entries of a category.
func (t *DegradedTier) List(_ context.Context, category string) ([]*types.CacheEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	byID := t.categories[category]
	entries := make([]*types.CacheEntry, 0, len(byID))
	for _, entry := range byID {
		entries = append(entries, entry.Clone())
	}
	return entries, nil
}

// Categories returns every category currently held.
func (t *DegradedTier) Categories(_ context.Context) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	categories := make([]string, 0, len(t.categories))
	for category := range t.categories {
		categories = append(categories, category)
	}
	return categories, nil
}

// Stats returns tier statistics.
func (t *DegradedTier) Stats() types.TierStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := 0
	for _, byID := range t.categories {
		entries += len(byID)
	}
	return types.TierStats{
		Tier:      t.Name(),
		Entries:   entries,
		Hits:      t.hits,
		Misses:    t.misses,
		Evictions: t.evictions,
		Errors:    t.errors,
		Available: !t.closed,
	}
}

// Close writes out the record file and marks the tier unusable.
func (t *DegradedTier) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	return t.save()
}

func (t *DegradedTier) load() error {
	raw, err := os.ReadFile(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var categories map[string]map[string]*types.CacheEntry
	if err := json.Unmarshal(raw, &categories); err != nil {
		// A torn or corrupt record file is abandoned, not fatal.
		return nil
	}
	t.categories = categories
	return nil
}

// save rewrites the record file atomically. Callers hold the lock.
func (t *DegradedTier) save() error {
	raw, err := json.Marshal(t.categories)
	if err != nil {
		return fmt.Errorf("degraded encode: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(t.path), 0750); err != nil {
		return fmt.Errorf("degraded write: %w", err)
	}
	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0600); err != nil {
		return fmt.Errorf("degraded write: %w", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("degraded write: %w", err)
	}
	return nil
}
