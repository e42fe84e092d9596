package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/orbitdash/orbitdash/pkg/cacheerr"
	"github.com/orbitdash/orbitdash/pkg/types"
)

// Entry records are keyed "e:<category>\x00<id>" so one prefix scan lists a
// category and one scan of "e:" rebuilds the whole index after a restart.
// Category and id are caller-supplied and may contain NUL, so both parts are
// escaped before the separator is applied.
const durableKeyPrefix = "e:"

// DurableTier is the on-device persistent tier, backed by an embedded
// LevelDB database. It survives process restarts; opening or writing can
// fail (quota, unsupported environment), which the orchestrating cache
// treats as non-fatal.
type DurableTier struct {
	db *leveldb.DB

	mu     sync.Mutex
	index  map[string]map[string]int64 // category -> id -> stored size
	bytes  int64
	closed bool

	hits      uint64
	misses    uint64
	evictions uint64
	errors    uint64
}

// OpenDurableTier opens (or creates) the database under dir and rebuilds the
// in-memory index from the stored records.
func OpenDurableTier(dir string) (*DurableTier, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open durable tier: %w", err)
	}

	t := &DurableTier{
		db:    db,
		index: make(map[string]map[string]int64),
	}
	if err := t.loadIndex(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to load durable tier index: %w", err)
	}
	return t, nil
}

// Name identifies the tier.
func (t *DurableTier) Name() string { return "durable" }

// escapeKeyPart doubles backslashes and rewrites NUL to a backslash escape,
// so the literal NUL separator in a composite key can only sit between parts
// and no two (category, id) pairs share a key or a scan prefix.
func escapeKeyPart(s string) string {
	if !strings.ContainsAny(s, "\\\x00") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 2)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			b.WriteString(`\\`)
		case 0:
			b.WriteString(`\0`)
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func durableKey(category, id string) []byte {
	return []byte(durableKeyPrefix + escapeKeyPart(category) + "\x00" + escapeKeyPart(id))
}

// loadIndex rebuilds the in-memory index from the stored records. Category
// and id come from the record bodies, not the keys, so no unescaping is
// needed and corrupt records are simply skipped.
func (t *DurableTier) loadIndex() error {
	it := t.db.NewIterator(util.BytesPrefix([]byte(durableKeyPrefix)), nil)
	defer it.Release()

	for it.Next() {
		var entry types.CacheEntry
		if err := json.Unmarshal(it.Value(), &entry); err != nil {
			continue
		}
		byID, ok := t.index[entry.Category]
		if !ok {
			byID = make(map[string]int64)
			t.index[entry.Category] = byID
		}
		size := int64(len(it.Value()))
		byID[entry.ID] = size
		t.bytes += size
	}
	return it.Error()
}

// Get retrieves an entry by category and id.
func (t *DurableTier) Get(_ context.Context, category, id string) (*types.CacheEntry, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, cacheerr.ErrClosed
	}
	_, known := t.index[category][id]
	t.mu.Unlock()

	if !known {
		t.count(func() { t.misses++ })
		return nil, cacheerr.ErrNotFound
	}

	raw, err := t.db.Get(durableKey(category, id), nil)
	if err == leveldb.ErrNotFound {
		// Index drifted from the database; drop the stale index record.
		t.forget(category, id)
		t.count(func() { t.misses++ })
		return nil, cacheerr.ErrNotFound
	}
	if err != nil {
		t.count(func() { t.errors++ })
		return nil, fmt.Errorf("durable read: %w", err)
	}

	var entry types.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		// Corrupt record; remove it rather than fail every future read.
		_ = t.db.Delete(durableKey(category, id), nil)
		t.forget(category, id)
		t.count(func() { t.errors++ })
		return nil, cacheerr.ErrNotFound
	}

	t.count(func() { t.hits++ })
	return &entry, nil
}

// Put stores an entry, replacing any existing entry with the same id.
func (t *DurableTier) Put(_ context.Context, entry *types.CacheEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		t.count(func() { t.errors++ })
		return fmt.Errorf("durable encode: %w", err)
	}

	if err := t.db.Put(durableKey(entry.Category, entry.ID), raw, nil); err != nil {
		t.count(func() { t.errors++ })
		return fmt.Errorf("durable write: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return cacheerr.ErrClosed
	}
	byID, ok := t.index[entry.Category]
	if !ok {
		byID = make(map[string]int64)
		t.index[entry.Category] = byID
	}
	if old, exists := byID[entry.ID]; exists {
		t.bytes -= old
	}
	size := int64(len(raw))
	byID[entry.ID] = size
	t.bytes += size
	return nil
}

// Delete removes an entry. Deleting an absent entry is not an error.
func (t *DurableTier) Delete(_ context.Context, category, id string) error {
	if err := t.db.Delete(durableKey(category, id), nil); err != nil {
		t.count(func() { t.errors++ })
		return fmt.Errorf("durable delete: %w", err)
	}
	if t.forget(category, id) {
		t.count(func() { t.evictions++ })
	}
	return nil
}

// List returns all entries of a category.
func (t *DurableTier) List(_ context.Context, category string) ([]*types.CacheEntry, error) {
	prefix := []byte(durableKeyPrefix + escapeKeyPart(category) + "\x00")
	it := t.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()

	var entries []*types.CacheEntry
	for it.Next() {
		var entry types.CacheEntry
		if err := json.Unmarshal(it.Value(), &entry); err != nil {
			continue
		}
		entries = append(entries, &entry)
	}
	if err := it.Error(); err != nil {
		t.count(func() { t.errors++ })
		return nil, fmt.Errorf("durable list: %w", err)
	}
	return entries, nil
}

// Categories returns every category currently held.
func (t *DurableTier) Categories(_ context.Context) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	categories := make([]string, 0, len(t.index))
	for category := range t.index {
		categories = append(categories, category)
	}
	return categories, nil
}

// Stats returns tier statistics.
func (t *DurableTier) Stats() types.TierStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := 0
	for _, byID := range t.index {
		entries += len(byID)
	}
	return types.TierStats{
		Tier:      t.Name(),
		Entries:   entries,
		Bytes:     t.bytes,
		Hits:      t.hits,
		Misses:    t.misses,
		Evictions: t.evictions,
		Errors:    t.errors,
		Available: !t.closed,
	}
}

// Close closes the underlying database.
func (t *DurableTier) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()
	return t.db.Close()
}

func (t *DurableTier) forget(category, id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	byID, ok := t.index[category]
	if !ok {
		return false
	}
	size, exists := byID[id]
	if !exists {
		return false
	}
	t.bytes -= size
	delete(byID, id)
	if len(byID) == 0 {
		delete(t.index, category)
	}
	return true
}

func (t *DurableTier) count(fn func()) {
	t.mu.Lock()
	fn()
	t.mu.Unlock()
}
