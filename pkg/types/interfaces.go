package types

import (
	"context"
)

// TierStore is the uniform contract for one storage tier in the cache's
// fallback chain. Implementations must be safe for concurrent use.
//
// Get returns cacheerr.ErrNotFound when the id is absent; any other error
// means the tier could not be consulted. A returned entry may be
// metadata-only depending on the tier's fidelity.
type TierStore interface {
	// Name identifies the tier ("volatile", "durable", "degraded").
	Name() string

	// Get retrieves an entry by category and id.
	Get(ctx context.Context, category, id string) (*CacheEntry, error)

	// Put stores an entry, replacing any existing entry with the same id.
	Put(ctx context.Context, entry *CacheEntry) error

	// Delete removes an entry. Deleting an absent entry is not an error.
	Delete(ctx context.Context, category, id string) error

	// List returns all entries of a category, in no particular order.
	List(ctx context.Context, category string) ([]*CacheEntry, error)

	// Categories returns every category the tier currently holds.
	Categories(ctx context.Context) ([]string, error)

	// Stats returns tier statistics.
	Stats() TierStats

	// Close releases tier resources. The tier must not be used afterwards.
	Close() error
}

// Fetcher is the upstream collaborator contract: it knows how to retrieve an
// artifact from its source locator. The cache layer never fetches on its own;
// route handlers invoke the fetcher only after a cache miss.
type Fetcher interface {
	Fetch(ctx context.Context, sourceLocator string) ([]byte, error)
}

// FetcherFunc adapts a plain function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, sourceLocator string) ([]byte, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, sourceLocator string) ([]byte, error) {
	return f(ctx, sourceLocator)
}
