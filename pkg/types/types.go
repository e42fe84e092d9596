package types

import (
	"math"
	"time"
)

// Fidelity indicates how much of an artifact a tier was able to retain.
type Fidelity int

const (
	// FidelityFull means the entry carries the complete fetched payload.
	FidelityFull Fidelity = iota

	// FidelityMetadata means only identifying fields survived; the payload
	// must be refetched from the source locator.
	FidelityMetadata
)

// String returns the string representation of a fidelity level
func (f Fidelity) String() string {
	switch f {
	case FidelityFull:
		return "full"
	case FidelityMetadata:
		return "metadata"
	default:
		return "unknown"
	}
}

// CacheEntry represents one cached artifact. Entries are immutable after
// creation except for tier migration; a refreshed fetch creates a new entry.
type CacheEntry struct {
	ID            string            `json:"id"`
	SourceLocator string            `json:"source_locator"`
	Category      string            `json:"category"`
	CachedAt      time.Time         `json:"cached_at"`
	ExpiresAt     time.Time         `json:"expires_at"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Payload       []byte            `json:"payload,omitempty"`
	Fidelity      Fidelity          `json:"fidelity"`
}

// Live reports whether the entry has not yet expired at the given instant.
func (e *CacheEntry) Live(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// Clone returns a deep copy so callers cannot mutate tier-owned state.
func (e *CacheEntry) Clone() *CacheEntry {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Metadata != nil {
		clone.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			clone.Metadata[k] = v
		}
	}
	if e.Payload != nil {
		clone.Payload = make([]byte, len(e.Payload))
		copy(clone.Payload, e.Payload)
	}
	return &clone
}

// Stripped returns a metadata-only copy suitable for a tier that enforces
// strict per-item size limits. The payload is dropped; identifying fields
// are kept so a later read can report "previously seen".
func (e *CacheEntry) Stripped() *CacheEntry {
	clone := e.Clone()
	clone.Payload = nil
	clone.Fidelity = FidelityMetadata
	return clone
}

// TierStats represents per-tier cache statistics
type TierStats struct {
	Tier      string `json:"tier"`
	Entries   int    `json:"entries"`
	Bytes     int64  `json:"bytes"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Errors    uint64 `json:"errors"`
	Available bool   `json:"available"`
}

// CacheStats represents combined cache performance statistics
type CacheStats struct {
	Hits        uint64      `json:"hits"`
	Misses      uint64      `json:"misses"`
	Evictions   uint64      `json:"evictions"`
	Expirations uint64      `json:"expirations"`
	HitRate     float64     `json:"hit_rate"`
	Tiers       []TierStats `json:"tiers"`
}

// Decision is the outcome of an admission check.
type Decision int

const (
	// DecisionAllow admits the request.
	DecisionAllow Decision = iota

	// DecisionDeny rejects the request for the remainder of the current window.
	DecisionDeny

	// DecisionBan rejects the request because the identity is temporarily banned.
	DecisionBan
)

// String returns the string representation of a decision
func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionDeny:
		return "deny"
	case DecisionBan:
		return "ban"
	default:
		return "unknown"
	}
}

// AdmitResult carries an admission decision plus the quota figures the
// transport layer translates into client-visible headers.
type AdmitResult struct {
	Decision   Decision      `json:"decision"`
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	ResetAt    time.Time     `json:"reset_at"`
	RetryAfter time.Duration `json:"retry_after"`
}

// Allowed reports whether the request may proceed.
func (r AdmitResult) Allowed() bool {
	return r.Decision == DecisionAllow
}

// RetryAfterSeconds returns the retry-after figure rounded up to whole
// seconds, never less than 1 for a rejected request.
func (r AdmitResult) RetryAfterSeconds() int {
	if r.Decision == DecisionAllow {
		return 0
	}
	secs := int(math.Ceil(r.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}
