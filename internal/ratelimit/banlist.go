package ratelimit

import (
	"sync"
	"time"
)

// violation tracks the quota-violation history of one identity.
type violation struct {
	count  int
	lastAt time.Time
}

// BanRegistry tracks repeated violations per identity and computes ban
// status. A ban is active while the violation count has reached the
// threshold and the last violation is younger than the ban duration; each
// further violation (or request while banned) refreshes the last-violation
// time, so the ban slides rather than counting down from the first offense.
type BanRegistry struct {
	mu        sync.Mutex
	entries   map[string]*violation
	threshold int
	duration  time.Duration
	retention time.Duration
}

// NewBanRegistry creates a registry. Entries older than retention are
// purged regardless of ban state.
func NewBanRegistry(threshold int, duration, retention time.Duration) *BanRegistry {
	if threshold <= 0 {
		threshold = 5
	}
	if duration <= 0 {
		duration = 10 * time.Minute
	}
	if retention < duration {
		retention = time.Hour
	}
	return &BanRegistry{
		entries:   make(map[string]*violation),
		threshold: threshold,
		duration:  duration,
		retention: retention,
	}
}

// RecordViolation registers one violation and reports the new count and
// whether the identity is banned as of this violation.
func (r *BanRegistry) RecordViolation(identity string, now time.Time) (count int, banned bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.entries[identity]
	if !ok {
		v = &violation{}
		r.entries[identity] = v
	}
	v.count++
	v.lastAt = now
	return v.count, v.count >= r.threshold
}

// Status reports whether the identity is currently banned and, if so, how
// long until the ban lapses absent further violations.
func (r *BanRegistry) Status(identity string, now time.Time) (banned bool, remaining time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.entries[identity]
	if !ok || v.count < r.threshold {
		return false, 0
	}
	remaining = r.duration - now.Sub(v.lastAt)
	if remaining <= 0 {
		return false, 0
	}
	return true, remaining
}

// Refresh extends an active ban by moving the last-violation time to now.
// Requests issued while banned restart the clock instead of waiting it out.
func (r *BanRegistry) Refresh(identity string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.entries[identity]; ok && v.count >= r.threshold {
		v.lastAt = now
	}
}

// Purge removes entries whose last violation is older than the retention
// horizon and returns how many were removed.
func (r *BanRegistry) Purge(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for identity, v := range r.entries {
		if now.Sub(v.lastAt) >= r.retention {
			delete(r.entries, identity)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked identities.
func (r *BanRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
