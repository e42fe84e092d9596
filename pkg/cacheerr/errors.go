// Package cacheerr provides the error taxonomy for the caching layer with
// sentinel errors and tier-scoped wrapping.
package cacheerr

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by tier stores and the artifact cache.
var (
	// ErrNotFound indicates the requested entry is absent from a tier.
	ErrNotFound = errors.New("entry not found")

	// ErrExpired indicates an entry physically exists but is past its
	// expiry and must not be served.
	ErrExpired = errors.New("entry expired")

	// ErrTierUnavailable indicates a tier could not be consulted and the
	// fallback chain should proceed.
	ErrTierUnavailable = errors.New("tier unavailable")

	// ErrEntryTooLarge indicates an entry exceeds a tier's per-item limit.
	ErrEntryTooLarge = errors.New("entry exceeds tier size limit")

	// ErrClosed indicates an operation on a closed store.
	ErrClosed = errors.New("store closed")
)

// TierError wraps an underlying failure with the tier and operation that
// produced it. Tier errors never propagate past the artifact cache; they are
// logged and counted, then degraded into a miss or a fallback.
type TierError struct {
	Tier string
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *TierError) Error() string {
	return fmt.Sprintf("tier %s: %s: %v", e.Tier, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *TierError) Unwrap() error {
	return e.Err
}

// Tier wraps err with tier and operation context. A nil err returns nil.
func Tier(tier, op string, err error) error {
	if err == nil {
		return nil
	}
	return &TierError{Tier: tier, Op: op, Err: err}
}

// IsNotFound reports whether err means the entry was simply absent, as
// opposed to the tier failing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrExpired)
}
