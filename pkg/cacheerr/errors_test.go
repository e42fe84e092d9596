package cacheerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestTierWrapping(t *testing.T) {
	underlying := errors.New("disk full")
	err := Tier("durable", "put", underlying)

	if !errors.Is(err, underlying) {
		t.Error("wrapped error must satisfy errors.Is for the cause")
	}

	var tierErr *TierError
	if !errors.As(err, &tierErr) {
		t.Fatal("expected *TierError")
	}
	if tierErr.Tier != "durable" || tierErr.Op != "put" {
		t.Errorf("unexpected context: %+v", tierErr)
	}
	if got := err.Error(); got != "tier durable: put: disk full" {
		t.Errorf("unexpected message: %q", got)
	}
}

func TestTierNilPassthrough(t *testing.T) {
	if err := Tier("durable", "put", nil); err != nil {
		t.Errorf("expected nil for nil cause, got %v", err)
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"not found", ErrNotFound, true},
		{"expired", ErrExpired, true},
		{"wrapped not found", fmt.Errorf("get: %w", ErrNotFound), true},
		{"tier-wrapped expired", Tier("durable", "get", ErrExpired), true},
		{"unavailable", ErrTierUnavailable, false},
		{"too large", ErrEntryTooLarge, false},
		{"closed", ErrClosed, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFound(tt.err); got != tt.want {
				t.Errorf("IsNotFound(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
