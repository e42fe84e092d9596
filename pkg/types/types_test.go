package types

import (
	"testing"
	"time"
)

func sampleEntry() *CacheEntry {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &CacheEntry{
		ID:            "pass-001",
		SourceLocator: "https://data.example.com/passes/1",
		Category:      "telemetry",
		CachedAt:      now,
		ExpiresAt:     now.Add(time.Hour),
		Metadata:      map[string]string{"sat": "iss"},
		Payload:       []byte(`{"alt_km":417}`),
		Fidelity:      FidelityFull,
	}
}

func TestCacheEntryLive(t *testing.T) {
	entry := sampleEntry()

	if !entry.Live(entry.CachedAt) {
		t.Error("entry must be live at creation time")
	}
	if !entry.Live(entry.ExpiresAt.Add(-time.Nanosecond)) {
		t.Error("entry must be live just before expiry")
	}
	if entry.Live(entry.ExpiresAt) {
		t.Error("entry must be dead exactly at expiry")
	}
	if entry.Live(entry.ExpiresAt.Add(time.Hour)) {
		t.Error("entry must be dead after expiry")
	}
}

func TestCacheEntryClone(t *testing.T) {
	entry := sampleEntry()
	clone := entry.Clone()

	clone.Metadata["sat"] = "hubble"
	clone.Payload[0] = 'X'

	if entry.Metadata["sat"] != "iss" {
		t.Error("clone shares metadata map with original")
	}
	if entry.Payload[0] != '{' {
		t.Error("clone shares payload slice with original")
	}

	var nilEntry *CacheEntry
	if nilEntry.Clone() != nil {
		t.Error("cloning nil must return nil")
	}
}

func TestCacheEntryStripped(t *testing.T) {
	entry := sampleEntry()
	stripped := entry.Stripped()

	if stripped.Payload != nil {
		t.Error("stripped entry must not carry a payload")
	}
	if stripped.Fidelity != FidelityMetadata {
		t.Errorf("expected metadata fidelity, got %v", stripped.Fidelity)
	}
	if stripped.ID != entry.ID || stripped.SourceLocator != entry.SourceLocator {
		t.Error("stripped entry must keep identifying fields")
	}
	if entry.Payload == nil || entry.Fidelity != FidelityFull {
		t.Error("stripping must not mutate the original")
	}
}

func TestDecisionString(t *testing.T) {
	tests := []struct {
		decision Decision
		want     string
	}{
		{DecisionAllow, "allow"},
		{DecisionDeny, "deny"},
		{DecisionBan, "ban"},
		{Decision(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.decision.String(); got != tt.want {
			t.Errorf("Decision(%d).String() = %q, want %q", tt.decision, got, tt.want)
		}
	}
}

func TestFidelityString(t *testing.T) {
	if FidelityFull.String() != "full" || FidelityMetadata.String() != "metadata" {
		t.Error("unexpected fidelity names")
	}
	if Fidelity(99).String() != "unknown" {
		t.Error("unexpected name for unknown fidelity")
	}
}

func TestAdmitResultRetryAfterSeconds(t *testing.T) {
	tests := []struct {
		name   string
		result AdmitResult
		want   int
	}{
		{
			name:   "allow is zero",
			result: AdmitResult{Decision: DecisionAllow, RetryAfter: 30 * time.Second},
			want:   0,
		},
		{
			name:   "deny rounds up",
			result: AdmitResult{Decision: DecisionDeny, RetryAfter: 56500 * time.Millisecond},
			want:   57,
		},
		{
			name:   "whole seconds unchanged",
			result: AdmitResult{Decision: DecisionDeny, RetryAfter: 57 * time.Second},
			want:   57,
		},
		{
			name:   "sub-second floor is one",
			result: AdmitResult{Decision: DecisionDeny, RetryAfter: 10 * time.Millisecond},
			want:   1,
		},
		{
			name:   "ban uses full duration",
			result: AdmitResult{Decision: DecisionBan, RetryAfter: 10 * time.Minute},
			want:   600,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.RetryAfterSeconds(); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestAdmitResultAllowed(t *testing.T) {
	if !(AdmitResult{Decision: DecisionAllow}).Allowed() {
		t.Error("allow must report allowed")
	}
	if (AdmitResult{Decision: DecisionDeny}).Allowed() {
		t.Error("deny must not report allowed")
	}
	if (AdmitResult{Decision: DecisionBan}).Allowed() {
		t.Error("ban must not report allowed")
	}
}
