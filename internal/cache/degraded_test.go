package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/orbitdash/orbitdash/pkg/cacheerr"
	"github.com/orbitdash/orbitdash/pkg/types"
)

func openTestDegraded(t *testing.T, path string, maxItemBytes int) *DegradedTier {
	t.Helper()
	tier, err := OpenDegradedTier(path, maxItemBytes)
	if err != nil {
		t.Fatalf("failed to open degraded tier: %v", err)
	}
	return tier
}

func TestDegradedTier_StoresMetadataOnly(t *testing.T) {
	tier := openTestDegraded(t, filepath.Join(t.TempDir(), "degraded.json"), 4096)
	defer tier.Close()
	ctx := context.Background()

	entry := testEntry("telemetry", "pass-001", []byte("a large payload"))
	if err := tier.Put(ctx, entry); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	got, err := tier.Get(ctx, "telemetry", "pass-001")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Payload != nil {
		t.Errorf("expected payload dropped, got %d bytes", len(got.Payload))
	}
	if got.Fidelity != types.FidelityMetadata {
		t.Errorf("expected metadata fidelity, got %v", got.Fidelity)
	}
	if got.SourceLocator != entry.SourceLocator {
		t.Errorf("identifying fields must survive: %q", got.SourceLocator)
	}
}

func TestDegradedTier_RejectsOversizedRecords(t *testing.T) {
	tier := openTestDegraded(t, filepath.Join(t.TempDir(), "degraded.json"), 64)
	defer tier.Close()
	ctx := context.Background()

	// The size limit applies to the stripped record, so a huge payload alone
	// is not enough to trip it.
	big := testEntry("telemetry", "pass-001", make([]byte, 1<<20))
	if err := tier.Put(ctx, big); err != nil {
		t.Fatalf("payload must not count against the limit: %v", err)
	}

	bloated := testEntry("telemetry", "pass-002", nil)
	for i := 0; i < 32; i++ {
		bloated.Metadata[string(rune('a'+i))] = "padding-padding-padding"
	}
	if err := tier.Put(ctx, bloated); !errors.Is(err, cacheerr.ErrEntryTooLarge) {
		t.Fatalf("expected ErrEntryTooLarge, got %v", err)
	}
	if _, err := tier.Get(ctx, "telemetry", "pass-002"); !errors.Is(err, cacheerr.ErrNotFound) {
		t.Fatalf("rejected record must not be stored, got %v", err)
	}
}

func TestDegradedTier_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "degraded.json")
	ctx := context.Background()

	tier := openTestDegraded(t, path, 4096)
	tier.Put(ctx, testEntry("telemetry", "pass-001", []byte("x")))
	if err := tier.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	reopened := openTestDegraded(t, path, 4096)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "telemetry", "pass-001")
	if err != nil {
		t.Fatalf("get after reopen failed: %v", err)
	}
	if got.ID != "pass-001" {
		t.Errorf("unexpected entry after reopen: %+v", got)
	}
}

func TestDegradedTier_CorruptFileIsAbandoned(t *testing.T) {
	path := filepath.Join(t.TempDir(), "degraded.json")
	writeFile(t, path, "{not json")

	tier, err := OpenDegradedTier(path, 4096)
	if err != nil {
		t.Fatalf("corrupt record file must not be fatal: %v", err)
	}
	defer tier.Close()

	if stats := tier.Stats(); stats.Entries != 0 {
		t.Errorf("expected empty tier after abandoning corrupt file, got %d entries", stats.Entries)
	}
}

func TestDegradedTier_DeleteAndList(t *testing.T) {
	tier := openTestDegraded(t, filepath.Join(t.TempDir(), "degraded.json"), 4096)
	defer tier.Close()
	ctx := context.Background()

	tier.Put(ctx, testEntry("telemetry", "pass-001", nil))
	tier.Put(ctx, testEntry("telemetry", "pass-002", nil))

	if err := tier.Delete(ctx, "telemetry", "pass-001"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	entries, err := tier.List(ctx, "telemetry")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "pass-002" {
		t.Errorf("unexpected entries after delete: %+v", entries)
	}
}
