/*
Package cache provides the bounded, durable, time-expiring artifact cache
behind the dashboard's data feeds.

Artifacts fetched from upstream providers (images and similar payloads) are
grouped by category, bounded per category, and expire max_age after they
were cached. Storage is a three-tier fallback chain:

	┌─────────────────────────────────────────────┐
	│             ArtifactCache                   │
	│  ┌───────────────────────────────────────┐  │
	│  │           Volatile tier               │  │
	│  │   in-process memory, lost on restart  │  │
	│  │   the one synchronous write guarantee │  │
	│  └───────────────────────────────────────┘  │
	│                     │                       │
	│  ┌───────────────────────────────────────┐  │
	│  │           Durable tier                │  │
	│  │   embedded LevelDB, survives restart  │  │
	│  │   writes can fail, guarded by breaker │  │
	│  └───────────────────────────────────────┘  │
	│                     │                       │
	│  ┌───────────────────────────────────────┐  │
	│  │           Degraded tier               │  │
	│  │   flat file, metadata-only records    │  │
	│  │   strict per-item size limit          │  │
	│  └───────────────────────────────────────┘  │
	└─────────────────────────────────────────────┘

Reads walk the chain top down and promote a full-fidelity find back into the
volatile tier. Writes go through the volatile tier synchronously, then
attempt the durable tier; only if that fails is a reduced-fidelity record
written to the degraded tier. A failure in any non-volatile tier is logged
and counted but never fails the operation.

Expired entries are removed lazily: on encounter during a read, and by an
opportunistic sweep that piggybacks on the get/put hot path instead of a
background timer.

Capacity is bounded per category: after each put, if a category's live count
exceeds its limit, the oldest entries (ties broken by id) are deleted from
all tiers until it fits.

Non-volatile tier operations run under a bounded timeout and a circuit
breaker; a tier that keeps failing is skipped until its cooldown elapses, so
a broken disk never stalls the request path.
*/
package cache
