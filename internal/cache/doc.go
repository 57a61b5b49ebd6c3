/*
Package cache implements the personality-partitioned cache orchestrator.

The engine coordinates an ordered hierarchy of cache tiers and keeps every
personality partition's data isolated from every other partition's. Each
partition holds independent stores per data category, so one personality's
eviction pressure or invalidation never disturbs another's.

# Architecture

	┌─────────────────────────────────────────────┐
	│              Application                    │
	│     (assistant request handling)            │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│              Cache Engine                   │  ← This Package
	│   Get / Put / Invalidate / Warm / Optimize  │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│           Ordered Tier Registry             │
	│  ┌─────────────────────────────────────────┐│
	│  │           Memory Tier                   ││
	│  │   per-(partition, category) LRU stores  ││
	│  │   in-process, always configured         ││
	│  └─────────────────────────────────────────┘│
	│  ┌─────────────────────────────────────────┐│
	│  │           Shared Tier                   ││
	│  │   extension point, breaker + timeout    ││
	│  └─────────────────────────────────────────┘│
	│  ┌─────────────────────────────────────────┐│
	│  │           Durable Tier                  ││
	│  │   extension point, breaker + timeout    ││
	│  └─────────────────────────────────────────┘│
	└─────────────────────────────────────────────┘

# Lookup and Promotion

Get walks the requested tiers in order and returns the first hit. A hit at a
slower tier is promoted into every strictly faster configured tier with a
fresh category-default TTL, so a subsequent lookup is served from the fastest
tier. A value found nowhere counts as a miss at every tier that was checked.

# Degraded Operation

A tier that is not configured answers lookups with clean misses and accepts
writes as no-ops. A configured remote tier that fails or times out degrades
the same way: the failure is logged and counted, the lookup falls through to
the next tier, and the caller never sees the error. Only the in-process
memory tier can fail a write.

# Background Work

The warming scheduler periodically seeds each rostered partition's hot data
(personality profiles, common responses, pinned knowledge chunks) through the
normal write path, then hands off to the janitor, which sweeps expired
entries and refreshes metric gauges. Both also run on demand via Warm and
Optimize.
*/
package cache
