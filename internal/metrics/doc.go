/*
Package metrics provides hit/miss accounting and Prometheus export for the
cache engine.

The Aggregator is the engine's source of truth for per-(partition, category,
tier) counters. Records are created lazily on first use and never deleted;
the derived hit rate is defined as 0 when no requests have been seen, so it
is never NaN. Latency uses an exponential moving average so the figure
converges toward recent behavior rather than the lifetime mean.

Miss accounting follows the hierarchy semantics: a lookup that misses every
requested tier records a miss at each of those tiers, because the value was
checked for, and absent, at all of them. A hit records only at the tier that
served it.

The Exporter mirrors the aggregator into Prometheus:

	personacache_requests_total{partition,category,tier,result}
	personacache_request_duration_seconds{tier}
	personacache_tier_failures_total{tier,operation,reason}
	personacache_entries{partition,category}
	personacache_size_bytes{partition,category}
	personacache_hit_rate{partition,category,tier}

Counters and the latency histogram are written inline by the engine; the
occupancy gauges and hit-rate gauge are recomputed by the janitor on each
cleanup pass. When disabled the exporter is a no-op and serves nothing.
*/
package metrics
