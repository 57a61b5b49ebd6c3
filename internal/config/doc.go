/*
Package config provides configuration management for the personacache engine.

Configuration is resolved from three sources with increasing precedence:
compiled-in defaults, a YAML file, and PERSONACACHE_* environment variables.
Validate catches invalid values (non-positive capacities or TTLs, unknown
categories or tiers, a tier order that does not start with the memory tier)
before any store is built, returning structured configuration errors.

Capacities and TTLs are keyed per category; categories without an explicit
entry use the defaults. The tier order is the engine's lookup order, fastest
first; the memory tier must come first because it is the only tier whose
failure is fatal to a write.

Environment overrides:

	PERSONACACHE_LOG_LEVEL          log level (DEBUG, INFO, WARN, ERROR)
	PERSONACACHE_DEFAULT_CAPACITY   default per-store entry capacity
	PERSONACACHE_DEFAULT_TTL        default TTL (Go duration string)
	PERSONACACHE_WARMING_ENABLED    enable the warming scheduler
	PERSONACACHE_WARMING_INTERVAL   interval between warming runs
	PERSONACACHE_WARMING_PARTITIONS comma-separated partition roster
	PERSONACACHE_METRICS_ENABLED    enable the Prometheus exporter
	PERSONACACHE_METRICS_PORT       exporter HTTP port
*/
package config
