package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/personacache/personacache/internal/config"
	"github.com/personacache/personacache/internal/metrics"
	"github.com/personacache/personacache/pkg/errors"
	"github.com/personacache/personacache/pkg/health"
	"github.com/personacache/personacache/pkg/types"
	"github.com/personacache/personacache/pkg/utils"
)

// Engine is the cache orchestrator. It owns the ordered tier registry, the
// metrics aggregator, the warming scheduler, and the janitor, and exposes the
// lookup, write, invalidation, and maintenance operations callers use.
//
// All methods are safe for concurrent use. The engine holds no lock of its
// own during tier calls; each tier synchronizes independently.
type Engine struct {
	cfg      *config.Configuration
	clock    types.Clock
	logger   *slog.Logger
	order    []types.TierID
	tiers    map[types.TierID]types.Tier
	memory   *memoryTier
	agg      *metrics.Aggregator
	exporter *metrics.Exporter
	tracker  *health.Tracker
	janitor  *janitor
	warmer   *Scheduler

	mu      sync.Mutex
	started bool
}

type engineOptions struct {
	clock    types.Clock
	logger   *slog.Logger
	shared   types.Tier
	durable  types.Tier
	exporter *metrics.Exporter
}

// Option configures an Engine at construction time.
type Option func(*engineOptions)

// WithClock substitutes the time source, mainly for tests.
func WithClock(clock types.Clock) Option {
	return func(o *engineOptions) { o.clock = clock }
}

// WithLogger sets the base logger the engine derives component loggers from.
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) { o.logger = logger }
}

// WithSharedTier installs a backing implementation for the shared tier. It is
// wrapped with the configured timeout and circuit breaker. Without this
// option the shared tier is unconfigured and reads through it are clean
// misses.
func WithSharedTier(tier types.Tier) Option {
	return func(o *engineOptions) { o.shared = tier }
}

// WithDurableTier installs a backing implementation for the durable tier,
// wrapped the same way as the shared tier.
func WithDurableTier(tier types.Tier) Option {
	return func(o *engineOptions) { o.durable = tier }
}

// WithExporter substitutes the Prometheus exporter, mainly for tests that
// assert on a private registry.
func WithExporter(exporter *metrics.Exporter) Option {
	return func(o *engineOptions) { o.exporter = exporter }
}

// New creates an engine from the configuration. A nil configuration uses
// defaults. Configuration problems are fatal here; nothing degrades past an
// invalid config.
func New(cfg *config.Configuration, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.NewDefault()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := engineOptions{
		clock: types.SystemClock(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = utils.NewLogger(cfg.Global.LogLevel, nil)
	}

	order, err := cfg.TierOrder()
	if err != nil {
		return nil, err
	}

	exporter := options.exporter
	if exporter == nil {
		exporter, err = metrics.NewExporter(&metrics.Config{
			Enabled:   cfg.Metrics.Enabled,
			Port:      cfg.Metrics.Port,
			Path:      cfg.Metrics.Path,
			Namespace: cfg.Metrics.Namespace,
		})
		if err != nil {
			return nil, err
		}
	}

	memory := newMemoryTier(&cfg.Cache, options.clock)
	tiers := map[types.TierID]types.Tier{
		types.TierMemory: memory,
	}
	for _, id := range []types.TierID{types.TierShared, types.TierDurable} {
		var backing types.Tier
		switch id {
		case types.TierShared:
			backing = options.shared
		case types.TierDurable:
			backing = options.durable
		}
		if backing == nil {
			tiers[id] = unconfiguredTier{id: id}
			continue
		}
		tiers[id] = newRemoteTier(backing, cfg.Cache.Tiers)
	}

	e := &Engine{
		cfg:      cfg,
		clock:    options.clock,
		logger:   options.logger.With("component", "cache-engine"),
		order:    order,
		tiers:    tiers,
		memory:   memory,
		agg:      metrics.NewAggregator(options.clock),
		exporter: exporter,
		tracker:  health.NewTracker(health.DefaultConfig()),
	}
	for _, id := range order {
		e.tracker.Register(id.String())
	}
	e.janitor = newJanitor(memory, e.agg, exporter, options.clock, options.logger)
	e.warmer = newScheduler(e, cfg.Warming, options.logger)

	e.logger.Info("cache engine created",
		"tiers", len(order),
		"warming_enabled", cfg.Warming.Enabled,
		"metrics_enabled", cfg.Metrics.Enabled)

	return e, nil
}

// Start brings up the background components: the metrics endpoint when
// enabled, and the warming scheduler when enabled. Calling Start twice is an
// error.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return errors.NewError(errors.ErrCodeAlreadyStarted, "cache engine already started").
			WithComponent("cache-engine")
	}

	if err := e.exporter.Start(ctx); err != nil {
		return err
	}
	if e.cfg.Warming.Enabled {
		e.warmer.Start(ctx)
	}

	e.started = true
	e.logger.Info("cache engine started")
	return nil
}

// Stop shuts down the warming scheduler and the metrics endpoint. It waits
// for any in-flight warming cycle to finish.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started {
		return nil
	}

	e.warmer.Stop()
	if err := e.exporter.Stop(ctx); err != nil {
		return err
	}

	e.started = false
	e.logger.Info("cache engine stopped")
	return nil
}

// Get looks the key up tier by tier in the requested order and returns the
// first hit. When no tiers are named, all configured tiers are consulted in
// registry order. A hit below the fastest tier is promoted into every faster
// tier with a fresh category-default TTL. Tier failures degrade to misses at
// that tier; they are recorded, not surfaced.
func (e *Engine) Get(ctx context.Context, partition string, category types.Category, key string, tierIDs ...types.TierID) (any, bool) {
	if partition == "" || key == "" || !category.Valid() {
		e.logger.Warn("rejected lookup with invalid coordinates",
			"partition", partition, "category", string(category), "key", key)
		return nil, false
	}

	plan, err := e.resolve(tierIDs)
	if err != nil {
		e.logger.Warn("rejected lookup with unknown tier", "error", err)
		return nil, false
	}

	start := e.clock.Now()
	checked := make([]types.TierID, 0, len(plan))

	for _, id := range plan {
		tier := e.tiers[id]
		checked = append(checked, id)

		value, found, err := tier.Get(ctx, partition, category, key)
		if err != nil {
			e.degrade(id, "get", partition, category, err)
			continue
		}
		if id != types.TierMemory && tier.Configured() {
			e.tracker.RecordSuccess(id.String())
		}
		if !found {
			continue
		}

		latency := e.clock.Now().Sub(start)
		e.agg.RecordHit(partition, category, id, latency)
		e.exporter.ObserveRequest(partition, category, id, "hit", latency)
		if id != e.order[0] {
			e.promote(ctx, partition, category, key, value, id)
		}
		return value, true
	}

	latency := e.clock.Now().Sub(start)
	e.agg.RecordMiss(partition, category, checked, latency)
	for _, id := range checked {
		e.exporter.ObserveRequest(partition, category, id, "miss", latency)
	}
	return nil, false
}

// Put writes the value with the given TTL. When no tiers are named, only the
// fastest tier is written. The fastest in-process tier is the only one whose
// failure fails the call; failures at remote tiers are logged and recorded as
// degraded operation.
func (e *Engine) Put(ctx context.Context, partition string, category types.Category, key string, value any, ttl time.Duration, tierIDs ...types.TierID) error {
	if partition == "" {
		return errors.NewError(errors.ErrCodeValidationFailed, "partition id must not be empty").
			WithComponent("cache-engine").WithOperation("put")
	}
	if key == "" {
		return errors.NewError(errors.ErrCodeValidationFailed, "key must not be empty").
			WithComponent("cache-engine").WithOperation("put")
	}
	if !category.Valid() {
		return errors.Newf(errors.ErrCodeValidationFailed, "unknown category %q", string(category)).
			WithComponent("cache-engine").WithOperation("put")
	}
	if ttl <= 0 {
		return errors.Newf(errors.ErrCodeInvalidTTL, "ttl must be positive, got %v", ttl).
			WithComponent("cache-engine").WithOperation("put")
	}

	plan := tierIDs
	if len(plan) == 0 {
		plan = e.order[:1]
	}
	plan, err := e.resolve(plan)
	if err != nil {
		return err
	}

	now := e.clock.Now()
	entry := &types.Entry{
		Key:            key,
		Value:          value,
		PartitionID:    partition,
		Category:       category,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
		LastAccessedAt: now,
		SizeBytes:      types.EstimateSize(value),
	}

	for _, id := range plan {
		tier := e.tiers[id]
		if !tier.Configured() {
			e.logger.Debug("skipping write to unconfigured tier", "tier", id.String(), "key", key)
			continue
		}

		if err := tier.Put(ctx, entry); err != nil {
			if id == types.TierMemory {
				return err
			}
			e.degrade(id, "put", partition, category, err)
			continue
		}
		if id != types.TierMemory {
			e.tracker.RecordSuccess(id.String())
		}
	}
	return nil
}

// Invalidate removes entries matching the filter from every tier that
// supports invalidation. At least one filter field must be set; an empty
// filter is a configuration error, never a flush.
func (e *Engine) Invalidate(ctx context.Context, filter InvalidationFilter) error {
	if filter.empty() {
		return errors.NewError(errors.ErrCodeMissingFilter, "invalidation requires at least one filter field").
			WithComponent("cache-engine").WithOperation("invalidate")
	}
	if filter.Category != "" && !filter.Category.Valid() {
		return errors.Newf(errors.ErrCodeValidationFailed, "unknown category %q", string(filter.Category)).
			WithComponent("cache-engine").WithOperation("invalidate")
	}

	removed := 0
	for _, id := range e.order {
		tier := e.tiers[id]
		if !tier.Configured() {
			continue
		}

		inv, ok := tier.(invalidator)
		if !ok {
			e.logger.Debug("tier does not support invalidation", "tier", id.String())
			continue
		}

		n, err := inv.Invalidate(ctx, filter)
		if err != nil {
			e.degrade(id, "invalidate", filter.PartitionID, filter.Category, err)
			continue
		}
		removed += n
	}

	e.logger.Info("invalidation complete",
		"key", filter.Key,
		"partition", filter.PartitionID,
		"category", string(filter.Category),
		"removed", removed)
	return nil
}

// Warm runs the warming pipeline for one partition immediately, outside the
// scheduler's cycle.
func (e *Engine) Warm(ctx context.Context, partition string) error {
	if partition == "" {
		return errors.NewError(errors.ErrCodeValidationFailed, "partition id must not be empty").
			WithComponent("cache-engine").WithOperation("warm")
	}
	return e.warmer.WarmPartition(ctx, partition)
}

// Optimize runs a maintenance pass synchronously: expired entries are swept
// and derived metrics gauges are recomputed.
func (e *Engine) Optimize(ctx context.Context) OptimizeReport {
	return e.janitor.run(ctx)
}

// Snapshot returns accumulated metrics filtered by partition and category;
// empty values widen the filter on that dimension.
func (e *Engine) Snapshot(partition string, category types.Category) metrics.Snapshot {
	return e.agg.Snapshot(partition, category)
}

// TierStats reports one tier's accumulated hit/miss totals plus, for the
// in-process tier, its current occupancy.
func (e *Engine) TierStats(id types.TierID) (types.TierStats, error) {
	if !id.Valid() {
		return types.TierStats{}, errors.Newf(errors.ErrCodeValidationFailed, "unknown tier %q", string(id)).
			WithComponent("cache-engine").WithOperation("stats")
	}

	hits, misses := e.agg.TierTotals(id)
	stats := types.TierStats{
		Tier:   id,
		Hits:   hits,
		Misses: misses,
	}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	if id == types.TierMemory {
		stats.EntryCount, stats.SizeBytes = e.memory.occupancy()
	}
	return stats, nil
}

// Stats reports TierStats for every tier in registry order.
func (e *Engine) Stats() []types.TierStats {
	all := make([]types.TierStats, 0, len(e.order))
	for _, id := range e.order {
		stats, _ := e.TierStats(id)
		all = append(all, stats)
	}
	return all
}

// Health reports per-tier health derived from operation outcomes.
func (e *Engine) Health() map[string]health.ComponentHealth {
	return e.tracker.Report()
}

// HealthState reports the worst state across all tiers.
func (e *Engine) HealthState() health.State {
	return e.tracker.Overall()
}

// WarmingState reports the scheduler's current state, Idle or Warming.
func (e *Engine) WarmingState() string {
	return e.warmer.State()
}

// promote copies a hit from a slower tier into every strictly faster
// configured tier with a fresh category-default TTL. Promotion failures
// degrade silently apart from logging.
func (e *Engine) promote(ctx context.Context, partition string, category types.Category, key string, value any, hitTier types.TierID) {
	now := e.clock.Now()
	entry := &types.Entry{
		Key:            key,
		Value:          value,
		PartitionID:    partition,
		Category:       category,
		CreatedAt:      now,
		ExpiresAt:      now.Add(e.cfg.Cache.TTLFor(category)),
		LastAccessedAt: now,
		SizeBytes:      types.EstimateSize(value),
	}

	for _, id := range e.order {
		if id == hitTier {
			break
		}
		tier := e.tiers[id]
		if !tier.Configured() {
			continue
		}
		if err := tier.Put(ctx, entry); err != nil {
			e.degrade(id, "promote", partition, category, err)
		}
	}
}

// resolve validates requested tier ids against the registry, or returns the
// full registry order when none are requested.
func (e *Engine) resolve(tierIDs []types.TierID) ([]types.TierID, error) {
	if len(tierIDs) == 0 {
		return e.order, nil
	}
	for _, id := range tierIDs {
		if _, known := e.tiers[id]; !known {
			return nil, errors.Newf(errors.ErrCodeValidationFailed, "unknown tier %q", string(id)).
				WithComponent("cache-engine")
		}
	}
	return tierIDs, nil
}

// degrade records a tolerated tier failure without surfacing it to callers.
func (e *Engine) degrade(id types.TierID, operation, partition string, category types.Category, err error) {
	e.logger.Warn("tier operation failed, continuing degraded",
		"tier", id.String(),
		"operation", operation,
		"partition", partition,
		"category", category.String(),
		"error", err)
	e.tracker.RecordFailure(id.String(), err)
	e.exporter.RecordTierFailure(id, operation, errors.GetCode(err))
}
