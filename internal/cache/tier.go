package cache

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/personacache/personacache/internal/config"
	"github.com/personacache/personacache/internal/store"
	"github.com/personacache/personacache/pkg/errors"
	"github.com/personacache/personacache/pkg/types"
)

// InvalidationFilter selects the entries an Invalidate call removes. Zero
// fields are absent; at least one must be set.
type InvalidationFilter struct {
	Key         string
	PartitionID string
	Category    types.Category
}

func (f InvalidationFilter) empty() bool {
	return f.Key == "" && f.PartitionID == "" && f.Category == ""
}

// invalidator is implemented by tiers that support scoped invalidation.
// Tiers without it are skipped with a debug log.
type invalidator interface {
	Invalidate(ctx context.Context, filter InvalidationFilter) (int, error)
}

type storeKey struct {
	partition string
	category  types.Category
}

// memoryTier is the fast in-process tier. It owns one Store per observed
// (partition, category) pair, created lazily on first write. It performs no
// I/O and never legitimately fails.
type memoryTier struct {
	mu     sync.RWMutex
	stores map[storeKey]*store.Store
	cache  *config.CacheConfig
	clock  types.Clock
}

func newMemoryTier(cache *config.CacheConfig, clock types.Clock) *memoryTier {
	return &memoryTier{
		stores: make(map[storeKey]*store.Store),
		cache:  cache,
		clock:  clock,
	}
}

func (t *memoryTier) ID() types.TierID { return types.TierMemory }

func (t *memoryTier) Configured() bool { return true }

func (t *memoryTier) Get(ctx context.Context, partition string, category types.Category, key string) (any, bool, error) {
	s := t.lookup(partition, category)
	if s == nil {
		return nil, false, nil
	}
	value, found := s.Get(key)
	return value, found, nil
}

func (t *memoryTier) Put(ctx context.Context, entry *types.Entry) error {
	s, err := t.storeFor(entry.PartitionID, entry.Category)
	if err != nil {
		return err
	}
	s.Put(entry.Key, entry.Value, entry.ExpiresAt)
	return nil
}

func (t *memoryTier) Remove(ctx context.Context, partition string, category types.Category, key string) (bool, error) {
	s := t.lookup(partition, category)
	if s == nil {
		return false, nil
	}
	return s.Remove(key), nil
}

// Invalidate removes entries matching the filter and returns how many were
// removed. Stores are cleared in place and remain usable.
func (t *memoryTier) Invalidate(ctx context.Context, filter InvalidationFilter) (int, error) {
	t.mu.RLock()
	matched := make([]*store.Store, 0, len(t.stores))
	for key, s := range t.stores {
		if filter.PartitionID != "" && key.partition != filter.PartitionID {
			continue
		}
		if filter.Category != "" && key.category != filter.Category {
			continue
		}
		matched = append(matched, s)
	}
	t.mu.RUnlock()

	removed := 0
	for _, s := range matched {
		if filter.Key != "" {
			if s.Remove(filter.Key) {
				removed++
			}
			continue
		}
		removed += s.Len()
		s.Clear()
	}
	return removed, nil
}

// sweep removes expired entries from every store and reports how many were
// removed and which partitions were visited.
func (t *memoryTier) sweep(now time.Time) (removed int, partitions int) {
	visited := make(map[string]struct{})
	t.walk(func(s *store.Store) {
		removed += s.Sweep(now)
		visited[s.Partition()] = struct{}{}
	})
	return removed, len(visited)
}

// walk calls fn for every known store. The snapshot of stores is taken under
// the map lock; fn runs outside it so per-store locking stays independent.
func (t *memoryTier) walk(fn func(*store.Store)) {
	t.mu.RLock()
	snapshot := make([]*store.Store, 0, len(t.stores))
	for _, s := range t.stores {
		snapshot = append(snapshot, s)
	}
	t.mu.RUnlock()

	for _, s := range snapshot {
		fn(s)
	}
}

// occupancy totals entry counts and sizes across all stores.
func (t *memoryTier) occupancy() (entries int, sizeBytes int64) {
	t.walk(func(s *store.Store) {
		stats := s.Stats()
		entries += stats.EntryCount
		sizeBytes += stats.TotalSizeBytes
	})
	return entries, sizeBytes
}

func (t *memoryTier) lookup(partition string, category types.Category) *store.Store {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stores[storeKey{partition, category}]
}

func (t *memoryTier) storeFor(partition string, category types.Category) (*store.Store, error) {
	if s := t.lookup(partition, category); s != nil {
		return s, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	key := storeKey{partition, category}
	if s, exists := t.stores[key]; exists {
		return s, nil
	}

	s, err := store.New(partition, category, t.cache.CapacityFor(category), t.clock)
	if err != nil {
		return nil, err
	}
	t.stores[key] = s
	return s, nil
}

// unconfiguredTier stands in for a tier with no backing implementation.
// Lookups are clean misses and writes are accepted no-ops, per the
// degraded-tier policy: absence of a tier is not a failure.
type unconfiguredTier struct {
	id types.TierID
}

func (t unconfiguredTier) ID() types.TierID { return t.id }

func (t unconfiguredTier) Configured() bool { return false }

func (t unconfiguredTier) Get(ctx context.Context, partition string, category types.Category, key string) (any, bool, error) {
	return nil, false, nil
}

func (t unconfiguredTier) Put(ctx context.Context, entry *types.Entry) error { return nil }

func (t unconfiguredTier) Remove(ctx context.Context, partition string, category types.Category, key string) (bool, error) {
	return false, nil
}

// remoteTier wraps a remote-capable tier implementation with a bounded
// per-call timeout and a circuit breaker. Calls never run under any store
// lock; the orchestrator reaches remote tiers only between local operations.
type remoteTier struct {
	inner   types.Tier
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
}

type getResult struct {
	value any
	found bool
}

func newRemoteTier(inner types.Tier, tiers config.TiersConfig) *remoteTier {
	settings := gobreaker.Settings{
		Name:        string(inner.ID()) + "-tier",
		MaxRequests: tiers.Breaker.MaxRequests,
		Interval:    tiers.Breaker.Interval,
		Timeout:     tiers.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= tiers.Breaker.FailureThreshold
		},
	}

	return &remoteTier{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
		timeout: tiers.RemoteTimeout,
	}
}

func (t *remoteTier) ID() types.TierID { return t.inner.ID() }

func (t *remoteTier) Configured() bool { return t.inner.Configured() }

func (t *remoteTier) Get(ctx context.Context, partition string, category types.Category, key string) (any, bool, error) {
	result, err := t.breaker.Execute(func() (any, error) {
		callCtx, cancel := context.WithTimeout(ctx, t.timeout)
		defer cancel()

		value, found, err := t.inner.Get(callCtx, partition, category, key)
		if err != nil {
			return nil, err
		}
		return getResult{value, found}, nil
	})
	if err != nil {
		return nil, false, t.translate("get", err)
	}

	r := result.(getResult)
	return r.value, r.found, nil
}

func (t *remoteTier) Put(ctx context.Context, entry *types.Entry) error {
	_, err := t.breaker.Execute(func() (any, error) {
		callCtx, cancel := context.WithTimeout(ctx, t.timeout)
		defer cancel()
		return nil, t.inner.Put(callCtx, entry)
	})
	if err != nil {
		return t.translate("put", err)
	}
	return nil
}

func (t *remoteTier) Remove(ctx context.Context, partition string, category types.Category, key string) (bool, error) {
	result, err := t.breaker.Execute(func() (any, error) {
		callCtx, cancel := context.WithTimeout(ctx, t.timeout)
		defer cancel()

		removed, err := t.inner.Remove(callCtx, partition, category, key)
		if err != nil {
			return nil, err
		}
		return removed, nil
	})
	if err != nil {
		return false, t.translate("remove", err)
	}
	return result.(bool), nil
}

// translate maps transport failures onto the degraded-tier error taxonomy.
func (t *remoteTier) translate(operation string, err error) error {
	var code errors.ErrorCode
	switch {
	case stderrors.Is(err, gobreaker.ErrOpenState), stderrors.Is(err, gobreaker.ErrTooManyRequests):
		code = errors.ErrCodeTierUnavailable
	case stderrors.Is(err, context.DeadlineExceeded):
		code = errors.ErrCodeTierTimeout
	default:
		code = errors.ErrCodeTierFailed
	}

	return errors.Newf(code, "%s tier %s failed", t.inner.ID(), operation).
		WithComponent("registry").
		WithOperation(operation).
		WithContext("tier", t.inner.ID().String()).
		WithCause(err)
}
