// Package store implements the bounded, recency-ordered store backing one
// (partition, category) pair in the memory tier.
package store

import (
	"container/list"
	"sync"
	"time"

	"github.com/personacache/personacache/pkg/errors"
	"github.com/personacache/personacache/pkg/types"
)

// Store is a thread-safe LRU store scoped to exactly one (partition,
// category) pair. Capacity is fixed at construction; inserting past it
// evicts the least-recently-used entry. Expiry is checked on read and by the
// janitor's Sweep; LRU order is maintained strictly, so eviction ties break
// toward the earliest-inserted entry.
type Store struct {
	mu        sync.RWMutex
	partition string
	category  types.Category
	capacity  int
	clock     types.Clock

	items     map[string]*item
	evictList *list.List

	totalSize     int64
	totalAccesses int64
}

// item pairs an entry with its position in the eviction list.
type item struct {
	entry   *types.Entry
	element *list.Element
}

// New creates a store for one (partition, category) pair.
func New(partition string, category types.Category, capacity int, clock types.Clock) (*Store, error) {
	if capacity <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidCapacity, "capacity %d must be positive", capacity).
			WithComponent("store").
			WithContext("partition", partition).
			WithContext("category", category.String())
	}
	if clock == nil {
		clock = types.SystemClock()
	}

	return &Store{
		partition: partition,
		category:  category,
		capacity:  capacity,
		clock:     clock,
		items:     make(map[string]*item),
		evictList: list.New(),
	}, nil
}

// Partition returns the owning partition ID.
func (s *Store) Partition() string { return s.partition }

// Category returns the owning category.
func (s *Store) Category() types.Category { return s.category }

// Capacity returns the fixed entry capacity.
func (s *Store) Capacity() int { return s.capacity }

// Get returns the value for key if present and not expired, moving it to the
// most-recently-used position. An expired entry is removed in place.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, exists := s.items[key]
	if !exists {
		return nil, false
	}

	now := s.clock.Now()
	if it.entry.Expired(now) {
		s.removeItem(key)
		return nil, false
	}

	it.entry.AccessCount++
	it.entry.LastAccessedAt = now
	s.totalAccesses++
	s.evictList.MoveToFront(it.element)

	return it.entry.Value, true
}

// Put inserts or replaces the value for key. A replaced entry keeps its
// creation stamp and access counts; a new insert at capacity evicts the
// least-recently-used entry first.
func (s *Store) Put(key string, value any, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	size := types.EstimateSize(value)

	if it, exists := s.items[key]; exists {
		s.totalSize -= it.entry.SizeBytes
		it.entry.Value = value
		it.entry.ExpiresAt = expiresAt
		it.entry.SizeBytes = size
		s.totalSize += size
		s.evictList.MoveToFront(it.element)
		return
	}

	if s.evictList.Len() >= s.capacity {
		s.evictOldest()
	}

	entry := &types.Entry{
		Key:            key,
		Value:          value,
		PartitionID:    s.partition,
		Category:       s.category,
		CreatedAt:      now,
		ExpiresAt:      expiresAt,
		LastAccessedAt: now,
		SizeBytes:      size,
	}

	element := s.evictList.PushFront(key)
	s.items[key] = &item{entry: entry, element: element}
	s.totalSize += size
}

// Remove unconditionally deletes key and reports whether anything was removed.
func (s *Store) Remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[key]; !exists {
		return false
	}
	s.removeItem(key)
	return true
}

// Clear removes all entries. The store remains usable.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[string]*item)
	s.evictList.Init()
	s.totalSize = 0
}

// Sweep removes every entry whose TTL has passed at the given time and
// returns the number removed.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []string
	for key, it := range s.items {
		if it.entry.Expired(now) {
			expired = append(expired, key)
		}
	}
	for _, key := range expired {
		s.removeItem(key)
	}
	return len(expired)
}

// Len returns the current entry count.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Keys returns all keys currently stored, in no particular order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.items))
	for key := range s.items {
		keys = append(keys, key)
	}
	return keys
}

// Contains reports whether key is present, without touching recency order or
// access counts.
func (s *Store) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[key]
	return ok
}

// Stats returns a read-only snapshot of the store.
func (s *Store) Stats() types.StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return types.StoreStats{
		EntryCount:     len(s.items),
		TotalSizeBytes: s.totalSize,
		TotalAccesses:  s.totalAccesses,
	}
}

// removeItem deletes key from the map and eviction list. Caller holds mu.
func (s *Store) removeItem(key string) {
	it, exists := s.items[key]
	if !exists {
		return
	}
	s.evictList.Remove(it.element)
	delete(s.items, key)
	s.totalSize -= it.entry.SizeBytes
}

// evictOldest drops the least-recently-used entry. Caller holds mu.
func (s *Store) evictOldest() {
	element := s.evictList.Back()
	if element == nil {
		return
	}
	s.removeItem(element.Value.(string))
}
