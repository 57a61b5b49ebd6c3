package types

import (
	"encoding"
	"fmt"
	"time"
)

// Category classifies the purpose of cached data within a partition.
// The set is closed: values outside it are rejected at the engine boundary
// so a typo can never create a new store.
type Category string

const (
	CategoryPersonalityData Category = "personality_data"
	CategoryResponseCache   Category = "response_cache"
	CategoryKnowledgeBase   Category = "knowledge_base"
	CategoryUserPreferences Category = "user_preferences"
	CategoryAnalyticsData   Category = "analytics_data"
)

// Categories returns every valid category in a stable order.
func Categories() []Category {
	return []Category{
		CategoryPersonalityData,
		CategoryResponseCache,
		CategoryKnowledgeBase,
		CategoryUserPreferences,
		CategoryAnalyticsData,
	}
}

// Valid reports whether c is a member of the closed category set.
func (c Category) Valid() bool {
	switch c {
	case CategoryPersonalityData, CategoryResponseCache, CategoryKnowledgeBase,
		CategoryUserPreferences, CategoryAnalyticsData:
		return true
	}
	return false
}

// String returns the wire/config name of the category.
func (c Category) String() string { return string(c) }

// ParseCategory converts a config string into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("invalid category: %q", s)
	}
	return c, nil
}

// TierID identifies one level of the cache hierarchy, ordered fastest first.
type TierID string

const (
	// TierMemory is the in-process tier. It is always present and is the
	// only tier that can fail a Put fatally.
	TierMemory TierID = "memory"
	// TierShared is a slower process-shared tier. Extension point; has no
	// backing implementation by default.
	TierShared TierID = "shared"
	// TierDurable is the slowest, durable tier. Extension point; has no
	// backing implementation by default.
	TierDurable TierID = "durable"
)

// Tiers returns every known tier in default lookup order, fastest first.
func Tiers() []TierID {
	return []TierID{TierMemory, TierShared, TierDurable}
}

// Valid reports whether t is a known tier.
func (t TierID) Valid() bool {
	switch t {
	case TierMemory, TierShared, TierDurable:
		return true
	}
	return false
}

// String returns the wire/config name of the tier.
func (t TierID) String() string { return string(t) }

// ParseTier converts a config string into a TierID.
func ParseTier(s string) (TierID, error) {
	t := TierID(s)
	if !t.Valid() {
		return "", fmt.Errorf("invalid tier: %q", s)
	}
	return t, nil
}

// Entry is a single cached record. The value is immutable after write; the
// access-tracking fields are updated by the owning store on every read.
type Entry struct {
	Key            string    `json:"key"`
	Value          any       `json:"-"`
	PartitionID    string    `json:"partition_id"`
	Category       Category  `json:"category"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	AccessCount    int64     `json:"access_count"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	SizeBytes      int64     `json:"size_bytes"`
}

// Expired reports whether the entry's TTL window has passed at the given time.
func (e *Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// StoreStats is a point-in-time snapshot of one (partition, category) store.
type StoreStats struct {
	EntryCount     int   `json:"entry_count"`
	TotalSizeBytes int64 `json:"total_size_bytes"`
	TotalAccesses  int64 `json:"total_accesses"`
}

// TierStats aggregates hit/miss and occupancy figures for one tier.
type TierStats struct {
	Tier       TierID  `json:"tier"`
	Hits       uint64  `json:"hits"`
	Misses     uint64  `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
	EntryCount int     `json:"entry_count"`
	SizeBytes  int64   `json:"size_bytes"`
}

// WarmingConfig controls the warming scheduler.
type WarmingConfig struct {
	Enabled       bool          `yaml:"enabled"`
	WarmOnStartup bool          `yaml:"warm_on_startup"`
	StartupDelay  time.Duration `yaml:"startup_delay"`
	Interval      time.Duration `yaml:"interval"`
	Partitions    []string      `yaml:"partitions"`
	PreloadCount  int           `yaml:"preload_count"`
}

// EstimateSize returns a rough serialized-size estimate for an opaque cached
// value. It feeds the reporting-only SizeBytes field and is never used for
// eviction decisions.
func EstimateSize(v any) int64 {
	switch val := v.(type) {
	case nil:
		return 0
	case []byte:
		return int64(len(val))
	case string:
		return int64(len(val))
	case bool:
		return 1
	case int, int32, int64, uint, uint32, uint64, float32, float64:
		return 8
	case map[string]string:
		var n int64
		for k, s := range val {
			n += int64(len(k) + len(s))
		}
		return n
	case map[string]any:
		var n int64
		for k, item := range val {
			n += int64(len(k)) + EstimateSize(item)
		}
		return n
	case []string:
		var n int64
		for _, s := range val {
			n += int64(len(s))
		}
		return n
	case []any:
		var n int64
		for _, item := range val {
			n += EstimateSize(item)
		}
		return n
	case encoding.BinaryMarshaler:
		if b, err := val.MarshalBinary(); err == nil {
			return int64(len(b))
		}
		return int64(len(fmt.Sprint(v)))
	default:
		return int64(len(fmt.Sprint(v)))
	}
}
