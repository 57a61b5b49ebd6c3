package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/personacache/personacache/pkg/types"
)

// emaAlpha weights the latency moving average toward recent samples.
const emaAlpha = 0.2

// Key identifies one metrics record.
type Key struct {
	Partition string
	Category  types.Category
	Tier      types.TierID
}

// record accumulates counters for one (partition, category, tier). Records
// are created lazily and never deleted.
type record struct {
	hits        uint64
	misses      uint64
	emaLatency  float64 // seconds
	lastUpdated time.Time
}

// TierMetrics is the exported view of one record.
type TierMetrics struct {
	Partition      string         `json:"partition"`
	Category       types.Category `json:"category"`
	Tier           types.TierID   `json:"tier"`
	Hits           uint64         `json:"hits"`
	Misses         uint64         `json:"misses"`
	TotalRequests  uint64         `json:"total_requests"`
	HitRate        float64        `json:"hit_rate"`
	AverageLatency time.Duration  `json:"average_latency"`
	LastUpdated    time.Time      `json:"last_updated"`
}

// Snapshot aggregates the records matching a filter.
type Snapshot struct {
	Records       []TierMetrics `json:"records"`
	Hits          uint64        `json:"hits"`
	Misses        uint64        `json:"misses"`
	TotalRequests uint64        `json:"total_requests"`
	HitRate       float64       `json:"hit_rate"`
	TakenAt       time.Time     `json:"taken_at"`
}

// Aggregator accumulates hit/miss counts and latency averages per
// (partition, category, tier). It is shared across all partitions and safe
// for concurrent use; it never touches entry or store state.
type Aggregator struct {
	mu      sync.Mutex
	clock   types.Clock
	records map[Key]*record
}

// NewAggregator creates an empty aggregator.
func NewAggregator(clock types.Clock) *Aggregator {
	if clock == nil {
		clock = types.SystemClock()
	}
	return &Aggregator{
		clock:   clock,
		records: make(map[Key]*record),
	}
}

// RecordHit counts a hit at the tier that served the value.
func (a *Aggregator) RecordHit(partition string, category types.Category, tier types.TierID, latency time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	r := a.recordFor(Key{partition, category, tier})
	r.hits++
	r.observeLatency(latency)
	r.lastUpdated = a.clock.Now()
}

// RecordMiss counts a global miss. Every tier that was checked gets a miss:
// a value absent everywhere was missed everywhere.
func (a *Aggregator) RecordMiss(partition string, category types.Category, tiers []types.TierID, latency time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()
	for _, tier := range tiers {
		r := a.recordFor(Key{partition, category, tier})
		r.misses++
		r.observeLatency(latency)
		r.lastUpdated = now
	}
}

// Snapshot returns the records matching the filter, plus an aggregate.
// An empty partition or category matches everything on that dimension, so
// (partition, "") aggregates across categories and ("", "") is global.
func (a *Aggregator) Snapshot(partition string, category types.Category) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := Snapshot{TakenAt: a.clock.Now()}

	for key, r := range a.records {
		if partition != "" && key.Partition != partition {
			continue
		}
		if category != "" && key.Category != category {
			continue
		}

		total := r.hits + r.misses
		view := TierMetrics{
			Partition:      key.Partition,
			Category:       key.Category,
			Tier:           key.Tier,
			Hits:           r.hits,
			Misses:         r.misses,
			TotalRequests:  total,
			HitRate:        hitRate(r.hits, total),
			AverageLatency: time.Duration(r.emaLatency * float64(time.Second)),
			LastUpdated:    r.lastUpdated,
		}
		snap.Records = append(snap.Records, view)
		snap.Hits += r.hits
		snap.Misses += r.misses
	}

	snap.TotalRequests = snap.Hits + snap.Misses
	snap.HitRate = hitRate(snap.Hits, snap.TotalRequests)

	sort.Slice(snap.Records, func(i, j int) bool {
		a, b := snap.Records[i], snap.Records[j]
		if a.Partition != b.Partition {
			return a.Partition < b.Partition
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Tier < b.Tier
	})

	return snap
}

// TierTotals sums hits and misses recorded against a single tier across all
// partitions and categories.
func (a *Aggregator) TierTotals(tier types.TierID) (hits, misses uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for key, r := range a.records {
		if key.Tier != tier {
			continue
		}
		hits += r.hits
		misses += r.misses
	}
	return hits, misses
}

// recordFor returns the record for key, creating it lazily. Caller holds mu.
func (a *Aggregator) recordFor(key Key) *record {
	r, exists := a.records[key]
	if !exists {
		r = &record{}
		a.records[key] = r
	}
	return r
}

func (r *record) observeLatency(latency time.Duration) {
	sample := latency.Seconds()
	if r.hits+r.misses <= 1 {
		r.emaLatency = sample
		return
	}
	r.emaLatency = emaAlpha*sample + (1-emaAlpha)*r.emaLatency
}

// hitRate is hits/total, defined as 0 when total is 0 so it is never NaN.
func hitRate(hits, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
