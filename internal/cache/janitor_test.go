package cache

import (
	"context"
	"testing"
	"time"

	"github.com/personacache/personacache/pkg/types"
)

func TestOptimizeSweepsExpiredEntries(t *testing.T) {
	engine, clock := newTestEngine(t, quietConfig())
	ctx := context.Background()

	puts := []struct {
		partition string
		category  types.Category
		key       string
		ttl       time.Duration
	}{
		{"krishna", types.CategoryResponseCache, "short-a", time.Minute},
		{"krishna", types.CategoryResponseCache, "short-b", time.Minute},
		{"krishna", types.CategoryKnowledgeBase, "long", time.Hour},
		{"einstein", types.CategoryResponseCache, "short-c", time.Minute},
	}
	for _, p := range puts {
		if err := engine.Put(ctx, p.partition, p.category, p.key, "v", p.ttl); err != nil {
			t.Fatalf("Put() failed: %v", err)
		}
	}

	clock.Advance(2 * time.Minute)

	report := engine.Optimize(ctx)
	if report.EntriesCleaned != 3 {
		t.Errorf("entries cleaned = %d, want 3", report.EntriesCleaned)
	}
	if report.PartitionsVisited != 2 {
		t.Errorf("partitions visited = %d, want 2", report.PartitionsVisited)
	}

	if _, found := engine.Get(ctx, "krishna", types.CategoryKnowledgeBase, "long", types.TierMemory); !found {
		t.Error("live entry was swept")
	}

	stats, err := engine.TierStats(types.TierMemory)
	if err != nil {
		t.Fatalf("TierStats() failed: %v", err)
	}
	if stats.EntryCount != 1 {
		t.Errorf("entry count after sweep = %d, want 1", stats.EntryCount)
	}
}

func TestOptimizeOnEmptyEngine(t *testing.T) {
	engine, _ := newTestEngine(t, quietConfig())

	report := engine.Optimize(context.Background())
	if report.EntriesCleaned != 0 || report.PartitionsVisited != 0 {
		t.Errorf("report = %+v, want zeros", report)
	}
}
