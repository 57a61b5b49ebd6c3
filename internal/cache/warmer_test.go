package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/personacache/personacache/pkg/types"
)

func TestWarmPartitionSeedsAllWarmers(t *testing.T) {
	cfg := quietConfig()
	cfg.Warming.PreloadCount = 3
	engine, _ := newTestEngine(t, cfg)
	ctx := context.Background()

	if err := engine.Warm(ctx, "krishna"); err != nil {
		t.Fatalf("Warm() failed: %v", err)
	}

	checks := []struct {
		category types.Category
		key      string
	}{
		{types.CategoryPersonalityData, "profile:core"},
		{types.CategoryPersonalityData, "profile:trait:0"},
		{types.CategoryPersonalityData, "profile:trait:2"},
		{types.CategoryResponseCache, "response:greeting"},
		{types.CategoryResponseCache, "response:capabilities"},
		{types.CategoryKnowledgeBase, "kb:chunk:0"},
		{types.CategoryKnowledgeBase, "kb:chunk:2"},
	}
	for _, c := range checks {
		if _, found := engine.Get(ctx, "krishna", c.category, c.key, types.TierMemory); !found {
			t.Errorf("warming did not seed %s/%s", c.category, c.key)
		}
	}

	// Warming one partition must not touch another.
	if _, found := engine.Get(ctx, "einstein", types.CategoryPersonalityData, "profile:core"); found {
		t.Error("warming leaked into an unwarmed partition")
	}
}

func TestWarmValidatesPartition(t *testing.T) {
	engine, _ := newTestEngine(t, quietConfig())

	if err := engine.Warm(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty partition")
	}
}

func TestWarmPartitionContinuesPastFailure(t *testing.T) {
	engine, _ := newTestEngine(t, quietConfig())

	failing := &failingWarmer{}
	scheduler := newScheduler(engine, engine.cfg.Warming, engine.logger)
	scheduler.warmers = append([]warmer{failing}, scheduler.warmers...)

	err := scheduler.WarmPartition(context.Background(), "krishna")
	if err == nil {
		t.Fatal("expected joined error from failing warmer")
	}

	// The remaining warmers still ran.
	if _, found := engine.Get(context.Background(), "krishna", types.CategoryPersonalityData, "profile:core"); !found {
		t.Error("later warmers were skipped after a failure")
	}
}

type failingWarmer struct{}

func (w *failingWarmer) name() string { return "failing" }

func (w *failingWarmer) warm(ctx context.Context, partition string) error {
	return fmt.Errorf("seed source unavailable")
}

func TestSchedulerCycle(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := quietConfig()
	cfg.Warming = types.WarmingConfig{
		Enabled:       true,
		WarmOnStartup: true,
		StartupDelay:  0,
		Interval:      time.Hour,
		Partitions:    []string{"krishna", "einstein"},
		PreloadCount:  2,
	}

	engine, _ := newTestEngine(t, cfg)
	ctx := context.Background()

	if err := engine.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		_, k := engine.Get(ctx, "krishna", types.CategoryPersonalityData, "profile:core", types.TierMemory)
		_, e := engine.Get(ctx, "einstein", types.CategoryPersonalityData, "profile:core", types.TierMemory)
		if k && e {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("startup warming cycle did not populate the roster")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := engine.Stop(ctx); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if state := engine.WarmingState(); state != StateIdle {
		t.Errorf("state after stop = %s, want %s", state, StateIdle)
	}
}

func TestSchedulerStopWithoutCycle(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := quietConfig()
	cfg.Warming = types.WarmingConfig{
		Enabled:       true,
		WarmOnStartup: false,
		Interval:      time.Hour,
		Partitions:    []string{"krishna"},
		PreloadCount:  1,
	}

	engine, _ := newTestEngine(t, cfg)
	ctx := context.Background()

	if err := engine.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if err := engine.Stop(ctx); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}

	// Stopping again is a no-op.
	if err := engine.Stop(ctx); err != nil {
		t.Errorf("second Stop() = %v, want nil", err)
	}
}
