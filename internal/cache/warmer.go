package cache

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/personacache/personacache/pkg/types"
)

// Scheduler states.
const (
	StateIdle    = "idle"
	StateWarming = "warming"
)

// warmingConcurrency bounds how many partitions a cycle warms at once.
const warmingConcurrency = 4

// Scheduler proactively populates the cache for a roster of partitions. It
// runs one cycle after an optional startup delay and then on a fixed
// interval; a cycle warms every partition on the roster and finishes with a
// janitor pass. A warming failure is logged and never interrupts the cycle.
type Scheduler struct {
	engine *Engine
	cfg    types.WarmingConfig
	logger *slog.Logger

	warmers []warmer

	state    atomic.Value
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// warmer seeds one category of partition data through the normal write path.
type warmer interface {
	name() string
	warm(ctx context.Context, partition string) error
}

func newScheduler(engine *Engine, cfg types.WarmingConfig, logger *slog.Logger) *Scheduler {
	s := &Scheduler{
		engine: engine,
		cfg:    cfg,
		logger: logger.With("component", "warmer"),
		warmers: []warmer{
			&profileWarmer{engine: engine, preload: cfg.PreloadCount},
			&responseWarmer{engine: engine, preload: cfg.PreloadCount},
			&knowledgeWarmer{engine: engine, preload: cfg.PreloadCount},
		},
		stopCh: make(chan struct{}),
	}
	s.state.Store(StateIdle)
	return s
}

// State reports whether the scheduler is idle or mid-cycle.
func (s *Scheduler) State() string {
	return s.state.Load().(string)
}

// Start launches the scheduler loop. The context bounds individual warming
// operations; stopping the scheduler is done through Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop signals the loop to exit and waits for any in-flight cycle.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	if s.cfg.WarmOnStartup {
		if s.cfg.StartupDelay > 0 {
			select {
			case <-time.After(s.cfg.StartupDelay):
			case <-s.stopCh:
				return
			}
		}
		s.runCycle(ctx)
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runCycle(ctx)
		case <-s.stopCh:
			return
		}
	}
}

// runCycle warms the whole roster and then runs a janitor pass. The cycle
// never fails; per-partition errors are logged and the rest of the roster
// still runs.
func (s *Scheduler) runCycle(ctx context.Context) {
	runID := uuid.New().String()
	s.state.Store(StateWarming)
	defer s.state.Store(StateIdle)

	start := time.Now()
	s.logger.Info("warming cycle started", "run_id", runID, "partitions", len(s.cfg.Partitions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(warmingConcurrency)
	var warmed, failed atomic.Int64

	for _, partition := range s.cfg.Partitions {
		partition := partition
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					failed.Add(1)
					s.logger.Error("warming panic recovered",
						"run_id", runID, "partition", partition, "panic", fmt.Sprint(r))
				}
			}()

			if err := s.WarmPartition(gctx, partition); err != nil {
				failed.Add(1)
				s.logger.Warn("partition warming failed",
					"run_id", runID, "partition", partition, "error", err)
				return nil
			}
			warmed.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	report := s.engine.janitor.run(ctx)

	s.logger.Info("warming cycle finished",
		"run_id", runID,
		"warmed", warmed.Load(),
		"failed", failed.Load(),
		"entries_cleaned", report.EntriesCleaned,
		"duration", time.Since(start))
}

// WarmPartition runs every warmer for one partition. Each warmer runs even
// when an earlier one failed; the joined error reports what went wrong.
func (s *Scheduler) WarmPartition(ctx context.Context, partition string) error {
	var errs []error
	for _, w := range s.warmers {
		if err := w.warm(ctx, partition); err != nil {
			s.logger.Warn("warmer failed",
				"warmer", w.name(), "partition", partition, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", w.name(), err))
		}
	}
	return stderrors.Join(errs...)
}

// profileWarmer seeds the personality profile entries a partition reads on
// almost every request.
type profileWarmer struct {
	engine  *Engine
	preload int
}

func (w *profileWarmer) name() string { return "profile" }

func (w *profileWarmer) warm(ctx context.Context, partition string) error {
	ttl := w.engine.cfg.Cache.TTLFor(types.CategoryPersonalityData)

	profile := map[string]any{
		"partition_id": partition,
		"traits":       []string{"tone", "formality", "verbosity"},
		"loaded_at":    w.engine.clock.Now(),
	}
	if err := w.engine.Put(ctx, partition, types.CategoryPersonalityData, "profile:core", profile, ttl); err != nil {
		return err
	}

	for i := 0; i < w.preload; i++ {
		key := fmt.Sprintf("profile:trait:%d", i)
		value := map[string]any{"partition_id": partition, "trait_index": i}
		if err := w.engine.Put(ctx, partition, types.CategoryPersonalityData, key, value, ttl); err != nil {
			return err
		}
	}
	return nil
}

// responseWarmer seeds canned responses for the prompts every partition sees
// most often.
type responseWarmer struct {
	engine  *Engine
	preload int
}

var commonPrompts = []string{"greeting", "introduction", "capabilities", "farewell", "fallback"}

func (w *responseWarmer) name() string { return "common-response" }

func (w *responseWarmer) warm(ctx context.Context, partition string) error {
	ttl := w.engine.cfg.Cache.TTLFor(types.CategoryResponseCache)

	count := w.preload
	if count > len(commonPrompts) {
		count = len(commonPrompts)
	}

	for i := 0; i < count; i++ {
		prompt := commonPrompts[i]
		key := "response:" + prompt
		value := map[string]any{
			"partition_id": partition,
			"prompt":       prompt,
			"precomputed":  true,
		}
		if err := w.engine.Put(ctx, partition, types.CategoryResponseCache, key, value, ttl); err != nil {
			return err
		}
	}
	return nil
}

// knowledgeWarmer seeds the most-referenced knowledge base chunks.
type knowledgeWarmer struct {
	engine  *Engine
	preload int
}

func (w *knowledgeWarmer) name() string { return "knowledge-base" }

func (w *knowledgeWarmer) warm(ctx context.Context, partition string) error {
	ttl := w.engine.cfg.Cache.TTLFor(types.CategoryKnowledgeBase)

	for i := 0; i < w.preload; i++ {
		key := fmt.Sprintf("kb:chunk:%d", i)
		value := map[string]any{
			"partition_id": partition,
			"chunk_index":  i,
			"pinned":       true,
		}
		if err := w.engine.Put(ctx, partition, types.CategoryKnowledgeBase, key, value, ttl); err != nil {
			return err
		}
	}
	return nil
}
