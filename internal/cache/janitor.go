package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/personacache/personacache/internal/metrics"
	"github.com/personacache/personacache/internal/store"
	"github.com/personacache/personacache/pkg/types"
	"github.com/personacache/personacache/pkg/utils"
)

// OptimizeReport summarizes one maintenance pass.
type OptimizeReport struct {
	EntriesCleaned    int           `json:"entries_cleaned"`
	PartitionsVisited int           `json:"partitions_visited"`
	Duration          time.Duration `json:"duration"`
}

// janitor sweeps expired entries out of the in-process tier and refreshes the
// derived metrics gauges. It runs at the tail of every warming cycle and on
// demand through Engine.Optimize.
type janitor struct {
	memory   *memoryTier
	agg      *metrics.Aggregator
	exporter *metrics.Exporter
	clock    types.Clock
	logger   *slog.Logger
}

func newJanitor(memory *memoryTier, agg *metrics.Aggregator, exporter *metrics.Exporter, clock types.Clock, logger *slog.Logger) *janitor {
	return &janitor{
		memory:   memory,
		agg:      agg,
		exporter: exporter,
		clock:    clock,
		logger:   logger.With("component", "janitor"),
	}
}

func (j *janitor) run(ctx context.Context) OptimizeReport {
	runID := uuid.New().String()
	start := j.clock.Now()

	cleaned, partitions := j.memory.sweep(start)

	var totalEntries int
	var totalBytes int64
	j.memory.walk(func(s *store.Store) {
		stats := s.Stats()
		totalEntries += stats.EntryCount
		totalBytes += stats.TotalSizeBytes
		j.exporter.SetStoreGauges(s.Partition(), s.Category(), stats.EntryCount, stats.TotalSizeBytes)
	})

	snap := j.agg.Snapshot("", "")
	for _, r := range snap.Records {
		j.exporter.SetHitRate(r.Partition, r.Category, r.Tier, r.HitRate)
	}

	report := OptimizeReport{
		EntriesCleaned:    cleaned,
		PartitionsVisited: partitions,
		Duration:          j.clock.Now().Sub(start),
	}

	j.logger.Info("maintenance pass complete",
		"run_id", runID,
		"entries_cleaned", report.EntriesCleaned,
		"partitions_visited", report.PartitionsVisited,
		"entries_live", totalEntries,
		"memory_used", utils.FormatBytes(totalBytes),
		"duration", report.Duration)
	return report
}
