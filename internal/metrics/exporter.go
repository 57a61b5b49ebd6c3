package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/personacache/personacache/pkg/types"
)

// Config represents exporter configuration.
type Config struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// DefaultConfig returns the exporter defaults: enabled in-process collection
// with the HTTP endpoint off until a port is configured.
func DefaultConfig() *Config {
	return &Config{
		Enabled:   false,
		Port:      9090,
		Path:      "/metrics",
		Namespace: "personacache",
	}
}

// Exporter bridges the engine's metrics to Prometheus. When disabled every
// method is a no-op, so callers never need to nil-check.
type Exporter struct {
	config   *Config
	registry *prometheus.Registry

	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	tierFailures *prometheus.CounterVec
	entries      *prometheus.GaugeVec
	sizeBytes    *prometheus.GaugeVec
	hitRate      *prometheus.GaugeVec

	server *http.Server
	logger *slog.Logger
}

// NewExporter creates an exporter for the given configuration.
func NewExporter(config *Config) (*Exporter, error) {
	if config == nil {
		config = DefaultConfig()
	}

	e := &Exporter{
		config: config,
		logger: slog.Default().With("component", "metrics"),
	}

	if !config.Enabled {
		return e, nil
	}

	e.registry = prometheus.NewRegistry()
	e.initMetrics()
	if err := e.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	return e, nil
}

// Start serves the /metrics endpoint in the background.
func (e *Exporter) Start(ctx context.Context) error {
	if !e.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(e.config.Path, promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	e.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", e.config.Port),
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := e.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			e.logger.Error("metrics server failed", "error", err)
		}
	}()

	return nil
}

// Stop shuts the metrics endpoint down.
func (e *Exporter) Stop(ctx context.Context) error {
	if e.server != nil {
		return e.server.Shutdown(ctx)
	}
	return nil
}

// ObserveRequest counts one cache lookup outcome and its latency.
func (e *Exporter) ObserveRequest(partition string, category types.Category, tier types.TierID, result string, latency time.Duration) {
	if !e.config.Enabled {
		return
	}

	e.requests.With(prometheus.Labels{
		"partition": partition,
		"category":  category.String(),
		"tier":      tier.String(),
		"result":    result,
	}).Inc()
	e.latency.With(prometheus.Labels{
		"tier": tier.String(),
	}).Observe(latency.Seconds())
}

// RecordTierFailure counts a degraded tier event.
func (e *Exporter) RecordTierFailure(tier types.TierID, operation, reason string) {
	if !e.config.Enabled {
		return
	}

	e.tierFailures.With(prometheus.Labels{
		"tier":      tier.String(),
		"operation": operation,
		"reason":    reason,
	}).Inc()
}

// SetStoreGauges publishes one store's occupancy figures.
func (e *Exporter) SetStoreGauges(partition string, category types.Category, entryCount int, sizeBytes int64) {
	if !e.config.Enabled {
		return
	}

	labels := prometheus.Labels{
		"partition": partition,
		"category":  category.String(),
	}
	e.entries.With(labels).Set(float64(entryCount))
	e.sizeBytes.With(labels).Set(float64(sizeBytes))
}

// SetHitRate publishes a recomputed hit rate for one metrics record.
func (e *Exporter) SetHitRate(partition string, category types.Category, tier types.TierID, rate float64) {
	if !e.config.Enabled {
		return
	}

	e.hitRate.With(prometheus.Labels{
		"partition": partition,
		"category":  category.String(),
		"tier":      tier.String(),
	}).Set(rate)
}

// Gather exposes the underlying registry for tests and embedding.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

func (e *Exporter) initMetrics() {
	e.requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: e.config.Namespace,
			Name:      "requests_total",
			Help:      "Total number of cache lookups by outcome",
		},
		[]string{"partition", "category", "tier", "result"},
	)

	e.latency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: e.config.Namespace,
			Name:      "request_duration_seconds",
			Help:      "Duration of cache lookups in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.000001, 4, 12), // 1µs to ~16s
		},
		[]string{"tier"},
	)

	e.tierFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: e.config.Namespace,
			Name:      "tier_failures_total",
			Help:      "Total number of degraded tier events",
		},
		[]string{"tier", "operation", "reason"},
	)

	e.entries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: e.config.Namespace,
			Name:      "entries",
			Help:      "Current entry count per store",
		},
		[]string{"partition", "category"},
	)

	e.sizeBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: e.config.Namespace,
			Name:      "size_bytes",
			Help:      "Estimated cached payload size per store",
		},
		[]string{"partition", "category"},
	)

	e.hitRate = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: e.config.Namespace,
			Name:      "hit_rate",
			Help:      "Hit rate per partition, category, and tier",
		},
		[]string{"partition", "category", "tier"},
	)
}

func (e *Exporter) registerMetrics() error {
	collectors := []prometheus.Collector{
		e.requests,
		e.latency,
		e.tierFailures,
		e.entries,
		e.sizeBytes,
		e.hitRate,
	}

	for _, collector := range collectors {
		if err := e.registry.Register(collector); err != nil {
			return err
		}
	}

	return nil
}
