package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/personacache/personacache/pkg/errors"
	"github.com/personacache/personacache/pkg/types"
)

// Configuration represents the complete cache-engine configuration.
type Configuration struct {
	Global  GlobalConfig        `yaml:"global"`
	Cache   CacheConfig         `yaml:"cache"`
	Warming types.WarmingConfig `yaml:"warming"`
	Metrics MetricsConfig       `yaml:"metrics"`
}

// GlobalConfig represents global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level"`
}

// CacheConfig represents store capacities, TTL policy, and the tier layout.
// Capacities and TTLs are keyed by category name; a category without an
// explicit entry falls back to the defaults.
type CacheConfig struct {
	DefaultCapacity int                      `yaml:"default_capacity"`
	Capacities      map[string]int           `yaml:"capacities"`
	DefaultTTL      time.Duration            `yaml:"default_ttl"`
	TTLs            map[string]time.Duration `yaml:"ttls"`
	Tiers           TiersConfig              `yaml:"tiers"`
}

// TiersConfig represents the cache hierarchy layout and the failure policy
// for remote-capable tiers.
type TiersConfig struct {
	Order         []string      `yaml:"order"`
	RemoteTimeout time.Duration `yaml:"remote_timeout"`
	Breaker       BreakerConfig `yaml:"breaker"`
}

// BreakerConfig represents circuit breaker settings for remote tiers.
type BreakerConfig struct {
	MaxRequests      uint32        `yaml:"max_requests"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold uint32        `yaml:"failure_threshold"`
}

// MetricsConfig represents Prometheus exporter settings.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// NewDefault returns a configuration with sensible defaults.
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel: "INFO",
		},
		Cache: CacheConfig{
			DefaultCapacity: 1000,
			Capacities: map[string]int{
				types.CategoryPersonalityData.String(): 100,
				types.CategoryResponseCache.String():   500,
				types.CategoryKnowledgeBase.String():   300,
				types.CategoryUserPreferences.String(): 100,
				types.CategoryAnalyticsData.String():   200,
			},
			DefaultTTL: 30 * time.Minute,
			TTLs: map[string]time.Duration{
				types.CategoryPersonalityData.String(): time.Hour,
				types.CategoryResponseCache.String():   30 * time.Minute,
				types.CategoryKnowledgeBase.String():   2 * time.Hour,
				types.CategoryUserPreferences.String(): 24 * time.Hour,
				types.CategoryAnalyticsData.String():   15 * time.Minute,
			},
			Tiers: TiersConfig{
				Order:         []string{"memory", "shared", "durable"},
				RemoteTimeout: 500 * time.Millisecond,
				Breaker: BreakerConfig{
					MaxRequests:      3,
					Interval:         time.Minute,
					Timeout:          30 * time.Second,
					FailureThreshold: 5,
				},
			},
		},
		Warming: types.WarmingConfig{
			Enabled:       true,
			WarmOnStartup: true,
			StartupDelay:  5 * time.Second,
			Interval:      10 * time.Minute,
			Partitions:    nil,
			PreloadCount:  3,
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Port:      9090,
			Path:      "/metrics",
			Namespace: "personacache",
		},
	}
}

// LoadFromFile loads configuration from a YAML file.
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return errors.Newf(errors.ErrCodeConfigLoad, "failed to read config file: %v", err).
			WithComponent("config").WithCause(err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Newf(errors.ErrCodeConfigLoad, "failed to parse config file: %v", err).
			WithComponent("config").WithCause(err)
	}

	return nil
}

// LoadFromEnv applies environment variable overrides.
func (c *Configuration) LoadFromEnv() error {
	if val := os.Getenv("PERSONACACHE_LOG_LEVEL"); val != "" {
		c.Global.LogLevel = val
	}
	if val := os.Getenv("PERSONACACHE_DEFAULT_CAPACITY"); val != "" {
		if capacity, err := strconv.Atoi(val); err == nil {
			c.Cache.DefaultCapacity = capacity
		}
	}
	if val := os.Getenv("PERSONACACHE_DEFAULT_TTL"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.Cache.DefaultTTL = duration
		}
	}
	if val := os.Getenv("PERSONACACHE_WARMING_ENABLED"); val != "" {
		c.Warming.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("PERSONACACHE_WARMING_INTERVAL"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.Warming.Interval = duration
		}
	}
	if val := os.Getenv("PERSONACACHE_WARMING_PARTITIONS"); val != "" {
		parts := strings.Split(val, ",")
		roster := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				roster = append(roster, p)
			}
		}
		c.Warming.Partitions = roster
	}
	if val := os.Getenv("PERSONACACHE_METRICS_ENABLED"); val != "" {
		c.Metrics.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("PERSONACACHE_METRICS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Metrics.Port = port
		}
	}

	return nil
}

// SaveToFile saves the configuration to a YAML file.
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Newf(errors.ErrCodeConfigLoad, "failed to marshal config: %v", err).
			WithComponent("config").WithCause(err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return errors.Newf(errors.ErrCodeConfigLoad, "failed to create config directory: %v", err).
			WithComponent("config").WithCause(err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return errors.Newf(errors.ErrCodeConfigLoad, "failed to write config file: %v", err).
			WithComponent("config").WithCause(err)
	}

	return nil
}

// Validate validates the configuration.
func (c *Configuration) Validate() error {
	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if strings.ToUpper(c.Global.LogLevel) == level {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return errors.Newf(errors.ErrCodeConfigValidation, "invalid log_level: %s (must be one of: %s)",
			c.Global.LogLevel, strings.Join(validLogLevels, ", ")).WithComponent("config")
	}

	if c.Cache.DefaultCapacity <= 0 {
		return errors.Newf(errors.ErrCodeInvalidCapacity, "default_capacity %d must be positive",
			c.Cache.DefaultCapacity).WithComponent("config")
	}
	for name, capacity := range c.Cache.Capacities {
		if _, err := types.ParseCategory(name); err != nil {
			return errors.Newf(errors.ErrCodeConfigValidation, "capacities: %v", err).WithComponent("config")
		}
		if capacity <= 0 {
			return errors.Newf(errors.ErrCodeInvalidCapacity, "capacity %d for category %s must be positive",
				capacity, name).WithComponent("config")
		}
	}

	if c.Cache.DefaultTTL <= 0 {
		return errors.Newf(errors.ErrCodeInvalidTTL, "default_ttl %v must be positive",
			c.Cache.DefaultTTL).WithComponent("config")
	}
	for name, ttl := range c.Cache.TTLs {
		if _, err := types.ParseCategory(name); err != nil {
			return errors.Newf(errors.ErrCodeConfigValidation, "ttls: %v", err).WithComponent("config")
		}
		if ttl <= 0 {
			return errors.Newf(errors.ErrCodeInvalidTTL, "ttl %v for category %s must be positive",
				ttl, name).WithComponent("config")
		}
	}

	if _, err := c.TierOrder(); err != nil {
		return err
	}

	if c.Warming.Enabled {
		if c.Warming.Interval <= 0 {
			return errors.Newf(errors.ErrCodeConfigValidation, "warming interval %v must be positive",
				c.Warming.Interval).WithComponent("config")
		}
		if c.Warming.PreloadCount <= 0 {
			return errors.Newf(errors.ErrCodeConfigValidation, "warming preload_count %d must be positive",
				c.Warming.PreloadCount).WithComponent("config")
		}
		if c.Warming.StartupDelay < 0 {
			return errors.Newf(errors.ErrCodeConfigValidation, "warming startup_delay %v must not be negative",
				c.Warming.StartupDelay).WithComponent("config")
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			return errors.Newf(errors.ErrCodeConfigValidation, "metrics port %d out of range",
				c.Metrics.Port).WithComponent("config")
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return errors.Newf(errors.ErrCodeConfigValidation, "metrics path %q must start with /",
				c.Metrics.Path).WithComponent("config")
		}
	}

	return nil
}

// TierOrder parses and validates the configured tier layout. The memory tier
// must come first: it is the only tier whose failure is fatal to a Put.
func (c *Configuration) TierOrder() ([]types.TierID, error) {
	if len(c.Cache.Tiers.Order) == 0 {
		return nil, errors.NewError(errors.ErrCodeConfigValidation, "tier order must not be empty").
			WithComponent("config")
	}

	seen := make(map[types.TierID]bool)
	order := make([]types.TierID, 0, len(c.Cache.Tiers.Order))
	for _, name := range c.Cache.Tiers.Order {
		tier, err := types.ParseTier(name)
		if err != nil {
			return nil, errors.Newf(errors.ErrCodeConfigValidation, "tier order: %v", err).
				WithComponent("config")
		}
		if seen[tier] {
			return nil, errors.Newf(errors.ErrCodeConfigValidation, "tier order: duplicate tier %s", tier).
				WithComponent("config")
		}
		seen[tier] = true
		order = append(order, tier)
	}

	if order[0] != types.TierMemory {
		return nil, errors.Newf(errors.ErrCodeConfigValidation, "tier order must start with %s, got %s",
			types.TierMemory, order[0]).WithComponent("config")
	}

	return order, nil
}

// CapacityFor returns the store capacity for a category.
func (c *CacheConfig) CapacityFor(category types.Category) int {
	if capacity, ok := c.Capacities[category.String()]; ok {
		return capacity
	}
	return c.DefaultCapacity
}

// TTLFor returns the default TTL for a category.
func (c *CacheConfig) TTLFor(category types.Category) time.Duration {
	if ttl, ok := c.TTLs[category.String()]; ok {
		return ttl
	}
	return c.DefaultTTL
}

// String returns a short human-readable summary for startup logs.
func (c *Configuration) String() string {
	return fmt.Sprintf("Configuration{log_level=%s, default_capacity=%d, default_ttl=%v, tiers=%v, warming=%v, metrics=%v}",
		c.Global.LogLevel, c.Cache.DefaultCapacity, c.Cache.DefaultTTL,
		c.Cache.Tiers.Order, c.Warming.Enabled, c.Metrics.Enabled)
}
