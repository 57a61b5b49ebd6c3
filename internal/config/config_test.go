package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/personacache/personacache/pkg/errors"
	"github.com/personacache/personacache/pkg/types"
)

func TestNewDefault(t *testing.T) {
	cfg := NewDefault()

	assert.Equal(t, "INFO", cfg.Global.LogLevel)
	assert.Equal(t, 1000, cfg.Cache.DefaultCapacity)
	assert.Equal(t, 30*time.Minute, cfg.Cache.DefaultTTL)
	assert.Equal(t, []string{"memory", "shared", "durable"}, cfg.Cache.Tiers.Order)

	// Every category has an explicit capacity and TTL by default.
	for _, category := range types.Categories() {
		assert.Contains(t, cfg.Cache.Capacities, category.String())
		assert.Contains(t, cfg.Cache.TTLs, category.String())
	}

	assert.True(t, cfg.Warming.Enabled)
	assert.True(t, cfg.Warming.WarmOnStartup)
	assert.Equal(t, 3, cfg.Warming.PreloadCount)
	assert.False(t, cfg.Metrics.Enabled)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "personacache.yaml")

	original := NewDefault()
	original.Global.LogLevel = "DEBUG"
	original.Cache.DefaultCapacity = 42
	original.Warming.Partitions = []string{"krishna", "einstein"}
	require.NoError(t, original.SaveToFile(path))

	loaded := NewDefault()
	require.NoError(t, loaded.LoadFromFile(path))

	assert.Equal(t, "DEBUG", loaded.Global.LogLevel)
	assert.Equal(t, 42, loaded.Cache.DefaultCapacity)
	assert.Equal(t, []string{"krishna", "einstein"}, loaded.Warming.Partitions)
	require.NoError(t, loaded.Validate())
}

func TestLoadFromFile_Missing(t *testing.T) {
	cfg := NewDefault()
	err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.NewError(errors.ErrCodeConfigLoad, ""))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PERSONACACHE_LOG_LEVEL", "WARN")
	t.Setenv("PERSONACACHE_DEFAULT_CAPACITY", "77")
	t.Setenv("PERSONACACHE_DEFAULT_TTL", "45m")
	t.Setenv("PERSONACACHE_WARMING_ENABLED", "false")
	t.Setenv("PERSONACACHE_WARMING_PARTITIONS", "krishna, einstein ,tesla")
	t.Setenv("PERSONACACHE_METRICS_ENABLED", "true")
	t.Setenv("PERSONACACHE_METRICS_PORT", "9191")

	cfg := NewDefault()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "WARN", cfg.Global.LogLevel)
	assert.Equal(t, 77, cfg.Cache.DefaultCapacity)
	assert.Equal(t, 45*time.Minute, cfg.Cache.DefaultTTL)
	assert.False(t, cfg.Warming.Enabled)
	assert.Equal(t, []string{"krishna", "einstein", "tesla"}, cfg.Warming.Partitions)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9191, cfg.Metrics.Port)
}

func TestLoadFromEnv_IgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("PERSONACACHE_DEFAULT_CAPACITY", "not-a-number")
	t.Setenv("PERSONACACHE_DEFAULT_TTL", "soon")

	cfg := NewDefault()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, 1000, cfg.Cache.DefaultCapacity)
	assert.Equal(t, 30*time.Minute, cfg.Cache.DefaultTTL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Configuration)
		wantCode errors.ErrorCode
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Configuration) {},
		},
		{
			name:     "bad log level",
			mutate:   func(c *Configuration) { c.Global.LogLevel = "LOUD" },
			wantCode: errors.ErrCodeConfigValidation,
		},
		{
			name:     "zero default capacity",
			mutate:   func(c *Configuration) { c.Cache.DefaultCapacity = 0 },
			wantCode: errors.ErrCodeInvalidCapacity,
		},
		{
			name:     "negative category capacity",
			mutate:   func(c *Configuration) { c.Cache.Capacities["response_cache"] = -1 },
			wantCode: errors.ErrCodeInvalidCapacity,
		},
		{
			name:     "unknown capacity category",
			mutate:   func(c *Configuration) { c.Cache.Capacities["responses"] = 10 },
			wantCode: errors.ErrCodeConfigValidation,
		},
		{
			name:     "zero default ttl",
			mutate:   func(c *Configuration) { c.Cache.DefaultTTL = 0 },
			wantCode: errors.ErrCodeInvalidTTL,
		},
		{
			name:     "negative category ttl",
			mutate:   func(c *Configuration) { c.Cache.TTLs["knowledge_base"] = -time.Second },
			wantCode: errors.ErrCodeInvalidTTL,
		},
		{
			name:     "empty tier order",
			mutate:   func(c *Configuration) { c.Cache.Tiers.Order = nil },
			wantCode: errors.ErrCodeConfigValidation,
		},
		{
			name:     "unknown tier",
			mutate:   func(c *Configuration) { c.Cache.Tiers.Order = []string{"memory", "l2"} },
			wantCode: errors.ErrCodeConfigValidation,
		},
		{
			name:     "duplicate tier",
			mutate:   func(c *Configuration) { c.Cache.Tiers.Order = []string{"memory", "shared", "shared"} },
			wantCode: errors.ErrCodeConfigValidation,
		},
		{
			name:     "memory tier not first",
			mutate:   func(c *Configuration) { c.Cache.Tiers.Order = []string{"shared", "memory"} },
			wantCode: errors.ErrCodeConfigValidation,
		},
		{
			name:     "warming interval zero while enabled",
			mutate:   func(c *Configuration) { c.Warming.Interval = 0 },
			wantCode: errors.ErrCodeConfigValidation,
		},
		{
			name: "warming disabled skips warming checks",
			mutate: func(c *Configuration) {
				c.Warming.Enabled = false
				c.Warming.Interval = 0
				c.Warming.PreloadCount = 0
			},
		},
		{
			name:     "metrics port out of range",
			mutate:   func(c *Configuration) { c.Metrics.Enabled = true; c.Metrics.Port = 70000 },
			wantCode: errors.ErrCodeConfigValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefault()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantCode == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.NewError(tt.wantCode, ""))
		})
	}
}

func TestTierOrder(t *testing.T) {
	cfg := NewDefault()
	order, err := cfg.TierOrder()
	require.NoError(t, err)
	assert.Equal(t, []types.TierID{types.TierMemory, types.TierShared, types.TierDurable}, order)

	cfg.Cache.Tiers.Order = []string{"memory"}
	order, err = cfg.TierOrder()
	require.NoError(t, err)
	assert.Equal(t, []types.TierID{types.TierMemory}, order)
}

func TestCapacityAndTTLFallbacks(t *testing.T) {
	cfg := NewDefault()
	cfg.Cache.Capacities = map[string]int{"response_cache": 50}
	cfg.Cache.TTLs = map[string]time.Duration{"response_cache": time.Minute}

	assert.Equal(t, 50, cfg.Cache.CapacityFor(types.CategoryResponseCache))
	assert.Equal(t, 1000, cfg.Cache.CapacityFor(types.CategoryKnowledgeBase))
	assert.Equal(t, time.Minute, cfg.Cache.TTLFor(types.CategoryResponseCache))
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTLFor(types.CategoryKnowledgeBase))
}

func TestSaveToFile_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "cfg.yaml")
	require.NoError(t, NewDefault().SaveToFile(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.False(t, info.IsDir())
}
