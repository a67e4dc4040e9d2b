package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Index.Depth)
	assert.Equal(t, RepresentationInverted, cfg.Index.Representation)
	assert.Equal(t, CacheBackendLRU, cfg.Cache.Backend)
	assert.False(t, cfg.Kafka.Enabled)
	assert.False(t, cfg.Postgres.Enabled)
	assert.True(t, cfg.Analytics.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Analytics.SnapshotInterval)
	assert.Equal(t, "host=localhost port=5432 user=fuzzygram password=localdev dbname=fuzzygram sslmode=disable", cfg.Postgres.DSN())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
index:
  depth: 3
  representation: merged
  boundedByDefault: true
cache:
  backend: redis
  ttl: 5s
kafka:
  enabled: true
  brokers: ["k1:9092", "k2:9092"]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Index.Depth)
	assert.Equal(t, RepresentationMerged, cfg.Index.Representation)
	assert.True(t, cfg.Index.BoundedByDefault)
	assert.Equal(t, 5*time.Second, cfg.Cache.TTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 10, cfg.Index.DefaultLimit, "unset fields keep defaults")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FG_INDEX_DEPTH", "4")
	t.Setenv("FG_INDEX_REPRESENTATION", "merged")
	t.Setenv("FG_KAFKA_ENABLED", "true")
	t.Setenv("FG_KAFKA_BROKERS", "a:1,b:2")
	t.Setenv("FG_SERVER_PORT", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Index.Depth)
	assert.Equal(t, RepresentationMerged, cfg.Index.Representation)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Kafka.Brokers)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad representation", func(c *Config) { c.Index.Representation = "trie" }},
		{"zero depth", func(c *Config) { c.Index.Depth = 0 }},
		{"limit above max", func(c *Config) { c.Index.DefaultLimit = 500 }},
		{"bad cache backend", func(c *Config) { c.Cache.Backend = "memcached" }},
		{"auth without postgres", func(c *Config) { c.Auth.Enabled = true }},
		{"negative rate limit", func(c *Config) { c.Auth.RateLimit = -1 }},
		{"kafka without brokers", func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Brokers = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, defaultConfig().Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
