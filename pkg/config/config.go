// Package config loads fuzzygram configuration from YAML files with
// environment-variable overrides. It provides typed structs for every
// subsystem (Server, Index, Postgres, Kafka, Redis, Cache, Analytics, Auth,
// Logging, Metrics).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Representation names accepted by IndexConfig.Representation.
const (
	RepresentationInverted = "inverted"
	RepresentationMerged   = "merged"
)

// Cache backends accepted by CacheConfig.Backend.
const (
	CacheBackendRedis = "redis"
	CacheBackendLRU   = "lru"
	CacheBackendNone  = "none"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Index     IndexConfig     `yaml:"index"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Cache     CacheConfig     `yaml:"cache"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// CORSOrigins enables CORS for the listed origins; "*" allows any.
	CORSOrigins []string `yaml:"corsOrigins"`
}

// IndexConfig controls the gram depth, the in-memory representation, and
// result limits.
type IndexConfig struct {
	Depth            int    `yaml:"depth"`
	Representation   string `yaml:"representation"`
	BoundedByDefault bool   `yaml:"boundedByDefault"`
	DefaultLimit     int    `yaml:"defaultLimit"`
	MaxResults       int    `yaml:"maxResults"`
	// QueryTimeout bounds a single query evaluation; zero disables it.
	QueryTimeout time.Duration `yaml:"queryTimeout"`
}

// PostgresConfig holds the entry log connection parameters.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
	ReplayTimeout   time.Duration `yaml:"replayTimeout"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	EntryIngest string `yaml:"entryIngest"`
	QueryEvents string `yaml:"queryEvents"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// CacheConfig selects and sizes the query-result cache.
type CacheConfig struct {
	Backend string        `yaml:"backend"`
	LRUSize int           `yaml:"lruSize"`
	TTL     time.Duration `yaml:"ttl"`
}

// AnalyticsConfig sizes the query-event pipeline. SnapshotInterval only
// applies when Postgres is enabled.
type AnalyticsConfig struct {
	Enabled          bool          `yaml:"enabled"`
	BufferSize       int           `yaml:"bufferSize"`
	BatchSize        int           `yaml:"batchSize"`
	FlushInterval    time.Duration `yaml:"flushInterval"`
	TrackedQueries   int           `yaml:"trackedQueries"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
}

// AuthConfig protects admin routes with API keys stored in Postgres and
// throttles clients per address.
type AuthConfig struct {
	Enabled    bool          `yaml:"enabled"`
	RateLimit  int           `yaml:"rateLimit"`
	RateWindow time.Duration `yaml:"rateWindow"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided), applies environment-variable
// overrides and validates the result. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first setting that the service cannot run with.
func (c *Config) Validate() error {
	switch c.Index.Representation {
	case RepresentationInverted, RepresentationMerged:
	default:
		return fmt.Errorf("index.representation must be %q or %q, got %q",
			RepresentationInverted, RepresentationMerged, c.Index.Representation)
	}
	if c.Index.Depth < 1 {
		return fmt.Errorf("index.depth must be positive, got %d", c.Index.Depth)
	}
	if c.Index.DefaultLimit < 1 || c.Index.MaxResults < c.Index.DefaultLimit {
		return fmt.Errorf("index limits invalid: defaultLimit=%d maxResults=%d",
			c.Index.DefaultLimit, c.Index.MaxResults)
	}
	switch c.Cache.Backend {
	case CacheBackendRedis, CacheBackendLRU, CacheBackendNone:
	default:
		return fmt.Errorf("cache.backend must be redis, lru or none, got %q", c.Cache.Backend)
	}
	if c.Auth.Enabled && !c.Postgres.Enabled {
		return fmt.Errorf("auth requires postgres for api key storage")
	}
	if c.Auth.RateLimit < 0 || (c.Auth.RateLimit > 0 && c.Auth.RateWindow <= 0) {
		return fmt.Errorf("auth rate limit invalid: rateLimit=%d rateWindow=%v", c.Auth.RateLimit, c.Auth.RateWindow)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required when kafka is enabled")
	}
	return nil
}

// defaultConfig returns a Config suitable for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Index: IndexConfig{
			Depth:          6,
			Representation: RepresentationInverted,
			DefaultLimit:   10,
			MaxResults:     100,
			QueryTimeout:   2 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "fuzzygram",
			User:            "fuzzygram",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
			ReplayTimeout:   2 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "fuzzygram-group",
			Topics: KafkaTopics{
				EntryIngest: "fuzzygram.entries",
				QueryEvents: "fuzzygram.queries",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		Cache: CacheConfig{
			Backend: CacheBackendLRU,
			LRUSize: 1024,
			TTL:     60 * time.Second,
		},
		Analytics: AnalyticsConfig{
			Enabled:          true,
			BufferSize:       10000,
			BatchSize:        100,
			FlushInterval:    5 * time.Second,
			TrackedQueries:   10000,
			SnapshotInterval: 5 * time.Minute,
		},
		Auth: AuthConfig{
			RateWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads FG_* environment variables and overrides the
// corresponding config fields. Unparseable numbers are ignored.
func applyEnvOverrides(cfg *Config) {
	setInt := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setBool := func(name string, dst *bool) {
		if v := os.Getenv(name); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}
	setString := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	setInt("FG_SERVER_PORT", &cfg.Server.Port)
	setInt("FG_INDEX_DEPTH", &cfg.Index.Depth)
	setString("FG_INDEX_REPRESENTATION", &cfg.Index.Representation)
	setBool("FG_INDEX_BOUNDED", &cfg.Index.BoundedByDefault)
	setBool("FG_POSTGRES_ENABLED", &cfg.Postgres.Enabled)
	setString("FG_POSTGRES_HOST", &cfg.Postgres.Host)
	setInt("FG_POSTGRES_PORT", &cfg.Postgres.Port)
	setString("FG_POSTGRES_DATABASE", &cfg.Postgres.Database)
	setString("FG_POSTGRES_USER", &cfg.Postgres.User)
	setString("FG_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	setString("FG_POSTGRES_SSLMODE", &cfg.Postgres.SSLMode)
	setBool("FG_KAFKA_ENABLED", &cfg.Kafka.Enabled)
	if v := os.Getenv("FG_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	setString("FG_REDIS_ADDR", &cfg.Redis.Addr)
	setString("FG_REDIS_PASSWORD", &cfg.Redis.Password)
	setString("FG_CACHE_BACKEND", &cfg.Cache.Backend)
	setInt("FG_CACHE_LRU_SIZE", &cfg.Cache.LRUSize)
	setBool("FG_ANALYTICS_ENABLED", &cfg.Analytics.Enabled)
	setBool("FG_AUTH_ENABLED", &cfg.Auth.Enabled)
	setInt("FG_AUTH_RATE_LIMIT", &cfg.Auth.RateLimit)
	if v := os.Getenv("FG_SERVER_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = strings.Split(v, ",")
	}
	setString("FG_LOGGING_LEVEL", &cfg.Logging.Level)
	setString("FG_LOGGING_FORMAT", &cfg.Logging.Format)
	setBool("FG_METRICS_ENABLED", &cfg.Metrics.Enabled)
	setInt("FG_METRICS_PORT", &cfg.Metrics.Port)
}
