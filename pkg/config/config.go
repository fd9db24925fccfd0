// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Store, Postgres, Redis, Kafka, Retrieval, Answer, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Answer    AnswerConfig    `yaml:"answer"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	MaxUploadBytes  int64         `yaml:"maxUploadBytes"`

	// RateLimitPerMinute caps requests per client IP. Zero disables it.
	RateLimitPerMinute int      `yaml:"rateLimitPerMinute"`
	CORSOrigins        []string `yaml:"corsOrigins"`
}

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// StoreConfig selects the record store backend.
type StoreConfig struct {
	Driver     string `yaml:"driver"`
	SQLitePath string `yaml:"sqlitePath"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// RedisConfig holds Redis connection and answer-cache parameters. An empty
// Addr disables the cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds broker settings for record-change notifications. An
// empty broker list disables publishing and consuming.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	RecordChanges string `yaml:"recordChanges"`
}

// RetrievalConfig controls query limits and source snippets.
type RetrievalConfig struct {
	DefaultTopK   int `yaml:"defaultTopK"`
	MaxTopK       int `yaml:"maxTopK"`
	SnippetLength int `yaml:"snippetLength"`
}

// Answer providers.
const (
	ProviderSimple = "simple"
	ProviderOpenAI = "openai"
)

// AnswerConfig selects and configures the answer composer.
type AnswerConfig struct {
	Provider         string        `yaml:"provider"`
	Model            string        `yaml:"model"`
	APIKey           string        `yaml:"apiKey"`
	BaseURL          string        `yaml:"baseUrl"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold int           `yaml:"failureThreshold"`
	ResetTimeout     time.Duration `yaml:"resetTimeout"`
}

// AnalyticsConfig controls the in-process query analytics. A zero
// SnapshotInterval disables persisting snapshots to the record store.
type AnalyticsConfig struct {
	BufferSize       int           `yaml:"bufferSize"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
}

// TracingConfig controls span logging.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
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

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values.
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

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.Answer.Provider {
	case ProviderSimple, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown answer provider %q", c.Answer.Provider)
	}
	if c.Retrieval.DefaultTopK < 0 || c.Retrieval.MaxTopK < 1 {
		return fmt.Errorf("retrieval limits must be positive (defaultTopK=%d maxTopK=%d)",
			c.Retrieval.DefaultTopK, c.Retrieval.MaxTopK)
	}
	return nil
}

// defaultConfig returns a Config suited to local development: a SQLite file
// store, no Redis, no Kafka, and the extractive answer composer.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RequestTimeout:  60 * time.Second,
			MaxUploadBytes:  32 << 20,
			CORSOrigins:     []string{"*"},
		},
		Store: StoreConfig{
			Driver:     DriverSQLite,
			SQLitePath: "./data.db",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "supportassistant",
			User:            "supportassistant",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			PoolSize: 10,
			CacheTTL: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			ConsumerGroup: "support-assistant",
			Topics: KafkaTopics{
				RecordChanges: "record-changes",
			},
		},
		Retrieval: RetrievalConfig{
			DefaultTopK:   5,
			MaxTopK:       50,
			SnippetLength: 500,
		},
		Answer: AnswerConfig{
			Provider:         ProviderSimple,
			Model:            "gpt-4o-mini",
			Timeout:          20 * time.Second,
			FailureThreshold: 3,
			ResetTimeout:     30 * time.Second,
		},
		Analytics: AnalyticsConfig{
			BufferSize:       10000,
			SnapshotInterval: 5 * time.Minute,
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

// applyEnvOverrides reads SA_* environment variables, along with the
// conventional PORT, LLM_PROVIDER and OPENAI_API_KEY, and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setInt("PORT", &cfg.Server.Port)
	setInt("SA_SERVER_PORT", &cfg.Server.Port)
	setInt("SA_SERVER_RATE_LIMIT", &cfg.Server.RateLimitPerMinute)
	setString("SA_STORE_DRIVER", &cfg.Store.Driver)
	setString("SA_STORE_SQLITE_PATH", &cfg.Store.SQLitePath)
	setString("SA_POSTGRES_HOST", &cfg.Postgres.Host)
	setInt("SA_POSTGRES_PORT", &cfg.Postgres.Port)
	setString("SA_POSTGRES_DATABASE", &cfg.Postgres.Database)
	setString("SA_POSTGRES_USER", &cfg.Postgres.User)
	setString("SA_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	setString("SA_POSTGRES_SSLMODE", &cfg.Postgres.SSLMode)
	setString("SA_REDIS_ADDR", &cfg.Redis.Addr)
	setString("SA_REDIS_PASSWORD", &cfg.Redis.Password)
	if v := os.Getenv("SA_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	setInt("SA_RETRIEVAL_DEFAULT_TOP_K", &cfg.Retrieval.DefaultTopK)
	setInt("SA_RETRIEVAL_MAX_TOP_K", &cfg.Retrieval.MaxTopK)
	setString("LLM_PROVIDER", &cfg.Answer.Provider)
	setString("SA_ANSWER_PROVIDER", &cfg.Answer.Provider)
	setString("SA_ANSWER_MODEL", &cfg.Answer.Model)
	setString("OPENAI_API_KEY", &cfg.Answer.APIKey)
	setString("SA_ANSWER_BASE_URL", &cfg.Answer.BaseURL)
	cfg.Answer.Provider = strings.ToLower(cfg.Answer.Provider)
	setString("SA_LOGGING_LEVEL", &cfg.Logging.Level)
	setString("SA_LOGGING_FORMAT", &cfg.Logging.Format)
	if v := os.Getenv("SA_TRACING_ENABLED"); v != "" {
		cfg.Tracing.Enabled = v == "true" || v == "1"
	}
}
