// Package config loads indexer settings from a YAML file and OBLAB_ environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"orderbook-lab/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g. OBLAB_POSTGRES_DSN.
const EnvPrefix = "OBLAB"

// Storage backends.
const (
	BackendMemory     = "memory"
	BackendPostgres   = "postgres"
	BackendClickHouse = "clickhouse"
	BackendRedis      = "redis"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the full indexer configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Log        LogConfig        `mapstructure:"log"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	ClickHouse ClickHouseConfig `mapstructure:"clickhouse"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Driver     DriverConfig     `mapstructure:"driver"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// AppConfig holds process-wide settings.
type AppConfig struct {
	Env string `mapstructure:"env"` // production | development
}

// LogConfig sets the minimum log level (debug, info, warn, error).
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// EngineConfig tunes the order book engine and its snapshot resolutions.
type EngineConfig struct {
	FlushThresholdBlocks  int64    `mapstructure:"flush_threshold_blocks"`
	Resolutions           []string `mapstructure:"resolutions"`
	SS58Prefix            uint16   `mapstructure:"ss58_prefix"`
	DailyStatsEveryBlocks int64    `mapstructure:"daily_stats_every_blocks"`
}

// StorageConfig picks a backend per entity.
type StorageConfig struct {
	OrderBooks string `mapstructure:"order_books"`
	Snapshots  string `mapstructure:"snapshots"`
	Progress   string `mapstructure:"progress"`
}

// PostgresConfig is used when any entity selects the postgres backend.
type PostgresConfig struct {
	DSN     string `mapstructure:"dsn"`
	Migrate bool   `mapstructure:"migrate"`
}

// ClickHouseConfig is used when snapshots or order books select clickhouse.
type ClickHouseConfig struct {
	DSN     string `mapstructure:"dsn"`
	Migrate bool   `mapstructure:"migrate"`
}

// RedisConfig is used by the redis backend. KeyPrefix namespaces every key.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// DriverConfig controls how the event log is read and how often the engine syncs.
type DriverConfig struct {
	EventsPath      string `mapstructure:"events_path"`
	SyncEveryBlocks int64  `mapstructure:"sync_every_blocks"`
}

// MetricsConfig sets the listen address of the /health and /metrics server.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load reads path (optional) and environment overrides on top of defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("log.level", "info")

	v.SetDefault("engine.flush_threshold_blocks", 60)
	v.SetDefault("engine.resolutions", []string{"DEFAULT", "HOUR", "DAY"})
	v.SetDefault("engine.ss58_prefix", 69)
	v.SetDefault("engine.daily_stats_every_blocks", 600)

	v.SetDefault("storage.order_books", BackendMemory)
	v.SetDefault("storage.snapshots", BackendMemory)
	v.SetDefault("storage.progress", BackendMemory)

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.migrate", true)
	v.SetDefault("clickhouse.dsn", "")
	v.SetDefault("clickhouse.migrate", true)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "oblab")

	v.SetDefault("driver.events_path", "")
	v.SetDefault("driver.sync_every_blocks", 1)

	v.SetDefault("metrics.addr", ":9090")
}

// Validate checks ranges, backend names and cross-field constraints.
func (c *Config) Validate() error {
	var errs []error

	if c.Engine.FlushThresholdBlocks <= 0 {
		errs = append(errs, errors.New("engine.flush_threshold_blocks must be positive"))
	}
	if c.Engine.DailyStatsEveryBlocks <= 0 {
		errs = append(errs, errors.New("engine.daily_stats_every_blocks must be positive"))
	}
	if c.Engine.SS58Prefix > 16383 {
		errs = append(errs, fmt.Errorf("engine.ss58_prefix %d out of range", c.Engine.SS58Prefix))
	}
	if _, err := c.Engine.ParsedResolutions(); err != nil {
		errs = append(errs, err)
	}
	if c.Driver.SyncEveryBlocks <= 0 {
		errs = append(errs, errors.New("driver.sync_every_blocks must be positive"))
	}

	for name, backend := range map[string]string{
		"storage.order_books": c.Storage.OrderBooks,
		"storage.snapshots":   c.Storage.Snapshots,
	} {
		switch backend {
		case BackendMemory, BackendPostgres, BackendClickHouse, BackendRedis:
		default:
			errs = append(errs, fmt.Errorf("%s: unknown backend %q", name, backend))
		}
	}
	switch c.Storage.Progress {
	case BackendMemory, BackendPostgres, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("storage.progress: unknown backend %q", c.Storage.Progress))
	}

	// order_book_snapshots references order_books in Postgres.
	if c.Storage.Snapshots == BackendPostgres && c.Storage.OrderBooks != BackendPostgres {
		errs = append(errs, errors.New("storage.snapshots=postgres requires storage.order_books=postgres"))
	}

	if c.uses(BackendPostgres) && c.Postgres.DSN == "" {
		errs = append(errs, errors.New("postgres.dsn is required"))
	}
	if c.uses(BackendClickHouse) && c.ClickHouse.DSN == "" {
		errs = append(errs, errors.New("clickhouse.dsn is required"))
	}
	if c.uses(BackendRedis) && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// ParsedResolutions returns the active resolutions in configured order.
func (e EngineConfig) ParsedResolutions() ([]domain.Resolution, error) {
	if len(e.Resolutions) == 0 {
		return nil, errors.New("engine.resolutions must not be empty")
	}
	seen := make(map[domain.Resolution]bool, len(e.Resolutions))
	out := make([]domain.Resolution, 0, len(e.Resolutions))
	for _, s := range e.Resolutions {
		r, err := domain.ParseResolution(s)
		if err != nil {
			return nil, fmt.Errorf("engine.resolutions: %w", err)
		}
		if seen[r] {
			return nil, fmt.Errorf("engine.resolutions: duplicate %s", r)
		}
		seen[r] = true
		out = append(out, r)
	}
	return out, nil
}

// IsProduction reports whether app.env selects production logging.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Env, "production")
}

func (c *Config) uses(backend string) bool {
	return c.Storage.OrderBooks == backend || c.Storage.Snapshots == backend || c.Storage.Progress == backend
}
