// Package config loads process configuration from defaults, an optional YAML
// file, a .env file and VQ_ prefixed environment variables, in rising priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. VQ_SERVER_ADDR.
const EnvPrefix = "VQ"

// Storage backends.
const (
	BackendMemory = "memory"
	BackendSQL    = "sql"
)

// Config is the full process configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Warehouse  WarehouseConfig  `mapstructure:"warehouse"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Client     ClientConfig     `mapstructure:"client"`
}

// ServerConfig covers the HTTP listeners.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	MetricsAddr     string        `mapstructure:"metrics_addr"`
	RatePerSecond   float64       `mapstructure:"rate_per_second" validate:"gte=0"`
	Burst           int           `mapstructure:"burst" validate:"gte=0"`
	AllowOrigins    []string      `mapstructure:"allow_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// LogConfig selects the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

// SimulationConfig seeds the stepper.
type SimulationConfig struct {
	// Seed of zero draws from entropy.
	Seed       uint64  `mapstructure:"seed"`
	UptimeStep float64 `mapstructure:"uptime_step" validate:"gt=0"`
}

// StorageConfig selects where alerts and time series live.
type StorageConfig struct {
	Backend       string `mapstructure:"backend" validate:"oneof=memory sql"`
	PostgresDSN   string `mapstructure:"postgres_dsn" validate:"required_if=Backend sql"`
	ClickhouseDSN string `mapstructure:"clickhouse_dsn" validate:"required_if=Backend sql"`
	MaxConns      int32  `mapstructure:"max_conns" validate:"gte=1"`
	// Retention and MaxRows bound the memory backend. Zero keeps the store default.
	Retention time.Duration `mapstructure:"retention" validate:"gte=0"`
	MaxRows   int           `mapstructure:"max_rows" validate:"gte=0"`
}

// WarehouseConfig tunes the recorder and its circuit breaker.
type WarehouseConfig struct {
	QueueSize    int           `mapstructure:"queue_size" validate:"gte=1"`
	CallTimeout  time.Duration `mapstructure:"call_timeout" validate:"gt=0"`
	OpenFor      time.Duration `mapstructure:"open_for" validate:"gt=0"`
	MinRequests  uint32        `mapstructure:"min_requests" validate:"gte=1"`
	FailureRatio float64       `mapstructure:"failure_ratio" validate:"gt=0,lte=1"`
}

// RedisConfig enables the warm restart snapshot cache.
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db" validate:"gte=0"`
	Key      string        `mapstructure:"key" validate:"required"`
	TTL      time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

// KafkaConfig enables event fan-out.
type KafkaConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	Brokers       []string `mapstructure:"brokers"`
	SnapshotTopic string   `mapstructure:"snapshot_topic" validate:"required"`
	AlertTopic    string   `mapstructure:"alert_topic" validate:"required"`
}

// ClientConfig is used by the watch command.
type ClientConfig struct {
	BaseURL        string        `mapstructure:"base_url" validate:"required,url"`
	PollInterval   time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	MetricsTimeout time.Duration `mapstructure:"metrics_timeout" validate:"gt=0"`
	ControlTimeout time.Duration `mapstructure:"control_timeout" validate:"gt=0"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl" validate:"gte=0"`
}

// New returns a viper instance with every default registered and
// environment overrides enabled.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.metrics_addr", ":9090")
	v.SetDefault("server.rate_per_second", 50.0)
	v.SetDefault("server.burst", 100)
	v.SetDefault("server.allow_origins", []string{})
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("simulation.seed", 0)
	v.SetDefault("simulation.uptime_step", 0.001)

	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("storage.clickhouse_dsn", "")
	v.SetDefault("storage.max_conns", 10)
	v.SetDefault("storage.retention", 24*time.Hour)
	v.SetDefault("storage.max_rows", 86400)

	v.SetDefault("warehouse.queue_size", 256)
	v.SetDefault("warehouse.call_timeout", 2*time.Second)
	v.SetDefault("warehouse.open_for", 30*time.Second)
	v.SetDefault("warehouse.min_requests", 5)
	v.SetDefault("warehouse.failure_ratio", 0.5)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key", "vectorquant:snapshot")
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.snapshot_topic", "vectorquant.metrics")
	v.SetDefault("kafka.alert_topic", "vectorquant.alerts")

	v.SetDefault("client.base_url", "http://127.0.0.1:8000")
	v.SetDefault("client.poll_interval", time.Second)
	v.SetDefault("client.metrics_timeout", 2*time.Second)
	v.SetDefault("client.control_timeout", time.Second)
	v.SetDefault("client.cache_ttl", time.Second)
}

// LoadEnvFile loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Load merges the optional YAML file at path into v, then decodes and
// validates the result.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New()

// ErrNoBrokers is returned when Kafka is enabled without brokers.
var ErrNoBrokers = errors.New("kafka enabled without brokers")

// Validate checks cfg against its field constraints.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("invalid config: %w", ErrNoBrokers)
	}
	return nil
}
