package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"NiftyEdge/pkg/util"
)

type Config struct {
	Environment string           `yaml:"environment" default:"development" validate:"required"`
	Log         LogConfig        `yaml:"log"`
	Server      ServerConfig     `yaml:"server"`
	Input       InputConfig      `yaml:"input"`
	Output      OutputConfig     `yaml:"output"`
	Thresholds  ThresholdsConfig `yaml:"thresholds"`
	Redis       RedisConfig      `yaml:"redis"`
	Cache       CacheConfig      `yaml:"cache"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	Queue       QueueConfig      `yaml:"queue"`
	RateLimit   RateLimitConfig  `yaml:"ratelimit"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"console" validate:"oneof=console json"`
	Output string `yaml:"output" default:"stdout"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	CORS            bool          `yaml:"cors" default:"true"`
	AllowOrigins    []string      `yaml:"allow_origins"`
}

// InputConfig locates the daily history. HeaderRow is 1-based; 0 searches the first rows.
type InputConfig struct {
	Path      string `yaml:"path" default:"Nifty Data.xlsx" validate:"required"`
	HeaderRow int    `yaml:"header_row" default:"3" validate:"gte=0"`
}

type OutputConfig struct {
	Dir string `yaml:"dir" default:"data" validate:"required"`
}

type ThresholdsConfig struct {
	Mode       string `yaml:"mode" default:"rolling" validate:"oneof=rolling frozen"`
	Window     int    `yaml:"window" default:"20" validate:"gt=0"`
	MinPeriods int    `yaml:"min_periods" default:"10" validate:"gt=0,ltefield=Window"`
	// SnapshotFile is a thresholds.json used by frozen mode. Empty means the run's own global pair.
	SnapshotFile string `yaml:"snapshot_file"`
}

type RedisConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Host           string        `yaml:"host" default:"localhost"`
	Port           int           `yaml:"port" default:"6379"`
	Password       string        `yaml:"password"`
	DB             int           `yaml:"db"`
	PoolSize       int           `yaml:"pool_size" default:"10"`
	MinIdleConns   int           `yaml:"min_idle_conns" default:"2"`
	Prefix         string        `yaml:"prefix" default:"niftyedge"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" default:"15s"`
}

type CacheConfig struct {
	ArtifactsTTL  time.Duration `yaml:"artifacts_ttl" default:"24h"`
	MemoryMaxSize int           `yaml:"memory_max_size" default:"256"`
	MemoryTTL     time.Duration `yaml:"memory_ttl" default:"5m"`
}

type ClickHouseConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"default"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
	WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout" default:"15s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	// HistorySource serves historical checks from daily_bars instead of the input file.
	HistorySource bool `yaml:"history_source"`
}

type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers" default:"[\"localhost:9092\"]"`
	Topic        string   `yaml:"topic" default:"niftyedge.artifacts"`
	RequiredAcks int      `yaml:"required_acks" default:"-1"`
	Compression  string   `yaml:"compression" default:"snappy"`
	Producer     struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"5"`
		Linger       time.Duration `yaml:"linger" default:"10ms"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
	} `yaml:"producer"`
	Consumer struct {
		Enabled    bool          `yaml:"enabled" default:"true"`
		GroupID    string        `yaml:"group_id" default:"niftyedge-api"`
		Workers    int           `yaml:"workers" default:"1"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
		DLQTopic   string        `yaml:"dlq_topic"`
	} `yaml:"consumer"`
}

// QueueConfig drives the Redis job queue; it needs redis.enabled.
type QueueConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Workers    int           `yaml:"workers" default:"1" validate:"gte=0"`
	RetryLimit int           `yaml:"retry_limit" default:"2" validate:"gte=0"`
	RetryDelay time.Duration `yaml:"retry_delay" default:"30s"`
	KeyPrefix  string        `yaml:"key_prefix" default:"niftyedge:queue"`
}

type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" default:"true"`
	RPS     float64 `yaml:"rps" default:"20" validate:"gt=0"`
	Burst   int     `yaml:"burst" default:"40" validate:"gt=0"`
	// IdleTTL evicts limiters of clients not seen for this long.
	IdleTTL time.Duration `yaml:"idle_ttl" default:"10m"`
}

var validate = validator.New()

// Default returns the configuration used when no file is given.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads .env (when present), then the YAML file, then applies environment
// overrides. An empty path skips the file.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var (
		c   *Config
		err error
	)
	if path == "" {
		c, err = Default()
	} else {
		c, err = Load(path)
	}
	if err != nil {
		return nil, err
	}

	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		*dst = util.ParseIntDefault(getenv(key), *dst)
	}
	flag := func(key string, dst *bool) {
		if v := getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	str("APP_ENV", &c.Environment)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	num("HTTP_PORT", &c.Server.Port)
	str("NIFTY_INPUT", &c.Input.Path)
	num("NIFTY_HEADER_ROW", &c.Input.HeaderRow)
	str("NIFTY_OUTPUT_DIR", &c.Output.Dir)
	str("THRESHOLD_MODE", &c.Thresholds.Mode)
	str("THRESHOLD_SNAPSHOT", &c.Thresholds.SnapshotFile)

	flag("REDIS_ENABLED", &c.Redis.Enabled)
	str("REDIS_HOST", &c.Redis.Host)
	num("REDIS_PORT", &c.Redis.Port)
	str("REDIS_PASSWORD", &c.Redis.Password)

	flag("CLICKHOUSE_ENABLED", &c.ClickHouse.Enabled)
	str("CLICKHOUSE_HOST", &c.ClickHouse.Host)
	str("CLICKHOUSE_USER", &c.ClickHouse.User)
	str("CLICKHOUSE_PASSWORD", &c.ClickHouse.Password)

	flag("KAFKA_ENABLED", &c.Kafka.Enabled)
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	str("KAFKA_TOPIC", &c.Kafka.Topic)

	flag("QUEUE_ENABLED", &c.Queue.Enabled)
}

// Validate checks field constraints and the dependencies between sections.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Queue.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("queue.enabled requires redis.enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty")
	}
	if c.ClickHouse.HistorySource && !c.ClickHouse.Enabled {
		return fmt.Errorf("clickhouse.history_source requires clickhouse.enabled")
	}
	return nil
}
