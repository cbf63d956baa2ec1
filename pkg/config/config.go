package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"0"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Postgres struct {
		Host         string        `yaml:"host" default:"localhost"`
		Port         int           `yaml:"port" default:"5432"`
		Database     string        `yaml:"database"`
		User         string        `yaml:"user"`
		Password     string        `yaml:"password"`
		SSLMode      string        `yaml:"ssl_mode" default:"disable"`
		MinConns     int32         `yaml:"min_conns" default:"2"`
		MaxConns     int32         `yaml:"max_conns" default:"10"`
		QueryTimeout time.Duration `yaml:"query_timeout" default:"10s"`
		Bootstrap    bool          `yaml:"bootstrap"`
	} `yaml:"postgres"`
	Provider struct {
		BaseURL        string        `yaml:"base_url" default:"https://www.alphavantage.co"`
		APIKey         string        `yaml:"api_key"`
		Timeout        time.Duration `yaml:"timeout" default:"30s"`
		CallsPerMinute int           `yaml:"calls_per_minute" default:"5"`
	} `yaml:"provider"`
	Ingest struct {
		BackfillBatchSize int `yaml:"backfill_batch_size" default:"1000"`
	} `yaml:"ingest"`
	Scheduler struct {
		Enabled     bool          `yaml:"enabled"`
		Interval    time.Duration `yaml:"interval" default:"1m"`
		Symbols     []string      `yaml:"symbols"`
		Granularity string        `yaml:"granularity" default:"1m"`
		ActiveStart string        `yaml:"active_start"` // HH:MM UTC, empty means always active
		ActiveEnd   string        `yaml:"active_end"`
	} `yaml:"scheduler"`
	Cache struct {
		Backend    string `yaml:"backend" default:"memory"` // memory or layered
		MaxEntries int    `yaml:"max_entries" default:"4096"`
		TTL        struct {
			OneMinute     time.Duration `yaml:"1m" default:"30s"`
			FifteenMinute time.Duration `yaml:"15m" default:"2m"`
			SixtyMinute   time.Duration `yaml:"60m" default:"5m"`
			Daily         time.Duration `yaml:"1d" default:"10m"`
		} `yaml:"ttl"`
		Redis struct {
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix" default:"tta"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Bus struct {
		Type       string `yaml:"type" default:"inproc"` // inproc or kafka
		BufferSize int    `yaml:"buffer_size" default:"256"`
		Kafka      struct {
			Brokers      []string      `yaml:"brokers"`
			Topic        string        `yaml:"topic" default:"tta.bars"`
			GroupID      string        `yaml:"group_id" default:"tta-bridge"`
			RequiredAcks int           `yaml:"required_acks" default:"1"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"5s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			MinBytes     int           `yaml:"min_bytes" default:"1"`
			MaxBytes     int           `yaml:"max_bytes" default:"1048576"`
		} `yaml:"kafka"`
	} `yaml:"bus"`
	Stream struct {
		HeartbeatInterval time.Duration `yaml:"heartbeat_interval" default:"30s"`
		BufferSize        int           `yaml:"buffer_size" default:"64"`
		WriteTimeout      time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"stream"`
	API struct {
		RateLimitCapacity float64 `yaml:"rate_limit_capacity" default:"30"`
		RateLimitRefill   float64 `yaml:"rate_limit_refill" default:"10"` // tokens per second per client
	} `yaml:"api"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Fill unset fields before validating
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("PROVIDER_API_KEY"); v != "" {
		c.Provider.APIKey = v
	}
	if v := os.Getenv("PROVIDER_BASE_URL"); v != "" {
		c.Provider.BaseURL = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		c.Postgres.Host = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		c.Postgres.Password = v
	}
	if v := os.Getenv("POSTGRES_DATABASE"); v != "" {
		c.Postgres.Database = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Bus.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Bus.Kafka.Topic = v
	}
	if v := os.Getenv("BUS"); v != "" {
		c.Bus.Type = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Scheduler.Symbols = strings.Split(v, ",")
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Postgres.Database == "" {
		return fmt.Errorf("postgres.database is required")
	}
	if c.Postgres.User == "" {
		return fmt.Errorf("postgres.user is required")
	}
	if c.Provider.APIKey == "" {
		return fmt.Errorf("provider.api_key is required")
	}
	if c.Provider.CallsPerMinute <= 0 {
		return fmt.Errorf("provider.calls_per_minute must be positive, got %d", c.Provider.CallsPerMinute)
	}
	if c.Cache.Backend != "memory" && c.Cache.Backend != "layered" {
		return fmt.Errorf("cache.backend must be 'memory' or 'layered', got '%s'", c.Cache.Backend)
	}
	if c.Bus.Type != "inproc" && c.Bus.Type != "kafka" {
		return fmt.Errorf("bus.type must be 'inproc' or 'kafka', got '%s'", c.Bus.Type)
	}
	if c.Bus.Type == "kafka" && len(c.Bus.Kafka.Brokers) == 0 {
		return fmt.Errorf("bus.kafka.brokers cannot be empty when bus.type is 'kafka'")
	}
	if c.Scheduler.Enabled && len(c.Scheduler.Symbols) == 0 {
		return fmt.Errorf("scheduler.symbols cannot be empty when scheduler is enabled")
	}
	return nil
}
