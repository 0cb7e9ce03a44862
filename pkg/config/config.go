package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Log         struct {
		Level     string `yaml:"level"`
		Pretty    bool   `yaml:"pretty"`
		Collector struct {
			Enabled   bool          `yaml:"enabled"`
			Interval  time.Duration `yaml:"interval"`
			Threshold int           `yaml:"threshold"`
			Topic     string        `yaml:"topic"`
		} `yaml:"collector"`
	} `yaml:"log"`
	Server struct {
		Host            string        `yaml:"host"`
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		// Disabled removes the scrape endpoint; the zero value keeps it on.
		Disabled bool   `yaml:"disabled"`
		Path     string `yaml:"path"`
	} `yaml:"metrics"`
	Backend struct {
		Type         string        `yaml:"type"`
		BatchSize    int           `yaml:"batch_size"`
		BatchTimeout time.Duration `yaml:"batch_timeout"`
	} `yaml:"backend"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		ScanTopic    string   `yaml:"scan_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Quote struct {
		APIKey         string        `yaml:"api_key"`
		BaseURL        string        `yaml:"base_url"`
		WebSocketURL   string        `yaml:"websocket_url"`
		Symbols        []string      `yaml:"symbols"`
		RatePerMinute  int           `yaml:"rate_per_minute"`
		Burst          int           `yaml:"burst"`
		Timeout        time.Duration `yaml:"timeout"`
		MaxRetries     int           `yaml:"max_retries"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"quote"`
	Engine struct {
		Version     string `yaml:"version"`
		DefaultDays int    `yaml:"default_days"`
	} `yaml:"engine"`
	Screener struct {
		Concurrency  int           `yaml:"concurrency"`
		TopLimit     int           `yaml:"top_limit"`
		MinScore     int           `yaml:"min_score"`
		ScanInterval time.Duration `yaml:"scan_interval"`
	} `yaml:"screener"`
	Cache struct {
		Mode         string        `yaml:"mode"`
		CandleTTL    time.Duration `yaml:"candle_ttl"`
		PrefilterTTL time.Duration `yaml:"prefilter_ttl"`
		Redis        struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Queue struct {
		Enabled    bool          `yaml:"enabled"`
		Mode       string        `yaml:"mode"`
		Workers    int           `yaml:"workers"`
		KeyPrefix  string        `yaml:"key_prefix"`
		RetryLimit int           `yaml:"retry_limit"`
		RetryDelay time.Duration `yaml:"retry_delay"`
	} `yaml:"queue"`
	Watch struct {
		Enabled  bool          `yaml:"enabled"`
		TopN     int           `yaml:"top_n"`
		Interval time.Duration `yaml:"interval"`
	} `yaml:"watch"`
}

func parse(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &c, nil
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment
// variables. Validation runs after the overrides, so required values like
// the quote API key may come from the environment alone.
func LoadWithEnv(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("WAVESCAN_QUOTE_API_KEY"); v != "" {
		c.Quote.APIKey = v
	}
	if v := os.Getenv("WAVESCAN_SYMBOLS"); v != "" {
		c.Quote.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("WAVESCAN_BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("WAVESCAN_KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("WAVESCAN_KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("WAVESCAN_CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("WAVESCAN_CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("WAVESCAN_CACHE_MODE"); v != "" {
		c.Cache.Mode = v
	}
	if v := os.Getenv("WAVESCAN_REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv("WAVESCAN_ENGINE_VERSION"); v != "" {
		c.Engine.Version = v
	}
	if v := os.Getenv("WAVESCAN_SERVER_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("WAVESCAN_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Backend.Type == "" {
		return fmt.Errorf("backend.type is required")
	}
	switch c.Backend.Type {
	case "kafka", "clickhouse", "both":
	default:
		return fmt.Errorf("backend.type must be 'kafka', 'clickhouse' or 'both', got '%s'", c.Backend.Type)
	}
	if len(c.Quote.Symbols) == 0 {
		return fmt.Errorf("quote.symbols cannot be empty")
	}
	if c.Quote.APIKey == "" {
		return fmt.Errorf("quote.api_key is required")
	}
	if c.Engine.Version != "" && c.Engine.Version != "v0.1" && c.Engine.Version != "v0.2" {
		return fmt.Errorf("engine.version must be 'v0.1' or 'v0.2', got '%s'", c.Engine.Version)
	}
	switch c.Cache.Mode {
	case "", "memory", "redis", "layered":
	default:
		return fmt.Errorf("cache.mode must be 'memory', 'redis' or 'layered', got '%s'", c.Cache.Mode)
	}
	if (c.Cache.Mode == "redis" || c.Cache.Mode == "layered") && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr is required when cache.mode is '%s'", c.Cache.Mode)
	}
	if c.Engine.DefaultDays < 0 {
		return fmt.Errorf("engine.default_days cannot be negative")
	}
	if c.Screener.Concurrency < 0 {
		return fmt.Errorf("screener.concurrency cannot be negative")
	}
	return nil
}
