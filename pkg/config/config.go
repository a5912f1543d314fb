package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Host            string        `yaml:"host"`
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		AllowOrigins    []string      `yaml:"allow_origins"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Backend struct {
		URL     string        `yaml:"url"`
		Timeout time.Duration `yaml:"timeout"`
		Paths   struct {
			BacktestPair      string `yaml:"backtest_pair"`
			SavedCombinations string `yaml:"saved_combinations"`
			ZScoreChart       string `yaml:"zscore_chart"`
			SpreadChart       string `yaml:"spread_chart"`
			WindowSize        string `yaml:"window_size"`
			SetWindowSize     string `yaml:"set_window_size"`
		} `yaml:"paths"`
	} `yaml:"backend"`
	Dashboard struct {
		Pairs           []string      `yaml:"pairs"`
		LoadSaved       bool          `yaml:"load_saved"`
		RefreshInterval time.Duration `yaml:"refresh_interval"`
		ChartInterval   time.Duration `yaml:"chart_interval"`
		FetchTimeout    time.Duration `yaml:"fetch_timeout"`
		TopN            int           `yaml:"top_n"`
		WindowSize      int           `yaml:"window_size"`
		RefreshLimit    struct {
			Burst     float64 `yaml:"burst"`
			PerSecond float64 `yaml:"per_second"`
		} `yaml:"refresh_limit"`
	} `yaml:"dashboard"`
	Charts struct {
		EntryThreshold float64 `yaml:"entry_threshold"`
		ExitThreshold  float64 `yaml:"exit_threshold"`
		ZScoreAxis     float64 `yaml:"zscore_axis"`
	} `yaml:"charts"`
	Cache struct {
		Driver     string        `yaml:"driver"`
		TTL        time.Duration `yaml:"ttl"`
		LockTTL    time.Duration `yaml:"lock_ttl"`
		MaxEntries int           `yaml:"max_entries"`
		Cleanup    time.Duration `yaml:"cleanup_interval"`
		Redis      struct {
			Addr         string        `yaml:"addr"`
			Password     string        `yaml:"password"`
			DB           int           `yaml:"db"`
			Prefix       string        `yaml:"prefix"`
			PoolSize     int           `yaml:"pool_size"`
			MinIdleConns int           `yaml:"min_idle_conns"`
			PoolTimeout  time.Duration `yaml:"pool_timeout"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Kafka struct {
		Enabled        bool     `yaml:"enabled"`
		Brokers        []string `yaml:"brokers"`
		ResultsTopic   string   `yaml:"results_topic"`
		SnapshotsTopic string   `yaml:"snapshots_topic"`
		Compression    string   `yaml:"compression"`
		RequiredAcks   int      `yaml:"required_acks"`
		Producer       struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			BatchTimeout time.Duration `yaml:"batch_timeout"`
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
		} `yaml:"consumer"`
	} `yaml:"kafka"`
}

// overrides are read from the environment after .env is loaded. Empty values keep the file setting.
type overrides struct {
	Environment  string   `envconfig:"APP_ENV"`
	Port         int      `envconfig:"PORT"`
	BackendURL   string   `envconfig:"BACKEND_URL"`
	Pairs        string   `envconfig:"PAIRS"` // "BTC,ETH;SOL,AVAX"
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	RedisAddr    string   `envconfig:"REDIS_ADDR"`
	LogLevel     string   `envconfig:"LOG_LEVEL"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads .env if present, reads the YAML file and applies environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	c, err := read(path)
	if err != nil {
		return nil, err
	}

	var env overrides
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	c.apply(env)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func read(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

func splitPairs(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ";") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) apply(env overrides) {
	if env.Environment != "" {
		c.Environment = env.Environment
	}
	if env.Port > 0 {
		c.Server.Port = env.Port
	}
	if env.BackendURL != "" {
		c.Backend.URL = env.BackendURL
	}
	if env.Pairs != "" {
		c.Dashboard.Pairs = splitPairs(env.Pairs)
	}
	if len(env.KafkaBrokers) > 0 {
		c.Kafka.Brokers = env.KafkaBrokers
	}
	if env.RedisAddr != "" {
		c.Cache.Redis.Addr = env.RedisAddr
	}
	if env.LogLevel != "" {
		c.Logging.Level = env.LogLevel
	}
}

// Default returns the configuration used for anything the file leaves out.
func Default() *Config {
	c := &Config{Environment: "development"}
	c.Server.Host = "0.0.0.0"
	c.Server.Port = 8080
	c.Server.ReadTimeout = 10 * time.Second
	c.Server.WriteTimeout = 10 * time.Second
	c.Server.ShutdownTimeout = 15 * time.Second
	c.Logging.Level = "info"
	c.Logging.Format = "json"
	c.Logging.Output = "stdout"
	c.Metrics.Enabled = true
	c.Metrics.Path = "/metrics"
	c.Backend.Timeout = 10 * time.Second
	c.Dashboard.RefreshInterval = 30 * time.Second
	c.Dashboard.ChartInterval = 15 * time.Second
	c.Dashboard.FetchTimeout = 10 * time.Second
	c.Dashboard.TopN = 5
	c.Dashboard.WindowSize = 100
	c.Dashboard.RefreshLimit.Burst = 3
	c.Dashboard.RefreshLimit.PerSecond = 0.2
	c.Charts.EntryThreshold = 2.0
	c.Charts.ExitThreshold = 0.5
	c.Charts.ZScoreAxis = 5
	c.Cache.Driver = "memory"
	c.Cache.TTL = 10 * time.Minute
	c.Cache.LockTTL = 30 * time.Second
	c.Cache.MaxEntries = 1000
	c.Cache.Cleanup = 5 * time.Minute
	c.Cache.Redis.Prefix = "pairwatch"
	c.Cache.Redis.PoolSize = 10
	c.Cache.Redis.MinIdleConns = 2
	c.Cache.Redis.PoolTimeout = 30 * time.Second
	c.Kafka.ResultsTopic = "pairwatch.results"
	c.Kafka.SnapshotsTopic = "pairwatch.snapshots"
	c.Kafka.Compression = "gzip"
	c.Kafka.RequiredAcks = -1
	c.Kafka.Consumer.GroupID = "pairwatch"
	c.Kafka.Consumer.Workers = 2
	c.Kafka.Consumer.BufferSize = 64
	c.Kafka.Consumer.RetryMax = 3
	c.Kafka.Consumer.BackoffMin = 50 * time.Millisecond
	c.Kafka.Consumer.BackoffMax = 2 * time.Second
	return c
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Backend.URL == "" {
		return fmt.Errorf("backend.url is required")
	}
	if u, err := url.Parse(c.Backend.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.url is not an absolute url: %q", c.Backend.URL)
	}
	if len(c.Dashboard.Pairs) == 0 && !c.Dashboard.LoadSaved {
		return fmt.Errorf("dashboard.pairs cannot be empty unless dashboard.load_saved is set")
	}
	for _, p := range c.Dashboard.Pairs {
		if a, b, ok := strings.Cut(p, ","); !ok || strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
			return fmt.Errorf("dashboard.pairs: %q is not in A,B form", p)
		}
	}
	if c.Dashboard.RefreshInterval <= 0 {
		return fmt.Errorf("dashboard.refresh_interval must be positive")
	}
	if c.Dashboard.WindowSize < 10 || c.Dashboard.WindowSize > 1000 {
		return fmt.Errorf("dashboard.window_size must be within [10, 1000], got %d", c.Dashboard.WindowSize)
	}
	if c.Charts.ExitThreshold < 0 || c.Charts.EntryThreshold < c.Charts.ExitThreshold {
		return fmt.Errorf("charts: exit threshold must be in [0, entry]")
	}
	switch c.Cache.Driver {
	case "memory":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("cache.redis.addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("cache.driver must be 'memory' or 'redis', got '%s'", c.Cache.Driver)
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
		}
		if c.Kafka.ResultsTopic == "" && c.Kafka.SnapshotsTopic == "" {
			return fmt.Errorf("kafka needs a results or snapshots topic")
		}
	}
	return nil
}
