package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimal = `
environment: test
backend:
  url: http://backend:8000
dashboard:
  pairs: ["BTC,ETH"]
`

func TestLoadAppliesDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, minimal))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Port != 8080 || c.Dashboard.WindowSize != 100 || c.Charts.EntryThreshold != 2.0 {
		t.Fatalf("defaults not applied: %+v", c)
	}
	if c.Dashboard.RefreshInterval != 30*time.Second {
		t.Fatalf("refresh interval = %v", c.Dashboard.RefreshInterval)
	}
	if c.Cache.Driver != "memory" {
		t.Fatalf("cache driver = %q", c.Cache.Driver)
	}
	if c.Server.Host != "0.0.0.0" || c.Cache.Cleanup != 5*time.Minute || c.Cache.Redis.PoolSize != 10 {
		t.Fatalf("server/cache defaults not applied: %+v %+v", c.Server, c.Cache)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("BACKEND_URL", "http://other:9000")
	t.Setenv("PAIRS", "SOL,AVAX; LINK,DOT")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REDIS_ADDR", "redis:6379")

	c, err := LoadWithEnv(writeConfig(t, minimal))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Backend.URL != "http://other:9000" {
		t.Fatalf("backend url = %q", c.Backend.URL)
	}
	if len(c.Dashboard.Pairs) != 2 || c.Dashboard.Pairs[1] != "LINK,DOT" {
		t.Fatalf("pairs = %v", c.Dashboard.Pairs)
	}
	if len(c.Kafka.Brokers) != 2 || c.Kafka.Brokers[1] != "k2:9092" {
		t.Fatalf("brokers = %v", c.Kafka.Brokers)
	}
	if c.Logging.Level != "debug" || c.Cache.Redis.Addr != "redis:6379" {
		t.Fatalf("overrides not applied: %+v", c)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no backend", func(c *Config) { c.Backend.URL = "" }},
		{"relative backend", func(c *Config) { c.Backend.URL = "backend:8000" }},
		{"no pairs", func(c *Config) { c.Dashboard.Pairs = nil }},
		{"bad pair", func(c *Config) { c.Dashboard.Pairs = []string{"BTC"} }},
		{"window too small", func(c *Config) { c.Dashboard.WindowSize = 9 }},
		{"window too large", func(c *Config) { c.Dashboard.WindowSize = 1001 }},
		{"exit above entry", func(c *Config) { c.Charts.ExitThreshold = 3 }},
		{"unknown cache", func(c *Config) { c.Cache.Driver = "memcached" }},
		{"redis without addr", func(c *Config) { c.Cache.Driver = "redis"; c.Cache.Redis.Addr = "" }},
		{"kafka without brokers", func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Brokers = nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			c.Backend.URL = "http://backend:8000"
			c.Dashboard.Pairs = []string{"BTC,ETH"}
			if err := c.Validate(); err != nil {
				t.Fatalf("base config invalid: %v", err)
			}
			tc.mutate(c)
			if err := c.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadSavedAllowsEmptyPairs(t *testing.T) {
	c := Default()
	c.Backend.URL = "http://backend:8000"
	c.Dashboard.LoadSaved = true
	if err := c.Validate(); err != nil {
		t.Fatalf("load_saved with no pairs should validate: %v", err)
	}
}
