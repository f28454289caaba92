package relayd

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the relay server's runtime configuration, loaded from YAML with
// zero-value fields filled from defaults.
type Config struct {
	Addr     string `yaml:"addr"`
	LogLevel string `yaml:"log_level"`

	// Store selects the record store backend: "memory" or "postgres".
	Store       string `yaml:"store"`
	PostgresDSN string `yaml:"postgres_dsn"`

	// RedisAddr, when set, bridges message events through a Redis channel so
	// multiple relay instances share one broadcast stream.
	RedisAddr    string `yaml:"redis_addr"`
	RedisChannel string `yaml:"redis_channel"`

	// Per-sender message rate limit.
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// DefaultConfig is a single-process development setup: in-memory store, no
// Redis bridge.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		LogLevel:        "info",
		Store:           "memory",
		RedisChannel:    "public:chat_messages",
		RateLimit:       RateLimitConfig{RPS: 5, Burst: 10},
		ShutdownTimeout: 10 * time.Second,
	}
}

// LoadConfig reads path over the defaults. An empty path returns the
// defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Store {
	case "memory":
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres store requires postgres_dsn")
		}
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate_limit needs positive rps and burst")
	}
	return nil
}
