// Package config loads the server configuration from file and environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/comnet/modserve/internal/ratelimit"
)

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// ThrottleConfig selects and parameterizes the IP rate limiter.
type ThrottleConfig struct {
	// Backend is "memory" (default) or "redis".
	Backend    string  `mapstructure:"backend" yaml:"backend"`
	BucketSize int     `mapstructure:"bucket_size" yaml:"bucket_size"`
	RefillRate float64 `mapstructure:"refill_rate" yaml:"refill_rate"`
}

// RedisConfig configures the distributed limiter backend.
type RedisConfig struct {
	Address  string `mapstructure:"address" yaml:"address"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

// KeyConfig holds the server's signing identity.
type KeyConfig struct {
	// Seed is a hex-encoded 32-byte seed. Empty means generate a fresh
	// keypair at startup.
	Seed   string `mapstructure:"seed" yaml:"seed"`
	Scheme int    `mapstructure:"scheme" yaml:"scheme"`
}

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Throttle ThrottleConfig `mapstructure:"throttle" yaml:"throttle"`
	Redis    RedisConfig    `mapstructure:"redis" yaml:"redis"`
	Key      KeyConfig      `mapstructure:"key" yaml:"key"`

	// MaxRequestStaleness bounds, in seconds, how old a request's optional
	// x-timestamp claim may be. Zero disables the check.
	MaxRequestStaleness int    `mapstructure:"max_request_staleness" yaml:"max_request_staleness"`
	LogLevel            string `mapstructure:"log_level" yaml:"log_level"`
}

// LoadConfig reads configs/config.yaml (if present) with MODSERVE_* env
// overrides and returns the effective configuration.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	v.SetEnvPrefix("MODSERVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := ratelimit.DefaultConfig()
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("throttle.backend", "memory")
	v.SetDefault("throttle.bucket_size", defaults.BucketSize)
	v.SetDefault("throttle.refill_rate", defaults.RefillRate)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("key.scheme", 1) // sr25519
	v.SetDefault("max_request_staleness", 60)
	v.SetDefault("log_level", "info")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	switch cfg.Throttle.Backend {
	case "memory", "redis":
	default:
		return nil, fmt.Errorf("unknown throttle backend %q", cfg.Throttle.Backend)
	}

	return &cfg, nil
}

// Addr returns the host:port the HTTP server binds to.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// LimiterConfig converts the throttle section to the limiter's config type.
func (c *Config) LimiterConfig() ratelimit.Config {
	return ratelimit.Config{
		BucketSize: c.Throttle.BucketSize,
		RefillRate: c.Throttle.RefillRate,
	}
}
