// Package config loads application configuration from defaults,
// an optional YAML file, and environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Defaults applied when neither the config file nor the environment
// provides a value.
const (
	DefaultPollInterval      = 5 * time.Second
	DefaultLockTimeout       = 5 * time.Minute
	DefaultReclaimInterval   = time.Minute
	DefaultJobHeartbeat      = 20 * time.Second
	DefaultWorkerHeartbeat   = 30 * time.Second
	DefaultCacheTTL          = time.Hour
	DefaultCacheSweep        = 10 * time.Minute
	DefaultRetryBaseDelay    = 5 * time.Minute
	DefaultRetryMaxDelay     = 2 * time.Hour
	DefaultBreakerThreshold  = 5
	DefaultBreakerCooldown   = 5 * time.Minute
	DefaultRateLimitCooldown = time.Hour
)

// ErrMissingDatabase is returned when no database connection settings are present.
var ErrMissingDatabase = errors.New("database configuration is required")

// Config is the root application configuration.
type Config struct {
	Worker      WorkerConfig      `mapstructure:"worker"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Marketplace MarketplaceConfig `mapstructure:"marketplace"`
	Logger      LoggerConfig      `mapstructure:"logger"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// WorkerConfig controls the claim-process loop and liveness signalling.
type WorkerConfig struct {
	ID                string        `mapstructure:"id"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	LockTimeout       time.Duration `mapstructure:"lock_timeout"`
	ReclaimInterval   time.Duration `mapstructure:"reclaim_interval"`
	JobHeartbeat      time.Duration `mapstructure:"job_heartbeat"`
	WorkerHeartbeat   time.Duration `mapstructure:"worker_heartbeat"`
	RetryBaseDelay    time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay     time.Duration `mapstructure:"retry_max_delay"`
	BreakerThreshold  int           `mapstructure:"breaker_threshold"`
	BreakerCooldown   time.Duration `mapstructure:"breaker_cooldown"`
	RateLimitCooldown time.Duration `mapstructure:"rate_limit_cooldown"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig holds the fleet registry connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CacheConfig controls the collection result memo cache.
type CacheConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// MarketplaceConfig holds credentials for the marketplace provider API.
type MarketplaceConfig struct {
	ClientID      string `mapstructure:"client_id"`
	ClientSecret  string `mapstructure:"client_secret"`
	MarketplaceID string `mapstructure:"marketplace_id"`
	Sandbox       bool   `mapstructure:"sandbox"`
}

// LoggerConfig mirrors logger.Config for viper unmarshalling.
type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Encoding    string `mapstructure:"encoding"`
	Development bool   `mapstructure:"development"`
}

// MetricsConfig controls the Prometheus metrics listener.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Load reads configuration from viper's merged sources into a Config.
func Load() (*Config, error) {
	setDefaults()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Database.Host == "" || c.Database.DBName == "" {
		return ErrMissingDatabase
	}
	if c.Worker.PollInterval <= 0 {
		return fmt.Errorf("worker poll_interval must be positive, got %s", c.Worker.PollInterval)
	}
	if c.Worker.LockTimeout <= 0 {
		return fmt.Errorf("worker lock_timeout must be positive, got %s", c.Worker.LockTimeout)
	}
	if c.Worker.RetryBaseDelay <= 0 || c.Worker.RetryMaxDelay < c.Worker.RetryBaseDelay {
		return fmt.Errorf("invalid retry delays: base %s, max %s",
			c.Worker.RetryBaseDelay, c.Worker.RetryMaxDelay)
	}
	return nil
}

// placeholderCredentials are values commonly left in sample .env files.
// Detecting them early turns a confusing provider auth failure into a
// clear configuration error.
var placeholderCredentials = []string{
	"changeme", "your-client-id", "your-client-secret", "xxx", "todo", "placeholder",
}

// HasPlaceholderCredentials reports whether the marketplace credentials
// look like unconfigured sample values.
func (m MarketplaceConfig) HasPlaceholderCredentials() bool {
	for _, v := range []string{m.ClientID, m.ClientSecret} {
		lowered := strings.ToLower(strings.TrimSpace(v))
		for _, p := range placeholderCredentials {
			if lowered == p {
				return true
			}
		}
	}
	return false
}

func setDefaults() {
	viper.SetDefault("worker", map[string]any{
		"id":                  "worker-1",
		"poll_interval":       DefaultPollInterval.String(),
		"lock_timeout":        DefaultLockTimeout.String(),
		"reclaim_interval":    DefaultReclaimInterval.String(),
		"job_heartbeat":       DefaultJobHeartbeat.String(),
		"worker_heartbeat":    DefaultWorkerHeartbeat.String(),
		"retry_base_delay":    DefaultRetryBaseDelay.String(),
		"retry_max_delay":     DefaultRetryMaxDelay.String(),
		"breaker_threshold":   DefaultBreakerThreshold,
		"breaker_cooldown":    DefaultBreakerCooldown.String(),
		"rate_limit_cooldown": DefaultRateLimitCooldown.String(),
	})

	viper.SetDefault("database", map[string]any{
		"host":    "127.0.0.1",
		"port":    "5432",
		"user":    "mintmark",
		"dbname":  "mintmark",
		"sslmode": "disable",
	})

	viper.SetDefault("redis", map[string]any{
		"addr": "127.0.0.1:6379",
		"db":   0,
	})

	viper.SetDefault("cache", map[string]any{
		"enabled":        true,
		"ttl":            DefaultCacheTTL.String(),
		"sweep_interval": DefaultCacheSweep.String(),
	})

	viper.SetDefault("marketplace", map[string]any{
		"marketplace_id": "EBAY_US",
		"sandbox":        false,
	})

	viper.SetDefault("logger", map[string]any{
		"level":       "info",
		"encoding":    "json",
		"development": false,
	})

	viper.SetDefault("metrics", map[string]any{
		"enabled": false,
		"addr":    ":9090",
	})
}
