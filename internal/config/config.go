// Package config loads service configuration from defaults, an optional YAML
// file, and environment variables, in that order. Later sources win.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// DefaultPath is consulted when CONFIG_FILE is not set.
const DefaultPath = "config/winddown.yaml"

// Config is the root configuration for the winddown service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Audit     AuditConfig     `yaml:"audit"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host        string   `yaml:"host" env:"SERVER_HOST"`
	Port        int      `yaml:"port" env:"SERVER_PORT"`
	CORSOrigins []string `yaml:"cors_origins" env:"SERVER_CORS_ORIGINS"`
}

// DatabaseConfig selects the storage backend. Driver "postgres" requires a
// DSN; driver "memory" keeps everything in process.
type DatabaseConfig struct {
	Driver          string `yaml:"driver" env:"DATABASE_DRIVER"`
	DSN             string `yaml:"dsn" env:"DATABASE_DSN"`
	MaxOpenConns    int    `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME"`
}

// LoggingConfig mirrors logger.LoggingConfig.
type LoggingConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL"`
	Format     string `yaml:"format" env:"LOG_FORMAT"`
	Output     string `yaml:"output" env:"LOG_OUTPUT"`
	FilePrefix string `yaml:"file_prefix" env:"LOG_FILE_PREFIX"`
}

// AuthConfig carries the RSA public key used to verify bearer tokens. Paths
// listed in SkipPaths bypass authentication.
type AuthConfig struct {
	JWTPublicKey string   `yaml:"jwt_public_key" env:"AUTH_JWT_PUBLIC_KEY"`
	SkipPaths    []string `yaml:"skip_paths"`
}

// RateLimitConfig tunes per-user request throttling. When RedisAddr is set
// the limiter counts across instances; otherwise it is process local.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled" env:"RATE_LIMIT_ENABLED"`
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"RATE_LIMIT_RPS"`
	Burst             int     `yaml:"burst" env:"RATE_LIMIT_BURST"`
	RedisAddr         string  `yaml:"redis_addr" env:"RATE_LIMIT_REDIS_ADDR"`
}

// MetricsConfig controls the Prometheus endpoint and the resource sampler.
type MetricsConfig struct {
	Enabled        bool   `yaml:"enabled" env:"METRICS_ENABLED"`
	SampleSchedule string `yaml:"sample_schedule" env:"METRICS_SAMPLE_SCHEDULE"`
}

// AuditConfig bounds the in-memory audit ring. File, when set, names a JSONL
// file that additionally receives every entry.
type AuditConfig struct {
	MaxEntries int    `yaml:"max_entries" env:"AUDIT_MAX_ENTRIES"`
	File       string `yaml:"file" env:"AUDIT_FILE"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Driver:          "memory",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 300,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Auth: AuthConfig{
			SkipPaths: []string{"/healthz", "/metrics"},
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 10,
			Burst:             20,
		},
		Metrics: MetricsConfig{
			Enabled:        true,
			SampleSchedule: "@every 15s",
		},
		Audit: AuditConfig{
			MaxEntries: 200,
		},
	}
}

// Load reads configuration from the file named by CONFIG_FILE (or DefaultPath
// when unset) and overlays environment variables. A missing file is not an
// error; the defaults plus environment apply.
func Load() (*Config, error) {
	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = DefaultPath
	}
	return LoadFromPath(path)
}

// LoadFromPath is Load with an explicit file path.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// defaults plus environment
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("database dsn is required when driver is postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerSecond <= 0 {
			return errors.New("rate limit requests_per_second must be positive")
		}
		if c.RateLimit.Burst <= 0 {
			return errors.New("rate limit burst must be positive")
		}
	}
	return nil
}
