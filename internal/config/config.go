package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the warmup engine.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Warmup   WarmupConfig   `yaml:"warmup"`
	Jobs     JobsConfig     `yaml:"jobs"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection.
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_seconds"`
}

// Lifetime returns the connection max lifetime as a duration.
func (c DatabaseConfig) Lifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetime) * time.Second
}

// RedisConfig holds the optional Redis connection. When disabled, the
// shared send counter and cross-host job lock fall back to Postgres.
type RedisConfig struct {
	URL     string `yaml:"url"`
	Enabled bool   `yaml:"enabled"`
}

// WarmupConfig identifies the sending identity being warmed.
type WarmupConfig struct {
	ServerID   string `yaml:"server_id"`
	ServerName string `yaml:"server_name"`
}

// JobsConfig holds the periodic jobs runner settings.
type JobsConfig struct {
	Enabled             bool `yaml:"enabled"`
	TickIntervalSeconds int  `yaml:"tick_interval_seconds"`
	RecalcHourUTC       int  `yaml:"recalc_hour_utc"`
}

// Interval returns the jobs tick interval as a duration.
func (c JobsConfig) Interval() time.Duration {
	return time.Duration(c.TickIntervalSeconds) * time.Second
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	// Hour 0 is a valid recalc hour, so this default is seeded before
	// parsing rather than patched over a zero value afterwards.
	cfg.Jobs.RecalcHourUTC = 3
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 300
	}
	if cfg.Warmup.ServerID == "" {
		cfg.Warmup.ServerID = "marketing-primary"
	}
	if cfg.Warmup.ServerName == "" {
		cfg.Warmup.ServerName = cfg.Warmup.ServerID
	}
	if cfg.Jobs.TickIntervalSeconds == 0 {
		cfg.Jobs.TickIntervalSeconds = 3600
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// A .env file (if present) is loaded first, so secrets can live in .env
// locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("WARMUP_SERVER_ID"); v != "" {
		cfg.Warmup.ServerID = v
	}
	if v := os.Getenv("WARMUP_SERVER_NAME"); v != "" {
		cfg.Warmup.ServerName = v
	}

	return cfg, nil
}
