// Package config provides environment-driven configuration with
// defaults and fail-fast validation at startup.
package config

import (
	"fmt"
	"strconv"
	"time"
)

// Config holds all application settings.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Upload    UploadConfig
	Retention RetentionConfig
	Rate      RateLimitConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout bounds a single request in middleware; report
	// rendering for large datasets runs inside it.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig selects and tunes the dataset store.
type DatabaseConfig struct {
	// Driver is "sqlite" (embedded, default) or "postgres".
	Driver string `env:"DB_DRIVER" default:"sqlite"`

	// Path is the SQLite database file (":memory:" for ephemeral).
	Path string `env:"DB_PATH" default:"equipstats.db"`

	// URL is the PostgreSQL connection string; required when
	// Driver is "postgres".
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns int `env:"DB_MAX_CONNS" default:"10"`
	MinConns int `env:"DB_MIN_CONNS" default:"2"`
}

// UploadConfig holds CSV upload limits.
type UploadConfig struct {
	// MaxFileSize is the maximum accepted upload in bytes (default 25MB).
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"26214400"`
}

// RetentionConfig controls pruning of old datasets.
type RetentionConfig struct {
	// MaxDatasets keeps only the newest N datasets; 0 keeps everything.
	MaxDatasets int `env:"RETENTION_MAX_DATASETS" default:"0"`

	// SweepSchedule is a cron expression for the periodic prune; the
	// sweep only runs when MaxDatasets > 0.
	SweepSchedule string `env:"RETENTION_SWEEP_SCHEDULE" default:"@hourly"`
}

// RateLimitConfig holds per-IP request throttling settings.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" default:"info"`
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port form.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Validate checks the loaded configuration for nonsense values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("DB_PATH must be set for the sqlite driver")
		}
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL must be set for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database driver %q (want sqlite or postgres)", c.Database.Driver)
	}

	if c.Upload.MaxFileSize <= 0 {
		return fmt.Errorf("UPLOAD_MAX_FILE_SIZE must be positive")
	}
	if c.Retention.MaxDatasets < 0 {
		return fmt.Errorf("RETENTION_MAX_DATASETS must not be negative")
	}
	if c.Rate.Enabled && c.Rate.RequestsPerMinute < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}

	return nil
}
