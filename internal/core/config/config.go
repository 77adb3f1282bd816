package config

import (
	"time"

	redisclient "github.com/trungha/formgate/internal/infra/redis"
	"github.com/trungha/formgate/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Feeds    []FeedConfig       `yaml:"feeds"`
	Upload   UploadConfig       `yaml:"upload"`
	Redis    redisclient.Config `yaml:"redis"`
	Logging  LoggingConfig      `yaml:"logging"`
	Database postgres.Config    `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// FeedConfig holds settings for one upstream feed endpoint.
type FeedConfig struct {
	Name          string            `yaml:"name"`
	URL           string            `yaml:"url"`
	Headers       map[string]string `yaml:"headers"`
	RetryAttempts int               `yaml:"retry_attempts"`
	RetryDelay    time.Duration     `yaml:"retry_delay"`
	CacheTTL      time.Duration     `yaml:"cache_ttl"` // 0 = no caching
}

// UploadConfig holds admission rules for upload sessions.
type UploadConfig struct {
	MaxSize    int64         `yaml:"max_size"`  // bytes per file
	MaxFiles   int           `yaml:"max_files"` // files per session
	Accept     string        `yaml:"accept"`    // comma-separated MIME/extension patterns
	SessionTTL time.Duration `yaml:"session_ttl"`
}
