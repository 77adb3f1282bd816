package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults if necessary
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	if cfg.Upload.MaxSize == 0 {
		cfg.Upload.MaxSize = 10 * 1024 * 1024
	}
	if cfg.Upload.MaxFiles == 0 {
		cfg.Upload.MaxFiles = 10
	}
	if cfg.Upload.SessionTTL == 0 {
		cfg.Upload.SessionTTL = 1 * time.Hour
	}

	for i := range cfg.Feeds {
		if cfg.Feeds[i].RetryAttempts == 0 {
			cfg.Feeds[i].RetryAttempts = 3
		}
		if cfg.Feeds[i].RetryDelay == 0 {
			cfg.Feeds[i].RetryDelay = 1 * time.Second
		}
	}

	return &cfg, nil
}
