// Package config loads server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all runtime settings. Values come from environment variables,
// optionally seeded from a .env file.
type Config struct {
	// HTTP server
	Port            int           `env:"PORT" envDefault:"8080"`
	StaticPath      string        `env:"STATIC_PATH" envDefault:"./public"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxUploadBytes  int64         `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`

	// Storage
	DBPath string `env:"DB_PATH" envDefault:"./data/budgetai.db"`

	// Budget planning. An empty key selects the local template planner.
	OpenAIAPIKey string `env:"OPENAI_API_KEY"`

	// Events. Publishing is disabled when no brokers are set.
	KafkaBrokers     []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopicPrefix string   `env:"KAFKA_TOPIC_PREFIX" envDefault:"budgetai."`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads the given .env files (missing files are ignored) and parses the
// environment into a Config.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		// Existing environment variables win over the file.
		_ = godotenv.Load(f)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// MockMode reports whether budget plans are generated without an LLM.
func (c *Config) MockMode() bool {
	return c.OpenAIAPIKey == ""
}

// EventsEnabled reports whether a Kafka publisher should be created.
func (c *Config) EventsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d: must be between 1 and 65535", c.Port))
	}
	if strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, errors.New("DB_PATH cannot be empty"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("invalid shutdown timeout %s: must be positive", c.ShutdownTimeout))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("invalid max upload size %d: must be positive", c.MaxUploadBytes))
	}
	for _, b := range c.KafkaBrokers {
		if strings.TrimSpace(b) == "" {
			errs = append(errs, errors.New("KAFKA_BROKERS contains an empty entry"))
			break
		}
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", c.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %w", errors.Join(errs...))
	}
	return nil
}
