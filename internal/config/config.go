// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

// Config holds every environment-variable-tunable the process recognizes.
type Config struct {
	// WebPort overrides auto-discovered port selection when non-zero.
	WebPort int `envconfig:"WEB_PORT" default:"0"`
	// SSHTimeoutSeconds is the default per-command dispatcher timeout.
	SSHTimeoutSeconds int `envconfig:"SSH_TIMEOUT" default:"15"`
	// MaxSessions caps the number of concurrently registered sessions.
	MaxSessions int `envconfig:"MAX_SESSIONS" default:"32"`
	// LogLevel is parsed with logrus.ParseLevel.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// SSHTimeout is the configured command timeout as a time.Duration.
func (c Config) SSHTimeout() time.Duration {
	return time.Duration(c.SSHTimeoutSeconds) * time.Second
}

// Load reads an optional .env file (if present) and then the process
// environment into a Config, matching the teacher's godotenv+envconfig
// startup sequence.
func Load() (Config, error) {
	var cfg Config

	if err := godotenv.Load(); err != nil {
		logrus.Debugf("no .env file loaded: %v", err)
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to process environment config: %w", err)
	}

	return cfg, nil
}

// ApplyLogLevel parses cfg.LogLevel and sets it as logrus's level, falling
// back to Info on an unrecognized value.
func ApplyLogLevel(cfg Config) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.Warnf("unrecognized LOG_LEVEL %q, defaulting to info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}
