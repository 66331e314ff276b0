package config

import (
	"errors"
	"regexp"
	"strings"

	"github.com/dshills/stagerouter/internal/router"
)

// Config holds all settings.
type Config struct {
	Router  RouterConfig  `yaml:"router" toml:"router" json:"router"`
	Logging LoggingConfig `yaml:"logging" toml:"logging" json:"logging"`
	Metrics MetricsConfig `yaml:"metrics" toml:"metrics" json:"metrics"`
}

// RouterConfig configures the event router.
type RouterConfig struct {
	// DefaultPrefix is the handler naming-convention prefix.
	DefaultPrefix string `yaml:"default_prefix" toml:"default_prefix" json:"default_prefix"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error or off.
	Level string `yaml:"level" toml:"level" json:"level"`
	// Pretty enables console output instead of JSON.
	Pretty bool `yaml:"pretty" toml:"pretty" json:"pretty"`
}

// MetricsConfig configures Prometheus instrumentation.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled" json:"enabled"`
	Namespace string `yaml:"namespace" toml:"namespace" json:"namespace"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Router: RouterConfig{
			DefaultPrefix: router.DefaultPrefix,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Namespace: "stagerouter",
		},
	}
}

var (
	validLevels    = map[string]bool{"debug": true, "trace": true, "info": true, "warn": true, "warning": true, "error": true, "off": true}
	metricNameExpr = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

// Validate checks every setting and returns all problems found.
func (c *Config) Validate() error {
	var errs []error

	if c.Router.DefaultPrefix == "" {
		errs = append(errs, &ValidationError{Path: "router.default_prefix", Message: "must not be empty"})
	}
	if !validLevels[strings.ToLower(strings.TrimSpace(c.Logging.Level))] {
		errs = append(errs, &ValidationError{Path: "logging.level", Message: "unknown level " + c.Logging.Level})
	}
	if c.Metrics.Enabled && !metricNameExpr.MatchString(c.Metrics.Namespace) {
		errs = append(errs, &ValidationError{Path: "metrics.namespace", Message: "not a valid metric name: " + c.Metrics.Namespace})
	}

	return errors.Join(errs...)
}
