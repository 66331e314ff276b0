package config

import (
	"fmt"
	"strconv"
	"strings"
)

// EnvPrefix is the prefix of environment variables read by ApplyEnv.
const EnvPrefix = "STAGEROUTER_"

// envMapping maps environment variables to setters.
var envMapping = map[string]func(*Config, string) error{
	"STAGEROUTER_DEFAULT_PREFIX": func(c *Config, v string) error {
		c.Router.DefaultPrefix = v
		return nil
	},
	"STAGEROUTER_LOG_LEVEL": func(c *Config, v string) error {
		c.Logging.Level = v
		return nil
	},
	"STAGEROUTER_LOG_PRETTY": func(c *Config, v string) error {
		return setBool(&c.Logging.Pretty, v)
	},
	"STAGEROUTER_METRICS_ENABLED": func(c *Config, v string) error {
		return setBool(&c.Metrics.Enabled, v)
	},
	"STAGEROUTER_METRICS_NAMESPACE": func(c *Config, v string) error {
		c.Metrics.Namespace = v
		return nil
	},
}

// ApplyEnv overrides cfg from environ, a list of KEY=value pairs as
// returned by os.Environ. Unknown STAGEROUTER_ variables are ignored.
func ApplyEnv(cfg *Config, environ []string) error {
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		set, ok := envMapping[name]
		if !ok {
			continue
		}
		if err := set(cfg, value); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// setBool parses the boolean spellings accepted in environment variables.
func setBool(dst *bool, s string) error {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "on":
		*dst = true
		return nil
	case "no", "off", "":
		*dst = false
		return nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("%w: %q is not a boolean", ErrValidationFailed, s)
	}
	*dst = b
	return nil
}
