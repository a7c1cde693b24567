// Package config loads and validates the provider configuration.
//
// DESIGN: Configuration comes from one YAML file (or the embedded default).
// Site-wide settings are the fallback for every provider instance, and each
// instance may override credentials, region, rate limits and per-action
// settings. Resolve() collapses the layers into an immutable Snapshot once
// per invocation.
//
// FILES:
//   - config.go:     Root Config struct, Load(), Validate()
//   - provider.go:   Site and instance settings, extra params validation
//   - backends.go:   Transport, rate limit, drafts and usage backends
//   - resolve.go:    Resolver and Snapshot
//   - monitoring.go: Logging, telemetry and metrics settings
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the Bedrock provider.
type Config struct {
	Server     ServerConfig              `yaml:"server"`     // HTTP server settings
	Site       SiteConfig                `yaml:"site"`       // Site-wide provider settings
	Instances  map[string]InstanceConfig `yaml:"instances"`  // Provider instances by id
	Transport  TransportConfig           `yaml:"transport"`  // Bedrock invocation settings
	RateLimit  RateLimitConfig           `yaml:"rate_limit"` // Rate limit backend
	Drafts     DraftsConfig              `yaml:"drafts"`     // Generated image storage
	Usage      UsageConfig               `yaml:"usage"`      // Usage ledger
	Monitoring MonitoringConfig          `yaml:"monitoring"` // Logging, telemetry, metrics
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`          // Port to listen on
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // Max time to read request
	WriteTimeout time.Duration `yaml:"write_timeout"` // Max time to write response
	IPRateLimit  int           `yaml:"ip_rate_limit"` // Requests per second per client IP, 0 disables
}

var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandEnvWithDefaults expands environment variables with support for default values.
// Supports both ${VAR} and ${VAR:-default} syntax.
func expandEnvWithDefaults(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := envPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultValue := ""
		if len(parts) > 2 {
			defaultValue = parts[2]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// Load reads configuration from a YAML file.
// Returns an error if the file doesn't exist or is invalid.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config file path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes parses configuration from raw YAML bytes.
// Supports ${VAR:-default} env var expansion, env overrides, and validation.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := expandEnvWithDefaults(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.normalizeExtraParams()

	return &cfg, nil
}

// applyEnvOverrides lets deployments redirect output paths without editing
// the config file.
func (c *Config) applyEnvOverrides() {
	if envPath := os.Getenv("BEDROCK_TELEMETRY_LOG"); envPath != "" {
		c.Monitoring.TelemetryPath = envPath
		c.Monitoring.TelemetryEnabled = true
	}
	if dsn := os.Getenv("BEDROCK_USAGE_DSN"); dsn != "" {
		c.Usage.DSN = dsn
	}
	if addr := os.Getenv("BEDROCK_REDIS_ADDR"); addr != "" {
		c.RateLimit.Redis.Addr = addr
	}
}

// normalizeExtraParams stores every extra_params value pretty printed.
func (c *Config) normalizeExtraParams() {
	c.Site.normalizeActions()
	for id, inst := range c.Instances {
		inst.normalizeActions()
		c.Instances[id] = inst
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ReadTimeout == 0 {
		return fmt.Errorf("server.read_timeout is required")
	}
	if c.Server.WriteTimeout == 0 {
		return fmt.Errorf("server.write_timeout is required")
	}
	if c.Server.IPRateLimit < 0 {
		return fmt.Errorf("server.ip_rate_limit must not be negative")
	}

	if err := c.Site.Validate("site"); err != nil {
		return err
	}
	for id, inst := range c.Instances {
		if id == "" {
			return errors.New("instances: empty instance id")
		}
		if err := inst.Validate("instances." + id); err != nil {
			return err
		}
	}

	if err := c.Transport.Validate(); err != nil {
		return err
	}
	if err := c.RateLimit.Validate(); err != nil {
		return err
	}
	if err := c.Drafts.Validate(); err != nil {
		return err
	}
	return c.Usage.Validate()
}
