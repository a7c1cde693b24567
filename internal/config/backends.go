package config

import (
	"fmt"
	"time"
)

// =============================================================================
// TRANSPORT
// =============================================================================

// Transport modes.
const (
	TransportSDK  = "sdk"  // bedrockruntime client
	TransportHTTP = "http" // SigV4-signed net/http round trip
)

// Credential sources.
const (
	CredentialsStatic       = "static"        // keys from site/instance settings
	CredentialsDefaultChain = "default_chain" // AWS default credential chain
)

// TransportConfig controls how InvokeModel is sent.
type TransportConfig struct {
	Mode        string        `yaml:"mode"`        // sdk, http
	Credentials string        `yaml:"credentials"` // static, default_chain
	Timeout     time.Duration `yaml:"timeout"`     // per-invocation deadline
	Endpoint    string        `yaml:"endpoint"`    // optional endpoint override (http mode)
}

// Validate checks transport settings.
func (t *TransportConfig) Validate() error {
	switch t.Mode {
	case "", TransportSDK, TransportHTTP:
	default:
		return fmt.Errorf("transport.mode: unknown mode %q (sdk, http)", t.Mode)
	}
	switch t.Credentials {
	case "", CredentialsStatic, CredentialsDefaultChain:
	default:
		return fmt.Errorf("transport.credentials: unknown source %q (static, default_chain)", t.Credentials)
	}
	if t.Timeout < 0 {
		return fmt.Errorf("transport.timeout must not be negative")
	}
	return nil
}

// UsesDefaultChain reports whether credentials come from the AWS default chain.
func (t *TransportConfig) UsesDefaultChain() bool {
	return t.Credentials == CredentialsDefaultChain
}

// =============================================================================
// RATE LIMIT BACKEND
// =============================================================================

// RateLimitConfig selects where rate limit counters live.
type RateLimitConfig struct {
	Backend string        `yaml:"backend"` // memory, redis
	Window  time.Duration `yaml:"window"`  // defaults to one hour
	Redis   RedisConfig   `yaml:"redis"`
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// Validate checks rate limit backend settings.
func (r *RateLimitConfig) Validate() error {
	switch r.Backend {
	case "", "memory":
	case "redis":
		if r.Redis.Addr == "" {
			return fmt.Errorf("rate_limit.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("rate_limit.backend: unknown backend %q (memory, redis)", r.Backend)
	}
	if r.Window < 0 {
		return fmt.Errorf("rate_limit.window must not be negative")
	}
	return nil
}

// EffectiveWindow returns the configured window or one hour.
func (r *RateLimitConfig) EffectiveWindow() time.Duration {
	if r.Window > 0 {
		return r.Window
	}
	return time.Hour
}

// =============================================================================
// DRAFTS
// =============================================================================

// DraftsConfig selects where generated images are stored.
type DraftsConfig struct {
	Backend   string          `yaml:"backend"` // local, minio
	Dir       string          `yaml:"dir"`     // local backend directory
	Minio     MinioConfig     `yaml:"minio"`
	Watermark WatermarkConfig `yaml:"watermark"`
}

// MinioConfig contains S3-compatible object storage settings.
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// WatermarkConfig controls the label stamped on generated images.
type WatermarkConfig struct {
	Enabled bool   `yaml:"enabled"`
	Text    string `yaml:"text"`
}

// Validate checks drafts settings.
func (d *DraftsConfig) Validate() error {
	switch d.Backend {
	case "", "local":
	case "minio":
		if d.Minio.Endpoint == "" || d.Minio.Bucket == "" {
			return fmt.Errorf("drafts.minio.endpoint and drafts.minio.bucket are required for the minio backend")
		}
	default:
		return fmt.Errorf("drafts.backend: unknown backend %q (local, minio)", d.Backend)
	}
	return nil
}

// =============================================================================
// USAGE LEDGER
// =============================================================================

// UsageConfig selects the usage ledger driver.
type UsageConfig struct {
	Driver string        `yaml:"driver"` // memory, sqlite, postgres
	DSN    string        `yaml:"dsn"`
	TTL    time.Duration `yaml:"ttl"` // memory driver retention
}

// Validate checks usage ledger settings.
func (u *UsageConfig) Validate() error {
	switch u.Driver {
	case "", "memory":
	case "sqlite", "postgres":
		if u.DSN == "" {
			return fmt.Errorf("usage.dsn is required for the %s driver", u.Driver)
		}
	default:
		return fmt.Errorf("usage.driver: unknown driver %q (memory, sqlite, postgres)", u.Driver)
	}
	return nil
}
