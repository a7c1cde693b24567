// Package monitoring - types.go defines shared types.
//
// DESIGN: These types are used by the gateway, actions and monitoring
// packages. Defined here ONCE to avoid duplication and circular imports.
//
// TYPES:
//   - ActionEvent:   Telemetry data for each action invocation
//   - Config types:  TelemetryConfig, LoggerConfig, AlertConfig
package monitoring

import "time"

// =============================================================================
// EVENT TYPES - Structured data for telemetry recording
// =============================================================================

// ActionEvent captures one action invocation. It never carries prompt text,
// generated content or raw user ids.
type ActionEvent struct {
	RequestID        string    `json:"request_id"`
	Timestamp        time.Time `json:"timestamp"`
	InstanceID       string    `json:"instance_id,omitempty"`
	Kind             string    `json:"kind"`
	Model            string    `json:"model,omitempty"`
	Family           string    `json:"family,omitempty"`
	Region           string    `json:"region,omitempty"`
	UserHash         string    `json:"user_hash,omitempty"`
	RequestBodySize  int       `json:"request_body_size"`
	ResponseBodySize int       `json:"response_body_size"`
	Success          bool      `json:"success"`
	ErrorKind        string    `json:"error_kind,omitempty"`
	ErrorCode        int       `json:"error_code,omitempty"`
	FinishReason     string    `json:"finish_reason,omitempty"`
	PromptTokens     int       `json:"prompt_tokens,omitempty"`
	CompletionTokens int       `json:"completion_tokens,omitempty"`
	InvokeLatencyMs  int64     `json:"invoke_latency_ms"`
	TotalLatencyMs   int64     `json:"total_latency_ms"`
}

// =============================================================================
// CONFIG TYPES
// =============================================================================

// TelemetryConfig contains telemetry configuration.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	LogPath     string `yaml:"log_path"`
	LogToStdout bool   `yaml:"log_to_stdout"`
}

// LoggerConfig contains logging configuration.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
	Output string `yaml:"output"` // stdout, stderr, or file path
}

// AlertConfig contains alert thresholds.
type AlertConfig struct {
	HighLatencyThreshold time.Duration `yaml:"high_latency_threshold"`
}
