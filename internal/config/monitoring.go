// Monitoring configuration - logging, telemetry and metrics settings.
//
// DESIGN: Separates logging (zerolog) from telemetry (JSONL files) and
// metrics (Prometheus). Logging is for operators, telemetry is for
// per-action analytics, metrics are for dashboards.
package config

import "time"

// MonitoringConfig contains all monitoring settings.
type MonitoringConfig struct {
	// Logging settings
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // json, console
	LogOutput string `yaml:"log_output"` // stdout, stderr, or file path

	// Telemetry settings
	TelemetryEnabled bool   `yaml:"telemetry_enabled"` // Enable action event tracking
	TelemetryPath    string `yaml:"telemetry_path"`    // Path to telemetry JSONL file
	LogToStdout      bool   `yaml:"log_to_stdout"`     // Also log telemetry to stdout

	// Metrics and alerts
	MetricsEnabled       bool          `yaml:"metrics_enabled"`        // Expose /metrics
	HighLatencyThreshold time.Duration `yaml:"high_latency_threshold"` // Warn above this latency
}
