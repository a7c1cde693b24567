// Package monitoring - alerts.go flags anomalies and errors.
//
// DESIGN: AlertManager logs notable events at appropriate levels:
//   - FlagHighLatency:     Warn when an action exceeds threshold
//   - FlagProviderError:   Warn on Bedrock 4xx/5xx responses
//   - FlagRateLimited:     Info when a rate limit rejects an action
//   - FlagLimiterFailure:  Error when the rate limit backend is unavailable
//   - FlagPanic:           Error on recovered panics
package monitoring

import "time"

// AlertManager flags anomalies and errors.
type AlertManager struct {
	logger               *Logger
	highLatencyThreshold time.Duration
}

// NewAlertManager creates a new alert manager.
func NewAlertManager(logger *Logger, cfg AlertConfig) *AlertManager {
	threshold := cfg.HighLatencyThreshold
	if threshold == 0 {
		threshold = 30 * time.Second
	}
	return &AlertManager{logger: logger, highLatencyThreshold: threshold}
}

// FlagHighLatency logs when action latency exceeds threshold.
func (am *AlertManager) FlagHighLatency(requestID string, latency time.Duration, kind, model string) {
	if latency < am.highLatencyThreshold {
		return
	}
	am.logger.Warn().
		Str("request_id", requestID).
		Dur("latency", latency).
		Str("kind", kind).
		Str("model", model).
		Msg("high_latency")
}

// FlagProviderError logs an upstream Bedrock error.
func (am *AlertManager) FlagProviderError(requestID, model string, statusCode int, errorMsg string) {
	am.logger.Warn().
		Str("request_id", requestID).
		Str("model", model).
		Int("status", statusCode).
		Str("error", errorMsg).
		Msg("provider_error")
}

// FlagRateLimited logs a rate limit rejection.
func (am *AlertManager) FlagRateLimited(requestID, instanceID, scope string) {
	am.logger.Info().
		Str("request_id", requestID).
		Str("instance_id", instanceID).
		Str("scope", scope).
		Msg("rate_limited")
}

// FlagLimiterFailure logs a rate limit backend failure. The action proceeds.
func (am *AlertManager) FlagLimiterFailure(requestID, scope string, err error) {
	am.logger.Error().
		Str("request_id", requestID).
		Str("scope", scope).
		Err(err).
		Msg("rate_limiter_unavailable")
}

// FlagPanic logs recovered panic.
func (am *AlertManager) FlagPanic(requestID string, panicValue interface{}, stack string) {
	am.logger.Error().
		Str("request_id", requestID).
		Interface("panic", panicValue).
		Str("stack", stack).
		Msg("panic_recovered")
}
