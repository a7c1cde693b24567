// Package monitoring - metrics.go provides Prometheus metrics.
//
// DESIGN: One collector per process, registered on its own registry so tests
// can create as many as they like:
//   - bedrock_actions_total{kind,family,status}:  invocations by outcome
//   - bedrock_action_duration_seconds{kind}:      end-to-end latency
//   - bedrock_tokens_total{kind,direction}:       prompt/completion tokens
//   - bedrock_rate_limited_total{scope}:          rejected by rate limits
//
// Stats() keeps cheap atomic totals for the health endpoint.
package monitoring

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Action outcome labels.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// MetricsCollector collects operational metrics.
type MetricsCollector struct {
	registry *prometheus.Registry

	actions     *prometheus.CounterVec
	durations   *prometheus.HistogramVec
	tokens      *prometheus.CounterVec
	rateLimited *prometheus.CounterVec

	requests  atomic.Int64
	successes atomic.Int64
}

// NewMetricsCollector creates a collector on a fresh registry.
func NewMetricsCollector() *MetricsCollector {
	mc, err := NewMetricsCollectorWithRegistry(prometheus.NewRegistry())
	if err != nil {
		// A fresh registry cannot hold duplicates.
		panic(err)
	}
	return mc
}

// NewMetricsCollectorWithRegistry registers the collectors on registry.
func NewMetricsCollectorWithRegistry(registry *prometheus.Registry) (*MetricsCollector, error) {
	if registry == nil {
		return nil, fmt.Errorf("prometheus registry is nil")
	}

	mc := &MetricsCollector{
		registry: registry,
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bedrock_actions_total",
			Help: "Total number of provider actions by kind, model family and outcome",
		}, []string{"kind", "family", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bedrock_action_duration_seconds",
			Help:    "Provider action latency in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"kind"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bedrock_tokens_total",
			Help: "Tokens reported by Bedrock by action kind and direction",
		}, []string{"kind", "direction"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bedrock_rate_limited_total",
			Help: "Actions rejected by rate limits by scope",
		}, []string{"scope"}),
	}

	for _, collector := range []prometheus.Collector{mc.actions, mc.durations, mc.tokens, mc.rateLimited} {
		if err := registry.Register(collector); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return mc, nil
}

// RecordAction records one finished action.
func (mc *MetricsCollector) RecordAction(kind, family string, success bool, latency time.Duration, promptTokens, completionTokens int) {
	mc.requests.Add(1)
	status := StatusFailure
	if success {
		mc.successes.Add(1)
		status = StatusSuccess
	}
	mc.actions.WithLabelValues(kind, family, status).Inc()
	mc.durations.WithLabelValues(kind).Observe(latency.Seconds())
	if promptTokens > 0 {
		mc.tokens.WithLabelValues(kind, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		mc.tokens.WithLabelValues(kind, "completion").Add(float64(completionTokens))
	}
}

// RecordRateLimited records a rejection. scope is "user" or "global".
func (mc *MetricsCollector) RecordRateLimited(scope string) {
	mc.rateLimited.WithLabelValues(scope).Inc()
}

// Registry returns the underlying registry.
func (mc *MetricsCollector) Registry() *prometheus.Registry {
	return mc.registry
}

// Handler serves the registry in the Prometheus text format.
func (mc *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(mc.registry, promhttp.HandlerOpts{})
}

// Stats returns current totals.
func (mc *MetricsCollector) Stats() map[string]int64 {
	return map[string]int64{
		"requests":  mc.requests.Load(),
		"successes": mc.successes.Load(),
	}
}
