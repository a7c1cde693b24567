// Package gateway types - wire types and constants for the HTTP API.
//
// DESIGN: Types used by the gateway for:
//   - Action request bodies
//   - Health and usage responses
//   - Error bodies for requests that never reach the orchestrator
//
// Action results are returned as actions.Result unchanged.
package gateway

import (
	"time"

	"github.com/compresr/bedrock-provider/internal/store"
)

// HTTP constants.
const (
	HeaderRequestID      = "X-Request-ID"
	HeaderAcceptLanguage = "Accept-Language"

	// MaxBodyBytes caps action request bodies.
	MaxBodyBytes = 1 << 20

	// MaxRateLimitBuckets bounds the per-IP limiter's memory.
	MaxRateLimitBuckets = 10000

	shutdownGracePeriod = 10 * time.Second
	idleTimeout         = 120 * time.Second
)

// =============================================================================
// REQUESTS
// =============================================================================

// ActionBody is the JSON body of POST /v1/actions/:kind.
type ActionBody struct {
	InstanceID        string `json:"instance_id"`
	UserID            string `json:"user_id"`
	Prompt            string `json:"prompt"`
	Model             string `json:"model,omitempty"`
	SystemInstruction string `json:"system_instruction,omitempty"`
	ExtraParams       string `json:"extra_params,omitempty"`
	Width             int    `json:"width,omitempty"`
	Height            int    `json:"height,omitempty"`
	Lang              string `json:"lang,omitempty"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status     string           `json:"status"`
	Configured bool             `json:"configured"`
	Instances  map[string]bool  `json:"instances,omitempty"`
	Stats      map[string]int64 `json:"stats"`
}

// UsageResponse is returned by GET /v1/usage.
type UsageResponse struct {
	Records   []store.Record  `json:"records,omitempty"`
	Summaries []store.Summary `json:"summaries,omitempty"`
}

// errorBody is returned for requests rejected before an action runs.
type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// requestError is a client error with its HTTP status.
type requestError struct {
	Status  int
	Message string
	Type    string
}

func (e requestError) Error() string {
	return e.Message
}
