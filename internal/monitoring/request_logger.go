// Package monitoring - request_logger.go logs the action lifecycle.
//
// DESIGN: Structured logging for request tracing:
//   - LogIncoming:      HTTP request received (debug)
//   - LogActionStarted: Action accepted by the orchestrator (info)
//   - LogInvoke:        InvokeModel round trip finished (debug)
//   - LogActionFinished: Action outcome (info)
//   - LogResponse:      HTTP response sent (debug)
//
// Prompts, generated content and raw user ids are never logged.
package monitoring

import (
	"net/http"
	"time"
)

// RequestLogger logs request and action lifecycle events.
type RequestLogger struct {
	logger *Logger
}

// NewRequestLogger creates a new request logger.
func NewRequestLogger(logger *Logger) *RequestLogger {
	return &RequestLogger{logger: logger}
}

// RequestInfo contains incoming request information.
type RequestInfo struct {
	RequestID  string
	Method     string
	Path       string
	RemoteAddr string
	BodySize   int
	StartTime  time.Time
}

// NewRequestInfo creates RequestInfo from an HTTP request.
func NewRequestInfo(r *http.Request, requestID string, bodySize int) *RequestInfo {
	return &RequestInfo{
		RequestID:  requestID,
		Method:     r.Method,
		Path:       r.URL.Path,
		RemoteAddr: r.RemoteAddr,
		BodySize:   bodySize,
		StartTime:  time.Now(),
	}
}

// LogIncoming logs an incoming request.
func (rl *RequestLogger) LogIncoming(info *RequestInfo) {
	rl.logger.Debug().
		Str("request_id", info.RequestID).
		Str("method", info.Method).
		Str("path", info.Path).
		Int("body_size", info.BodySize).
		Msg("incoming")
}

// ActionInfo identifies an action invocation.
type ActionInfo struct {
	RequestID  string
	InstanceID string
	Kind       string
	Model      string
	Family     string
	UserHash   string
}

// LogActionStarted logs an accepted action.
func (rl *RequestLogger) LogActionStarted(info *ActionInfo) {
	rl.logger.Info().
		Str("request_id", info.RequestID).
		Str("instance_id", info.InstanceID).
		Str("kind", info.Kind).
		Str("model", info.Model).
		Str("family", info.Family).
		Str("user_hash", shortHash(info.UserHash)).
		Msg("action_started")
}

// InvokeInfo describes one InvokeModel round trip.
type InvokeInfo struct {
	RequestID    string
	Model        string
	Region       string
	RequestSize  int
	ResponseSize int
	StatusCode   int
	Latency      time.Duration
}

// LogInvoke logs an InvokeModel round trip.
func (rl *RequestLogger) LogInvoke(info *InvokeInfo) {
	event := rl.logger.Debug().
		Str("request_id", info.RequestID).
		Str("model", info.Model).
		Str("region", info.Region).
		Int("request_size", info.RequestSize).
		Int("response_size", info.ResponseSize).
		Dur("latency", info.Latency)
	if info.StatusCode != 0 {
		event = event.Int("status", info.StatusCode)
	}
	event.Msg("invoke")
}

// ActionOutcome is the result of an action.
type ActionOutcome struct {
	RequestID    string
	Kind         string
	Family       string
	Success      bool
	State        string
	ErrorKind    string
	ErrorCode    int
	FinishReason string
	Latency      time.Duration
}

// LogActionFinished logs an action outcome.
func (rl *RequestLogger) LogActionFinished(info *ActionOutcome) {
	event := rl.logger.Info()
	if !info.Success {
		event = rl.logger.Warn().
			Str("error_kind", info.ErrorKind).
			Int("error_code", info.ErrorCode)
	}
	event.
		Str("request_id", info.RequestID).
		Str("kind", info.Kind).
		Str("family", info.Family).
		Bool("success", info.Success).
		Str("state", info.State).
		Str("finish_reason", info.FinishReason).
		Dur("latency", info.Latency).
		Msg("action_finished")
}

// ResponseInfo contains response information.
type ResponseInfo struct {
	RequestID  string
	StatusCode int
	Latency    time.Duration
}

// LogResponse logs a response.
func (rl *RequestLogger) LogResponse(info *ResponseInfo) {
	rl.logger.Debug().
		Str("request_id", info.RequestID).
		Int("status", info.StatusCode).
		Dur("latency", info.Latency).
		Msg("response")
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
