// Package monitoring - logger.go provides structured logging via zerolog.
//
// DESIGN: Every line carries service=bedrock-provider. Subsystems log through
// Component(name) sub-loggers, and anything holding a request context logs
// through FromContext so the request_id set by the gateway follows the call.
package monitoring

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ServiceName is stamped on every log line.
const ServiceName = "bedrock-provider"

type contextKey string

// RequestIDKey holds the request ID in a context.
const RequestIDKey contextKey = "request_id"

// Logger wraps zerolog.Logger.
type Logger struct {
	zl zerolog.Logger
}

// New builds a logger from the monitoring settings. Unknown levels mean info;
// an output path that cannot be opened falls back to stdout.
func New(cfg LoggerConfig) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	w := openOutput(cfg.Output)
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	return newLogger(w, level)
}

// NewWithWriter creates a JSON logger on w. Used by tests to capture output.
func NewWithWriter(w io.Writer, level zerolog.Level) *Logger {
	return newLogger(w, level)
}

func newLogger(w io.Writer, level zerolog.Level) *Logger {
	zl := zerolog.New(w).Level(level).With().
		Timestamp().
		Str("service", ServiceName).
		Logger()
	return &Logger{zl: zl}
}

func openOutput(output string) io.Writer {
	switch output {
	case "stdout", "":
		return os.Stdout
	case "stderr":
		return os.Stderr
	}
	f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return os.Stdout
	}
	return f
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// Global installs the configured logger as the zerolog default.
func Global(cfg LoggerConfig) {
	log.Logger = New(cfg).zl
}

// Component returns a sub-logger tagged with component=name.
func (l *Logger) Component(name string) *Logger {
	return &Logger{zl: l.zl.With().Str("component", name).Logger()}
}

// WithContext returns a sub-logger carrying the request ID from ctx, if any.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	id := RequestIDFromContext(ctx)
	if id == "" {
		return l
	}
	return &Logger{zl: l.zl.With().Str("request_id", id).Logger()}
}

// FromContext is WithContext on the global zerolog logger.
func FromContext(ctx context.Context) *Logger {
	return (&Logger{zl: log.Logger}).WithContext(ctx)
}

// Zerolog returns the underlying zerolog logger.
func (l *Logger) Zerolog() zerolog.Logger { return l.zl }

// Debug returns a debug event.
func (l *Logger) Debug() *zerolog.Event { return l.zl.Debug() }

// Info returns an info event.
func (l *Logger) Info() *zerolog.Event { return l.zl.Info() }

// Warn returns a warn event.
func (l *Logger) Warn() *zerolog.Event { return l.zl.Warn() }

// Error returns an error event.
func (l *Logger) Error() *zerolog.Event { return l.zl.Error() }

// RequestIDFromContext retrieves the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithRequestIDContext returns a new context with the request ID.
func WithRequestIDContext(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}
