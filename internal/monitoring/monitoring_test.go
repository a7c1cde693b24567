package monitoring

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// LOGGER
// =============================================================================

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestIDContext(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestNew_DefaultsToInfo(t *testing.T) {
	l := New(LoggerConfig{Level: "nonsense"})
	assert.Equal(t, zerolog.InfoLevel, l.Zerolog().GetLevel())
}

func TestLogger_ServiceComponentAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.DebugLevel)

	ctx := WithRequestIDContext(context.Background(), "req-9")
	l.Component("alerts").WithContext(ctx).Warn().Msg("slow")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, ServiceName, line["service"])
	assert.Equal(t, "alerts", line["component"])
	assert.Equal(t, "req-9", line["request_id"])
	assert.Equal(t, "slow", line["message"])
}

func TestLogger_WithContextWithoutRequestID(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.InfoLevel)

	assert.Same(t, l, l.WithContext(context.Background()))
	l.WithContext(context.Background()).Info().Msg("plain")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.NotContains(t, line, "request_id")
	assert.NotContains(t, line, "component")
}

// =============================================================================
// METRICS
// =============================================================================

func TestMetricsCollector_RecordAction(t *testing.T) {
	mc := NewMetricsCollector()

	mc.RecordAction("generate_text", "claude", true, 2*time.Second, 10, 5)
	mc.RecordAction("generate_text", "claude", false, time.Second, 0, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(mc.actions.WithLabelValues("generate_text", "claude", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.actions.WithLabelValues("generate_text", "claude", StatusFailure)))
	assert.Equal(t, 10.0, testutil.ToFloat64(mc.tokens.WithLabelValues("generate_text", "prompt")))
	assert.Equal(t, 5.0, testutil.ToFloat64(mc.tokens.WithLabelValues("generate_text", "completion")))

	stats := mc.Stats()
	assert.Equal(t, int64(2), stats["requests"])
	assert.Equal(t, int64(1), stats["successes"])
}

func TestMetricsCollector_Handler(t *testing.T) {
	mc := NewMetricsCollector()
	mc.RecordRateLimited("global")

	rec := httptest.NewRecorder()
	mc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `bedrock_rate_limited_total{scope="global"} 1`)
}

func TestNewMetricsCollectorWithRegistry_Nil(t *testing.T) {
	_, err := NewMetricsCollectorWithRegistry(nil)
	assert.Error(t, err)
}

// =============================================================================
// ALERTS
// =============================================================================

func TestAlertManager_HighLatencyThreshold(t *testing.T) {
	var buf bytes.Buffer
	am := NewAlertManager(NewWithWriter(&buf, zerolog.DebugLevel), AlertConfig{HighLatencyThreshold: time.Second})

	am.FlagHighLatency("r1", 500*time.Millisecond, "generate_text", "m")
	assert.Empty(t, buf.String())

	am.FlagHighLatency("r2", 2*time.Second, "generate_text", "m")
	assert.Contains(t, buf.String(), `"message":"high_latency"`)
	assert.Contains(t, buf.String(), `"request_id":"r2"`)
}

func TestAlertManager_LimiterFailure(t *testing.T) {
	var buf bytes.Buffer
	am := NewAlertManager(NewWithWriter(&buf, zerolog.DebugLevel), AlertConfig{})

	am.FlagLimiterFailure("r1", "user", errors.New("connection refused"))
	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), "connection refused")
}

// =============================================================================
// REQUEST LOGGER
// =============================================================================

func TestRequestLogger_ActionFinished(t *testing.T) {
	var buf bytes.Buffer
	rl := NewRequestLogger(NewWithWriter(&buf, zerolog.DebugLevel))

	rl.LogActionStarted(&ActionInfo{RequestID: "r1", Kind: "generate_text", UserHash: strings.Repeat("a", 64)})
	rl.LogActionFinished(&ActionOutcome{RequestID: "r1", Kind: "generate_text", Success: false, ErrorKind: "transport", ErrorCode: 403})

	out := buf.String()
	assert.Contains(t, out, `"user_hash":"aaaaaaaaaaaa"`)
	assert.NotContains(t, out, strings.Repeat("a", 13))
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"error_code":403`)
}

// =============================================================================
// TELEMETRY
// =============================================================================

func TestTracker_RecordAction(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "telemetry.jsonl")
	tracker, err := NewTracker(TelemetryConfig{Enabled: true, LogPath: path})
	require.NoError(t, err)

	tracker.RecordAction(&ActionEvent{RequestID: "r1", Kind: "generate_text", Success: true})
	tracker.RecordAction(&ActionEvent{RequestID: "r2", Kind: "generate_image", ErrorCode: 429})
	require.NoError(t, tracker.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var events []ActionEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e ActionEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		events = append(events, e)
	}
	require.Len(t, events, 2)
	assert.Equal(t, "r1", events[0].RequestID)
	assert.Equal(t, 429, events[1].ErrorCode)
}

func TestTracker_DisabledWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.jsonl")
	tracker, err := NewTracker(TelemetryConfig{Enabled: false, LogPath: path})
	require.NoError(t, err)

	tracker.RecordAction(&ActionEvent{RequestID: "r1"})

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestTracker_NilSafe(t *testing.T) {
	var tracker *Tracker
	tracker.RecordAction(&ActionEvent{})
	assert.NoError(t, tracker.Close())
}
