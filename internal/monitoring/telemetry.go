// Package monitoring - telemetry.go records events to JSONL files.
//
// DESIGN: Tracker writes one ActionEvent per line (JSONL), appended right
// after each invocation for real-time analytics.
package monitoring

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// Tracker handles telemetry event recording to file and stdout.
type Tracker struct {
	config     TelemetryConfig
	logPath    string
	eventCount int
	mu         sync.Mutex
}

// NewTracker creates a new telemetry tracker.
func NewTracker(cfg TelemetryConfig) (*Tracker, error) {
	t := &Tracker{
		config: cfg,
	}

	if !cfg.Enabled {
		return t, nil
	}

	if cfg.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0750); err != nil {
			return nil, err
		}
		t.logPath = cfg.LogPath
		// Create empty file if it doesn't exist
		if _, err := os.Stat(cfg.LogPath); os.IsNotExist(err) {
			if f, err := os.Create(cfg.LogPath); err == nil {
				f.Close()
			}
		}
	}

	return t, nil
}

// appendJSONL appends a single JSON object as a line to the file.
func appendJSONL(path string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(data)
	return err
}

// RecordAction records an action event.
func (t *Tracker) RecordAction(event *ActionEvent) {
	if t == nil || !t.config.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.config.LogToStdout {
		reqID := event.RequestID
		if len(reqID) > 8 {
			reqID = reqID[:8]
		}
		log.Info().
			Str("request_id", reqID).
			Str("kind", event.Kind).
			Str("family", event.Family).
			Bool("success", event.Success).
			Msg("telemetry")
	}

	if t.logPath != "" {
		if err := appendJSONL(t.logPath, event); err != nil {
			log.Error().Err(err).Str("path", t.logPath).Msg("telemetry: failed to write action event")
		} else {
			t.eventCount++
		}
	}
}

// Close logs a session summary.
func (t *Tracker) Close() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.logPath != "" && t.eventCount > 0 {
		log.Info().
			Str("path", t.logPath).
			Int("events", t.eventCount).
			Msg("telemetry: session complete")
	}

	return nil
}
