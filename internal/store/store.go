// Package store provides the usage ledger: one record per action invocation.
//
// DESIGN: The orchestrator appends a Record after every invocation,
// successful or not. Records carry pseudonymous user ids only, never prompts
// or generated content.
//
// Backends:
//   - MemoryStore: TTL-bounded in-process ledger (default)
//   - SQLStore:    sqlite (modernc.org/sqlite) or postgres (pgx) via database/sql
package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/compresr/bedrock-provider/internal/config"
)

// DefaultTTL is how long the memory ledger keeps records.
const DefaultTTL = 24 * time.Hour

// Record is one action invocation.
type Record struct {
	ID               string    `json:"id"`
	RequestID        string    `json:"request_id,omitempty"`
	InstanceID       string    `json:"instance_id"`
	Action           string    `json:"action"`
	Model            string    `json:"model"`
	Family           string    `json:"family"`
	UserHash         string    `json:"user_hash"`
	Success          bool      `json:"success"`
	ErrorCode        int       `json:"error_code,omitempty"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	LatencyMs        int64     `json:"latency_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// Filter narrows List and Summarize. Zero fields match everything.
type Filter struct {
	InstanceID string
	Action     string
	UserHash   string
	Since      time.Time
	Limit      int // List only; 0 means 100
}

// Summary aggregates records per action.
type Summary struct {
	Action           string `json:"action"`
	Total            int    `json:"total"`
	Succeeded        int    `json:"succeeded"`
	Failed           int    `json:"failed"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
}

// Store defines the interface for the usage ledger.
type Store interface {
	// Record appends one invocation.
	Record(ctx context.Context, r Record) error

	// List returns matching records, newest first.
	List(ctx context.Context, f Filter) ([]Record, error)

	// Summarize aggregates matching records per action, ordered by action.
	Summarize(ctx context.Context, f Filter) ([]Summary, error)

	// Close cleans up resources.
	Close() error
}

const defaultListLimit = 100

func (f Filter) limit() int {
	if f.Limit > 0 {
		return f.Limit
	}
	return defaultListLimit
}

func (f Filter) matches(r Record) bool {
	if f.InstanceID != "" && r.InstanceID != f.InstanceID {
		return false
	}
	if f.Action != "" && r.Action != f.Action {
		return false
	}
	if f.UserHash != "" && r.UserHash != f.UserHash {
		return false
	}
	if !f.Since.IsZero() && r.CreatedAt.Before(f.Since) {
		return false
	}
	return true
}

// summarize folds records into per-action summaries ordered by action.
func summarize(records []Record) []Summary {
	byAction := make(map[string]*Summary)
	for _, r := range records {
		s, ok := byAction[r.Action]
		if !ok {
			s = &Summary{Action: r.Action}
			byAction[r.Action] = s
		}
		s.Total++
		if r.Success {
			s.Succeeded++
		} else {
			s.Failed++
		}
		s.PromptTokens += r.PromptTokens
		s.CompletionTokens += r.CompletionTokens
	}

	out := make([]Summary, 0, len(byAction))
	for _, s := range byAction {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Action < out[j].Action })
	return out
}

// New creates the ledger selected by cfg.
func New(cfg config.UsageConfig) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		ttl := cfg.TTL
		if ttl <= 0 {
			ttl = DefaultTTL
		}
		return NewMemoryStore(ttl), nil
	case "sqlite", "postgres":
		return OpenSQL(cfg.Driver, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported usage driver: %s", cfg.Driver)
	}
}
