package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// SQLStore persists the ledger in sqlite or postgres.
type SQLStore struct {
	db     *sql.DB
	driver string // sqlite, postgres
}

// OpenSQL opens the database for driver and applies migrations.
func OpenSQL(driver, dsn string) (*SQLStore, error) {
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case "sqlite":
		db, err = openSQLite(dsn)
	case "postgres":
		db, err = openPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported db driver: %s", driver)
	}
	if err != nil {
		return nil, err
	}

	s := &SQLStore{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func openSQLite(path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := path
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		dsn = absPath
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// SQLite single-writer: cap pool
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, nil
}

func openPostgres(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("usage.dsn is required for postgres driver")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func (s *SQLStore) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS usage_records (
			id TEXT NOT NULL,
			request_id TEXT NOT NULL DEFAULT '',
			instance_id TEXT NOT NULL DEFAULT '',
			action TEXT NOT NULL,
			model TEXT NOT NULL DEFAULT '',
			family TEXT NOT NULL DEFAULT '',
			user_hash TEXT NOT NULL DEFAULT '',
			success INTEGER NOT NULL DEFAULT 0,
			error_code INTEGER NOT NULL DEFAULT 0,
			prompt_tokens INTEGER NOT NULL DEFAULT 0,
			completion_tokens INTEGER NOT NULL DEFAULT 0,
			latency_ms BIGINT NOT NULL DEFAULT 0,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_records_created ON usage_records (created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_records_instance_action ON usage_records (instance_id, action)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate usage store: %w", err)
		}
	}
	return nil
}

// rebind converts ? placeholders to $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// Record appends one invocation.
func (s *SQLStore) Record(ctx context.Context, r Record) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO usage_records
		(id, request_id, instance_id, action, model, family, user_hash, success, error_code,
		 prompt_tokens, completion_tokens, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		r.ID, r.RequestID, r.InstanceID, r.Action, r.Model, r.Family, r.UserHash, boolToInt(r.Success), r.ErrorCode,
		r.PromptTokens, r.CompletionTokens, r.LatencyMs, r.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}
	return nil
}

// List returns matching records, newest first.
func (s *SQLStore) List(ctx context.Context, f Filter) ([]Record, error) {
	where, args := whereClause(f)
	query := `SELECT id, request_id, instance_id, action, model, family, user_hash, success, error_code,
		prompt_tokens, completion_tokens, latency_ms, created_at
		FROM usage_records` + where + ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, f.limit())

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query usage records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r       Record
			success int
			created int64
		)
		if err := rows.Scan(&r.ID, &r.RequestID, &r.InstanceID, &r.Action, &r.Model, &r.Family, &r.UserHash,
			&success, &r.ErrorCode, &r.PromptTokens, &r.CompletionTokens, &r.LatencyMs, &created); err != nil {
			return nil, fmt.Errorf("scan usage record: %w", err)
		}
		r.Success = success != 0
		r.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Summarize aggregates matching records per action, ordered by action.
func (s *SQLStore) Summarize(ctx context.Context, f Filter) ([]Summary, error) {
	where, args := whereClause(f)
	query := `SELECT action, COUNT(*), COALESCE(SUM(success), 0),
		COALESCE(SUM(prompt_tokens), 0), COALESCE(SUM(completion_tokens), 0)
		FROM usage_records` + where + ` GROUP BY action ORDER BY action`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("summarize usage records: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.Action, &sum.Total, &sum.Succeeded, &sum.PromptTokens, &sum.CompletionTokens); err != nil {
			return nil, fmt.Errorf("scan usage summary: %w", err)
		}
		sum.Failed = sum.Total - sum.Succeeded
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func whereClause(f Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.InstanceID != "" {
		conds = append(conds, "instance_id = ?")
		args = append(args, f.InstanceID)
	}
	if f.Action != "" {
		conds = append(conds, "action = ?")
		args = append(args, f.Action)
	}
	if f.UserHash != "" {
		conds = append(conds, "user_hash = ?")
		args = append(args, f.UserHash)
	}
	if !f.Since.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, f.Since.UnixMilli())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ Store = (*SQLStore)(nil)
