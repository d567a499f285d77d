// Package history persists AI task outcomes locally and turns recurring
// assignments into historical-pattern signals for later requests.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/timesage/timesage/internal/signal"
)

const schema = `
CREATE TABLE IF NOT EXISTS task_outcomes (
	id          TEXT PRIMARY KEY,
	task_type   TEXT NOT NULL,
	summary     TEXT NOT NULL,
	bucket      TEXT NOT NULL DEFAULT '',
	success     INTEGER NOT NULL,
	fallback    INTEGER NOT NULL,
	created_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_task_outcomes_created_at ON task_outcomes(created_at);
`

// Outcome is one recorded AI task result.
type Outcome struct {
	ID        string
	TaskType  signal.TaskType
	Summary   string
	Bucket    string
	Success   bool
	Fallback  bool
	CreatedAt time.Time
}

// Store is the SQLite-backed outcome store.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// Open creates (or opens) the outcome database at path and applies the
// schema. SQLite does not handle concurrent writers well, so the pool is
// pinned to a single connection.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	log.Info("outcome store opened", zap.String("path", path))
	return &Store{db: db, log: log}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordOutcome inserts one task outcome, assigning an ID when absent.
func (s *Store) RecordOutcome(ctx context.Context, o Outcome) (string, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO task_outcomes (id, task_type, summary, bucket, success, fallback, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.ID, string(o.TaskType), o.Summary, o.Bucket, o.Success, o.Fallback, o.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("insert outcome: %w", err)
	}
	return o.ID, nil
}

// RecentOutcomes returns the most recent outcomes, newest first.
func (s *Store) RecentOutcomes(ctx context.Context, limit int) ([]Outcome, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task_type, summary, bucket, success, fallback, created_at
		 FROM task_outcomes ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var o Outcome
		var taskType string
		if err := rows.Scan(&o.ID, &taskType, &o.Summary, &o.Bucket, &o.Success, &o.Fallback, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.TaskType = signal.TaskType(taskType)
		out = append(out, o)
	}
	return out, rows.Err()
}

// RecurringPatterns aggregates successful outcomes over the trailing window
// into historical patterns, most frequent first.
func (s *Store) RecurringPatterns(ctx context.Context, window time.Duration, limit int) ([]signal.HistoricalPattern, error) {
	if limit <= 0 {
		limit = 10
	}
	since := time.Now().UTC().Add(-window)

	rows, err := s.db.QueryContext(ctx,
		`SELECT summary, bucket, COUNT(*) AS occurrences
		 FROM task_outcomes
		 WHERE success = 1 AND created_at >= ?
		 GROUP BY summary, bucket
		 HAVING COUNT(*) > 1
		 ORDER BY occurrences DESC, summary
		 LIMIT ?`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query patterns: %w", err)
	}
	defer rows.Close()

	var patterns []signal.HistoricalPattern
	for rows.Next() {
		var p signal.HistoricalPattern
		if err := rows.Scan(&p.Summary, &p.Bucket, &p.Occurrences); err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

// PatternsSignal packages the recurring patterns of the last 30 days as a
// historical_patterns signal, or nil when there is nothing recurring yet.
func (s *Store) PatternsSignal(ctx context.Context) (*signal.Signal, error) {
	patterns, err := s.RecurringPatterns(ctx, 30*24*time.Hour, 10)
	if err != nil {
		return nil, err
	}
	if len(patterns) == 0 {
		return nil, nil
	}
	sig := signal.New(signal.TypeHistoricalPatterns, "history",
		&signal.HistoricalPatterns{Patterns: patterns})
	return &sig, nil
}
