// Package journal keeps a local SQLite record of pipeline runs and their
// artifacts. It is the offline audit trail: the raw agent output and the
// rejection artifacts survive here even when the remote sink is down.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"fundwatch/internal/telemetry"
)

// Artifact kinds.
const (
	ArtifactRawResult     = "raw_result"
	ArtifactDroppedEvents = "dropped_events"
)

// RunSummary is one row of run history, newest first.
type RunSummary struct {
	ID         string
	StartedAt  string
	Model      string
	Status     string
	Validated  int
	DurationMS int64
	Error      string
}

// Journal is a single-writer SQLite store.
type Journal struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
	log  *zap.Logger
}

// Open initializes the journal database at the given path, creating the
// parent directory and schema as needed.
func Open(path string, log *zap.Logger) (*Journal, error) {
	if log == nil {
		log = zap.NewNop()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		log.Debug("failed to set sqlite busy_timeout", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		log.Debug("failed to set sqlite journal_mode=WAL", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		log.Debug("failed to set sqlite synchronous=NORMAL", zap.Error(err))
	}

	j := &Journal{db: db, path: path, log: log}
	if err := j.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		model TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		raw_count INTEGER NOT NULL DEFAULT 0,
		sanitized_valid_count INTEGER NOT NULL DEFAULT 0,
		sanitized_dropped_count INTEGER NOT NULL DEFAULT 0,
		validated_count INTEGER NOT NULL DEFAULT 0,
		validation_dropped_count INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS artifacts (
		run_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at TEXT NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);
	CREATE INDEX IF NOT EXISTS idx_artifacts_run ON artifacts(run_id, kind);
	`
	if _, err := j.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize journal schema: %w", err)
	}
	return nil
}

// SaveRun records the outcome of one pipeline run. Idempotent on run id.
func (j *Journal) SaveRun(ctx context.Context, rec telemetry.RunRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	errMsg := ""
	if rec.Error != nil {
		errMsg = *rec.Error
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
		(id, started_at, model, status, raw_count, sanitized_valid_count,
		 sanitized_dropped_count, validated_count, validation_dropped_count,
		 duration_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.TS, rec.Model, rec.Status,
		rec.RawCount, rec.SanitizedValidCount, rec.SanitizedDroppedCount,
		rec.ValidatedCount, rec.ValidationDroppedCount,
		rec.DurationMS, errMsg)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", rec.ID, err)
	}
	return nil
}

// SaveArtifact attaches a named blob to a run.
func (j *Journal) SaveArtifact(ctx context.Context, runID, kind, body string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO artifacts (run_id, kind, body, created_at)
		VALUES (?, ?, ?, ?)`,
		runID, kind, body, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save %s artifact for run %s: %w", kind, runID, err)
	}
	return nil
}

// Artifact returns the body of the named artifact for a run, or sql.ErrNoRows.
func (j *Journal) Artifact(ctx context.Context, runID, kind string) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var body string
	err := j.db.QueryRowContext(ctx, `
		SELECT body FROM artifacts
		WHERE run_id = ? AND kind = ?
		ORDER BY created_at DESC LIMIT 1`,
		runID, kind).Scan(&body)
	if err != nil {
		return "", err
	}
	return body, nil
}

// RecentRuns returns run history, newest first.
func (j *Journal) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if limit <= 0 {
		limit = 10
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, started_at, model, status, validated_count, duration_ms, error
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query run history: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		if err := rows.Scan(&s.ID, &s.StartedAt, &s.Model, &s.Status, &s.Validated, &s.DurationMS, &s.Error); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (j *Journal) Close() error {
	return j.db.Close()
}
