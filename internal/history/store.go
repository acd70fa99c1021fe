// Package history persists a ledger of accepted repairs backed by SQLite,
// so an operator can audit after the fact what each run changed.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; stale databases are rejected rather than migrated.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Fix is one accepted repair to be recorded. FieldKey is empty for cue
// sheet rewrites, where the whole file is the candidate.
type Fix struct {
	Path     string
	Kind     string
	FieldKey string
	Before   string
	After    string
}

// Run summarizes one recorded scan.
type Run struct {
	ID         string
	Root       string
	StartedAt  time.Time
	FinishedAt time.Time
	FixedCount int
	DryRun     bool
}

// FixRecord is a persisted Fix with its ledger metadata.
type FixRecord struct {
	ID        int64
	RunID     string
	CreatedAt time.Time
	Fix
}

// Store manages repair history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin schema tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version(version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return tx.Commit()
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (run 'cyrfix history clear' or delete %s)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

// BeginRun records the start of a scan of root and returns its run ID.
func (s *Store) BeginRun(ctx context.Context, root string, dryRun bool) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs(id, root, started_at, dry_run) VALUES (?, ?, ?, ?)",
		id, root, time.Now().UTC().Format(time.RFC3339), boolToInt(dryRun))
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	return id, nil
}

// RecordFix appends one accepted repair to the run's ledger.
func (s *Store) RecordFix(ctx context.Context, runID string, fix Fix) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO fixes(run_id, path, kind, field_key, before_text, after_text, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		runID, fix.Path, fix.Kind, fix.FieldKey, fix.Before, fix.After,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("record fix for %s: %w", fix.Path, err)
	}
	return nil
}

// FinishRun stamps the run's end time and fixed-file count.
func (s *Store) FinishRun(ctx context.Context, runID string, fixedCount int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE runs SET finished_at = ?, fixed_count = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339), fixedCount, runID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, root, started_at, COALESCE(finished_at, ''), fixed_count, dry_run FROM runs ORDER BY started_at DESC LIMIT ?",
		limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var started, finished string
		var dryRun int
		if err := rows.Scan(&run.ID, &run.Root, &started, &finished, &run.FixedCount, &dryRun); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		run.StartedAt = parseTime(started)
		run.FinishedAt = parseTime(finished)
		run.DryRun = dryRun != 0
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListFixes returns recorded fixes, newest first. A non-empty runID limits
// the result to that run.
func (s *Store) ListFixes(ctx context.Context, runID string, limit int) ([]FixRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := "SELECT id, run_id, path, kind, field_key, before_text, after_text, created_at FROM fixes"
	args := []any{}
	if strings.TrimSpace(runID) != "" {
		query += " WHERE run_id = ?"
		args = append(args, runID)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list fixes: %w", err)
	}
	defer rows.Close()

	var fixes []FixRecord
	for rows.Next() {
		var rec FixRecord
		var created string
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Path, &rec.Kind, &rec.FieldKey, &rec.Before, &rec.After, &created); err != nil {
			return nil, fmt.Errorf("scan fix row: %w", err)
		}
		rec.CreatedAt = parseTime(created)
		fixes = append(fixes, rec)
	}
	return fixes, rows.Err()
}

// Clear deletes all recorded runs and fixes.
func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{"DELETE FROM fixes", "DELETE FROM runs"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear history: %w", err)
		}
	}
	return tx.Commit()
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
