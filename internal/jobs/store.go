package jobs

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

	_ "modernc.org/sqlite"

	"captioner/internal/config"
	"captioner/internal/services"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes incompatibly.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by a different
// schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const jobColumns = "id, source_path, source_hash, target_lang, status, stage, audio_path, subtitles_path, translated_path, output_path, artifact_name, cue_count, translated_count, fallback_count, error_kind, error_message, created_at, updated_at, completed_at"

// Store persists jobs in SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open opens the ledger at cfg.Paths.JobsDB.
func Open(cfg *config.Config) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("open jobs ledger: config is nil")
	}
	return OpenPath(cfg.Paths.JobsDB)
}

// OpenPath opens or creates the ledger database at path.
func OpenPath(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("open jobs ledger: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, now: time.Now}
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

// Path is the database file location.
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
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset the ledger)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Create inserts a pending job. ID, SourcePath and TargetLang are required.
func (s *Store) Create(ctx context.Context, job Job) (*Job, error) {
	if strings.TrimSpace(job.ID) == "" || strings.TrimSpace(job.SourcePath) == "" || strings.TrimSpace(job.TargetLang) == "" {
		return nil, errors.New("create job: id, source path and target language are required")
	}
	timestamp := s.timestamp()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, source_path, source_hash, target_lang, status, stage, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.SourcePath,
		nullableString(job.SourceHash),
		job.TargetLang,
		StatusPending,
		nullableString(job.Stage),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return s.Get(ctx, job.ID)
}

// UpdateStage marks the job running in stage.
func (s *Store) UpdateStage(ctx context.Context, id, stage string) error {
	return s.exec(ctx, "update stage",
		`UPDATE jobs SET status = ?, stage = ?, updated_at = ? WHERE id = ?`,
		StatusRunning, stage, s.timestamp(), id)
}

// SetSourceHash records the fingerprint of the source video.
func (s *Store) SetSourceHash(ctx context.Context, id, hash string) error {
	return s.exec(ctx, "set source hash",
		`UPDATE jobs SET source_hash = ?, updated_at = ? WHERE id = ?`,
		nullableString(hash), s.timestamp(), id)
}

// Complete marks the job completed and stores its outcome.
func (s *Store) Complete(ctx context.Context, id string, outcome Outcome) error {
	timestamp := s.timestamp()
	return s.exec(ctx, "complete job",
		`UPDATE jobs
         SET status = ?, stage = NULL, audio_path = ?, subtitles_path = ?, translated_path = ?,
             output_path = ?, artifact_name = ?, cue_count = ?, translated_count = ?, fallback_count = ?,
             error_kind = NULL, error_message = NULL, updated_at = ?, completed_at = ?
         WHERE id = ?`,
		StatusCompleted,
		nullableString(outcome.AudioPath),
		nullableString(outcome.SubtitlesPath),
		nullableString(outcome.TranslatedPath),
		nullableString(outcome.OutputPath),
		nullableString(outcome.ArtifactName),
		outcome.CueCount,
		outcome.TranslatedCount,
		outcome.FallbackCount,
		timestamp,
		timestamp,
		id)
}

// Fail marks the job failed, keeping the stage it failed in.
func (s *Store) Fail(ctx context.Context, id string, cause error) error {
	message := "unknown failure"
	if cause != nil {
		message = cause.Error()
	}
	timestamp := s.timestamp()
	return s.exec(ctx, "fail job",
		`UPDATE jobs SET status = ?, error_kind = ?, error_message = ?, updated_at = ?, completed_at = ? WHERE id = ?`,
		StatusFailed, nullableString(services.Kind(cause)), message, timestamp, timestamp, id)
}

// Get returns the job with id, or nil when it does not exist.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns jobs newest first, optionally filtered by status. A limit of
// zero or less returns every match.
func (s *Store) List(ctx context.Context, limit int, statuses ...Status) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := make([]any, 0, len(statuses)+1)
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

func (s *Store) exec(ctx context.Context, op, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w: job %s", op, services.ErrNotFound, args[len(args)-1])
	}
	return nil
}

// timeLayout is fixed width so text ordering in SQLite matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func (s *Store) timestamp() string {
	return s.now().UTC().Format(timeLayout)
}
