// Package manifest records pipeline runs, their artifacts and used topics in
// a SQLite database so "latest" lookups never depend on file timestamps.
package manifest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("not found")

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Artifact kinds written by the pipeline.
const (
	KindNarration = "narration"
	KindTimeline  = "timeline"
	KindSubtitled = "subtitled"
	KindSRT       = "srt"
	KindFinal     = "final"
	KindState     = "state"
)

// Run is one pipeline execution.
type Run struct {
	ID         string
	Topic      string
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time
	FinalVideo string
	Error      string
}

// Artifact is one file produced by a run. Seq is the insertion sequence.
type Artifact struct {
	Seq       int64
	RunID     string
	Kind      string
	Path      string
	CreatedAt time.Time
}

// Store manages manifest persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open initializes or connects to the manifest database and applies migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure manifest dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	store := &Store{db: db, path: path, now: time.Now}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

// CreateRun inserts a running run.
func (s *Store) CreateRun(ctx context.Context, id, topic string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, topic, status, started_at) VALUES (?, ?, ?, ?)`,
		id, topic, StatusRunning, s.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// SetTopic updates the topic of a run once it has been chosen.
func (s *Store) SetTopic(ctx context.Context, id, topic string) error {
	return s.expectOne(s.db.ExecContext(ctx, `UPDATE runs SET topic = ? WHERE id = ?`, topic, id))
}

// FinishRun marks a run succeeded, or failed when runErr is non-nil.
func (s *Store) FinishRun(ctx context.Context, id, finalVideo string, runErr error) error {
	status, msg := StatusSucceeded, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}
	return s.expectOne(s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, final_video = ?, error = ? WHERE id = ?`,
		status, s.timestamp(), nullable(finalVideo), nullable(msg), id,
	))
}

// AddArtifact records a file produced by a run.
func (s *Store) AddArtifact(ctx context.Context, runID, kind, path string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts (run_id, kind, path, created_at) VALUES (?, ?, ?, ?)`,
		runID, kind, path, s.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}
	return nil
}

// Artifact returns the most recent artifact of kind for an explicit run.
func (s *Store) Artifact(ctx context.Context, runID, kind string) (Artifact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT seq, run_id, kind, path, created_at FROM artifacts
         WHERE run_id = ? AND kind = ? ORDER BY seq DESC LIMIT 1`,
		runID, kind,
	)
	return scanArtifact(row)
}

// LatestArtifact returns the most recently recorded artifact of kind across
// all runs. Ordering is by insertion sequence, never by timestamp.
func (s *Store) LatestArtifact(ctx context.Context, kind string) (Artifact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT seq, run_id, kind, path, created_at FROM artifacts
         WHERE kind = ? ORDER BY seq DESC LIMIT 1`,
		kind,
	)
	return scanArtifact(row)
}

// GetRun fetches a run by identifier.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, topic, status, started_at, finished_at, final_video, error FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// ListRuns returns up to limit runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, topic, status, started_at, finished_at, final_video, error FROM runs
         ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RecordTopic notes that topic was used once more.
func (s *Store) RecordTopic(ctx context.Context, topic string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO used_topics (topic, used_at) VALUES (?, ?)`,
		normalizeTopic(topic), s.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("record topic: %w", err)
	}
	return nil
}

// TopicCount returns how many times topic has been used.
func (s *Store) TopicCount(ctx context.Context, topic string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM used_topics WHERE topic = ?`, normalizeTopic(topic)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count topic: %w", err)
	}
	return n, nil
}

func normalizeTopic(topic string) string {
	return strings.Join(strings.Fields(strings.ToLower(topic)), " ")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row scanner) (Artifact, error) {
	var a Artifact
	var created string
	if err := row.Scan(&a.Seq, &a.RunID, &a.Kind, &a.Path, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Artifact{}, ErrNotFound
		}
		return Artifact{}, fmt.Errorf("scan artifact: %w", err)
	}
	a.CreatedAt = parseTime(created)
	return a, nil
}

func scanRun(row scanner) (Run, error) {
	var r Run
	var started string
	var finished, final, msg sql.NullString
	if err := row.Scan(&r.ID, &r.Topic, &r.Status, &started, &finished, &final, &msg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, ErrNotFound
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	r.StartedAt = parseTime(started)
	r.FinishedAt = parseTime(finished.String)
	r.FinalVideo = final.String
	r.Error = msg.String
	return r, nil
}

func parseTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func (s *Store) expectOne(res sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
