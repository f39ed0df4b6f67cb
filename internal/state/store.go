// Package state is the local SQLite store behind the history command
// and the dashboard shortcut cache. It is offline-first: a missing
// database file is created on open, and callers treat the store as
// optional when the data directory is unavailable.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// QuestionRecord is one logged pipeline run.
type QuestionRecord struct {
	ID       string
	Question string
	SQL      string
	Mode     string
	Status   string
	Duration time.Duration
	AskedAt  time.Time
}

// Shortcut is a cached dashboard shortcut: a saved question with a
// preferred chart type. Shortcuts loaded from dashboards.yaml are
// mirrored here so the REPL can offer them offline.
type Shortcut struct {
	Name      string
	Question  string
	ChartType string
	UpdatedAt time.Time
}

// Store wraps the SQLite connection.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// New creates an unopened store. A nil logger discards.
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{logger: logger}
}

// NewWithDB wraps an existing connection, used by tests.
func NewWithDB(db *sql.DB, logger *slog.Logger) *Store {
	s := New(logger)
	s.db = db
	return s
}

// Open opens (creating if absent) the database at path and runs
// pending migrations. Use ":memory:" for an in-memory database.
func (s *Store) Open(path string) error {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// The modernc driver opens a fresh database per connection for
	// ":memory:", so the pool must stay at one connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	if err := s.Migrate(); err != nil {
		db.Close()
		s.db = nil
		return err
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database file path ("" for in-memory).
func (s *Store) Path() string { return s.path }

// RecordQuestion logs a completed pipeline run.
func (s *Store) RecordQuestion(ctx context.Context, rec QuestionRecord) (*QuestionRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.AskedAt.IsZero() {
		rec.AskedAt = time.Now().UTC()
	}

	s.logger.Debug("recording question",
		slog.String("id", rec.ID),
		slog.String("status", rec.Status))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO questions (id, question, sql_text, mode, status, duration_ms, asked_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Question, rec.SQL, rec.Mode, rec.Status,
		rec.Duration.Milliseconds(), rec.AskedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record question: %w", err)
	}
	return &rec, nil
}

// RecentQuestions returns up to limit records, newest first.
func (s *Store) RecentQuestions(ctx context.Context, limit int) ([]QuestionRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question, sql_text, mode, status, duration_ms, asked_at
		 FROM questions ORDER BY asked_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()

	var out []QuestionRecord
	for rows.Next() {
		var rec QuestionRecord
		var durMS int64
		if err := rows.Scan(&rec.ID, &rec.Question, &rec.SQL, &rec.Mode, &rec.Status, &durMS, &rec.AskedAt); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		rec.Duration = time.Duration(durMS) * time.Millisecond
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate questions: %w", err)
	}
	return out, nil
}

// ClearQuestions deletes the whole question log.
func (s *Store) ClearQuestions(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM questions`); err != nil {
		return fmt.Errorf("failed to clear questions: %w", err)
	}
	return nil
}

// SaveShortcut inserts or updates a shortcut by name.
func (s *Store) SaveShortcut(ctx context.Context, sc Shortcut) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if sc.Name == "" {
		return fmt.Errorf("shortcut name is required")
	}
	if sc.UpdatedAt.IsZero() {
		sc.UpdatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO shortcuts (name, question, chart_type, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   question = excluded.question,
		   chart_type = excluded.chart_type,
		   updated_at = excluded.updated_at`,
		sc.Name, sc.Question, sc.ChartType, sc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save shortcut: %w", err)
	}
	return nil
}

// ListShortcuts returns all shortcuts ordered by name.
func (s *Store) ListShortcuts(ctx context.Context) ([]Shortcut, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, question, chart_type, updated_at FROM shortcuts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list shortcuts: %w", err)
	}
	defer rows.Close()

	var out []Shortcut
	for rows.Next() {
		var sc Shortcut
		if err := rows.Scan(&sc.Name, &sc.Question, &sc.ChartType, &sc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan shortcut: %w", err)
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shortcuts: %w", err)
	}
	return out, nil
}

// GetShortcut looks one shortcut up by name.
func (s *Store) GetShortcut(ctx context.Context, name string) (*Shortcut, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	var sc Shortcut
	err := s.db.QueryRowContext(ctx,
		`SELECT name, question, chart_type, updated_at FROM shortcuts WHERE name = ?`, name,
	).Scan(&sc.Name, &sc.Question, &sc.ChartType, &sc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("shortcut not found: %s", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shortcut: %w", err)
	}
	return &sc, nil
}
