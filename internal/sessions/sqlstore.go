package sessions

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/haasonsaas/researchagent/pkg/models"
)

// SummaryStore is the optional durable store for session summaries; the
// file-derived scan remains the source of truth for responses, this store
// only makes display names and ordering survive data-directory moves.
type SummaryStore interface {
	Upsert(ctx context.Context, summary models.SessionSummary) error
	List(ctx context.Context) ([]models.SessionSummary, error)
	Delete(ctx context.Context, sessionID string) error
	Close() error
}

const summarySchema = `
CREATE TABLE IF NOT EXISTS session_summaries (
	session_id     TEXT PRIMARY KEY,
	display_name   TEXT NOT NULL DEFAULT '',
	first_message  TEXT NOT NULL DEFAULT '',
	response_count INTEGER NOT NULL DEFAULT 0,
	created_at     TIMESTAMP NOT NULL,
	updated_at     TIMESTAMP NOT NULL
)`

// SQLStore implements SummaryStore over database/sql. The schema is
// dialect-neutral so the same code serves the SQLite default and the
// Postgres deployment variant.
type SQLStore struct {
	db          *sql.DB
	placeholder func(int) string
}

// OpenSQLite opens (and migrates) a SQLite-backed store at path using the
// cgo-free driver registered by the sqlite driver file.
func OpenSQLite(path string) (*SQLStore, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("sessions: open sqlite %s: %w", path, err)
	}
	return newSQLStore(db, func(i int) string { return "?" })
}

// OpenPostgres opens (and migrates) a Postgres-backed store for
// multi-instance deployments.
func OpenPostgres(dsn string) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("sessions: open postgres: %w", err)
	}
	return newSQLStore(db, func(i int) string { return fmt.Sprintf("$%d", i) })
}

// NewSQLStoreFromDB wraps an existing handle, used by tests with sqlmock.
func NewSQLStoreFromDB(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, placeholder: func(i int) string { return "?" }}
}

func newSQLStore(db *sql.DB, placeholder func(int) string) (*SQLStore, error) {
	if _, err := db.Exec(summarySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sessions: migrate summaries: %w", err)
	}
	return &SQLStore{db: db, placeholder: placeholder}, nil
}

func (s *SQLStore) Upsert(ctx context.Context, summary models.SessionSummary) error {
	p := s.placeholder
	query := fmt.Sprintf(`INSERT INTO session_summaries
		(session_id, display_name, first_message, response_count, created_at, updated_at)
		VALUES (%s, %s, %s, %s, %s, %s)
		ON CONFLICT (session_id) DO UPDATE SET
		display_name = EXCLUDED.display_name,
		first_message = EXCLUDED.first_message,
		response_count = EXCLUDED.response_count,
		updated_at = EXCLUDED.updated_at`,
		p(1), p(2), p(3), p(4), p(5), p(6))

	createdAt := summary.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, query,
		summary.SessionID, summary.DisplayName, summary.FirstMessage,
		summary.ResponseCount, createdAt, summary.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sessions: upsert summary %s: %w", summary.SessionID, err)
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context) ([]models.SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT session_id, display_name, first_message, response_count, created_at, updated_at
		FROM session_summaries ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("sessions: list summaries: %w", err)
	}
	defer rows.Close()

	var out []models.SessionSummary
	for rows.Next() {
		var s models.SessionSummary
		if err := rows.Scan(&s.SessionID, &s.DisplayName, &s.FirstMessage, &s.ResponseCount, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sessions: scan summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (s *SQLStore) Delete(ctx context.Context, sessionID string) error {
	query := fmt.Sprintf("DELETE FROM session_summaries WHERE session_id = %s", s.placeholder(1))
	if _, err := s.db.ExecContext(ctx, query, sessionID); err != nil {
		return fmt.Errorf("sessions: delete summary %s: %w", sessionID, err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
