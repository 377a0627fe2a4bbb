package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erpdesk/printflow/internal/orchestrate"
)

const (
	insertSession = `
		INSERT INTO print_sessions (session_id, document_type, document_id, title, status, printer, copies, retry_count, error_message, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			status = excluded.status,
			printer = excluded.printer,
			retry_count = excluded.retry_count,
			error_message = excluded.error_message,
			completed_at = excluded.completed_at
	`

	listSessions = `
		SELECT session_id, document_type, document_id, title, status, printer, copies, retry_count, error_message, created_at, completed_at
		FROM print_sessions ORDER BY created_at DESC LIMIT ?
	`

	countByStatus = `SELECT COUNT(*) FROM print_sessions WHERE status = ?`
)

// Entry is one finished orchestration session as stored.
type Entry struct {
	SessionID    string    `json:"session_id"`
	DocumentType string    `json:"document_type"`
	DocumentID   string    `json:"document_id"`
	Title        string    `json:"title"`
	Status       string    `json:"status"`
	Printer      string    `json:"printer"`
	Copies       int       `json:"copies"`
	RetryCount   int       `json:"retry_count"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	CompletedAt  time.Time `json:"completed_at"`
}

// Store keeps an audit trail of finished print sessions. A session that is
// retried and fails again overwrites its row, so the store holds the final
// outcome per session.
type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RecordSession satisfies orchestrate.Recorder.
func (s *Store) RecordSession(rec orchestrate.Record) error {
	_, err := s.db.Exec(insertSession,
		rec.SessionID, string(rec.Document.Type), rec.Document.ID, rec.Document.Title,
		rec.Status, rec.Printer, rec.Copies, rec.RetryCount, rec.ErrorMessage,
		rec.CreatedAt, rec.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to record session: %w", err)
	}
	return nil
}

// Recent returns the latest finished sessions, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, listSessions, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		if err := rows.Scan(
			&e.SessionID, &e.DocumentType, &e.DocumentID, &e.Title,
			&e.Status, &e.Printer, &e.Copies, &e.RetryCount, &e.ErrorMessage,
			&e.CreatedAt, &e.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountByStatus returns how many stored sessions ended in the given status.
func (s *Store) CountByStatus(ctx context.Context, status string) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, countByStatus, status).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}
