package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
	CREATE TABLE IF NOT EXISTS print_sessions (
		session_id    TEXT PRIMARY KEY,
		document_type TEXT NOT NULL,
		document_id   TEXT NOT NULL,
		title         TEXT NOT NULL DEFAULT '',
		status        TEXT NOT NULL,
		printer       TEXT NOT NULL DEFAULT '',
		copies        INTEGER NOT NULL DEFAULT 1,
		retry_count   INTEGER NOT NULL DEFAULT 0,
		error_message TEXT NOT NULL DEFAULT '',
		created_at    DATETIME NOT NULL,
		completed_at  DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_print_sessions_created
		ON print_sessions (created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_print_sessions_status
		ON print_sessions (status);
`

func open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply history schema: %w", err)
	}

	return db, nil
}
