package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/osoriodev/coursebot/internal/chat"
)

// DefaultWindow is the number of turns retained per chat.
const DefaultWindow = 10

const schema = `
CREATE TABLE IF NOT EXISTS history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_id INTEGER NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at INTEGER NOT NULL DEFAULT (unixepoch())
);
CREATE INDEX IF NOT EXISTS idx_history_chat_id ON history(chat_id, id);
`

// Store is a keyed conversation history: chat id -> ordered turns, capped at
// the most recent window entries. Turns are only appended; the cap is
// enforced at append time so every reader sees it already applied.
type Store struct {
	db     *sql.DB
	window int
}

// Open opens (or creates) the history database at the given path, ensuring
// the parent directory exists. A window <= 0 falls back to DefaultWindow.
func Open(path string, window int) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history db directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open history db at %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}

	if window <= 0 {
		window = DefaultWindow
	}
	return &Store{db: db, window: window}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append adds one turn to the chat's history and evicts the oldest entries
// beyond the retention window.
func (s *Store) Append(chatID int64, role, content string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"INSERT INTO history (chat_id, role, content) VALUES (?, ?, ?)",
		chatID, role, content,
	); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`DELETE FROM history WHERE chat_id = ? AND id NOT IN (
			SELECT id FROM history WHERE chat_id = ? ORDER BY id DESC LIMIT ?
		)`,
		chatID, chatID, s.window,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// Recent returns the retained turns for the given chat in chronological
// order (oldest first).
func (s *Store) Recent(chatID int64) ([]chat.Message, error) {
	rows, err := s.db.Query(
		"SELECT role, content FROM history WHERE chat_id = ? ORDER BY id DESC LIMIT ?",
		chatID, s.window,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []chat.Message
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			continue
		}
		mapped := chat.RoleUser
		if role == chat.RoleAssistant {
			mapped = chat.RoleAssistant
		}
		results = append(results, chat.Message{Role: mapped, Content: content})
	}

	// Reverse to chronological order.
	for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
		results[i], results[j] = results[j], results[i]
	}
	return results, nil
}
