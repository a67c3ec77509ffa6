package memory

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Store is a SQLite-backed conversation memory store.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the memory database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, id);

	CREATE TABLE IF NOT EXISTS summaries (
		session_id TEXT PRIMARY KEY,
		content TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession persists a new session. If id is empty a UUID is generated.
func (s *Store) CreateSession(id, name string) (*Session, error) {
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()

	_, err := s.db.Exec(`
		INSERT INTO sessions (id, name, created_at) VALUES (?, ?, ?)
	`, id, name, now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &Session{ID: id, Name: name, CreatedAt: now}, nil
}

// GetSession retrieves a session by ID. Returns nil, nil when absent.
func (s *Store) GetSession(id string) (*Session, error) {
	row := s.db.QueryRow(`SELECT id, name, created_at FROM sessions WHERE id = ?`, id)

	var sess Session
	var createdAt string
	if err := row.Scan(&sess.ID, &sess.Name, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &sess, nil
}

// ListSessions returns all sessions, newest first.
func (s *Store) ListSessions() ([]*Session, error) {
	rows, err := s.db.Query(`SELECT id, name, created_at FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		var sess Session
		var createdAt string
		if err := rows.Scan(&sess.ID, &sess.Name, &createdAt); err != nil {
			return nil, err
		}
		sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		sessions = append(sessions, &sess)
	}
	return sessions, rows.Err()
}

// RenameSession updates a session's display name.
// Returns an error if the session does not exist.
func (s *Store) RenameSession(id, name string) error {
	res, err := s.db.Exec(`UPDATE sessions SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("session not found: %s", id)
	}
	return nil
}

// DeleteSession removes a session, its messages, and its summary in one
// transaction so a crash cannot leave orphaned rows.
func (s *Store) DeleteSession(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("session not found: %s", id)
	}

	if _, err := tx.Exec(`DELETE FROM messages WHERE session_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM summaries WHERE session_id = ?`, id); err != nil {
		return err
	}

	return tx.Commit()
}

// AddMessage appends a message to a session's history. The session row
// is created on demand so callers can write to fresh session IDs.
func (s *Store) AddMessage(sessionID, role, content string) error {
	now := time.Now().UTC()

	// Ensure the session exists. INSERT OR IGNORE keeps this a single
	// atomic statement.
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO sessions (id, name, created_at) VALUES (?, ?, ?)
	`, sessionID, "New Chat", now.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("ensure session: %w", err)
	}

	msgID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("message id: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO messages (id, session_id, role, content, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, msgID.String(), sessionID, role, content, now.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	return nil
}

// GetHistory returns the most recent limit messages for a session,
// ordered oldest-first for prompt construction. UUIDv7 message IDs sort
// by creation time, so insertion order survives the round trip.
func (s *Store) GetHistory(sessionID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(`
		SELECT role, content, timestamp FROM messages
		WHERE session_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		var ts string
		if err := rows.Scan(&m.Role, &m.Content, &ts); err != nil {
			return nil, err
		}
		m.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse newest-first into oldest-first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// CountMessages returns the total message count for a session.
func (s *Store) CountMessages(sessionID string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE session_id = ?`, sessionID).Scan(&count)
	return count, err
}

// SaveSummary upserts the rolling summary for a session. At most one
// row exists per session; a refresh fully replaces the prior text.
func (s *Store) SaveSummary(sessionID, content string) error {
	_, err := s.db.Exec(`
		INSERT INTO summaries (session_id, content) VALUES (?, ?)
		ON CONFLICT(session_id) DO UPDATE SET content = excluded.content
	`, sessionID, content)
	return err
}

// GetSummary returns the session's summary, or "" when none exists.
func (s *Store) GetSummary(sessionID string) (string, error) {
	var content string
	err := s.db.QueryRow(`SELECT content FROM summaries WHERE session_id = ?`, sessionID).Scan(&content)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return content, err
}

// Stats returns memory statistics for the dashboard and health checks.
func (s *Store) Stats() map[string]any {
	var sessionCount, msgCount int
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&sessionCount)
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&msgCount)

	return map[string]any{
		"sessions": sessionCount,
		"messages": msgCount,
		"storage":  "sqlite",
	}
}
