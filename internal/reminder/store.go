package reminder

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store handles reminder persistence. Every mutation is a single
// statement so no reminder is ever observable half-written.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates a reminder store with a SQLite backend.
func NewStore(dbPath string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reminders (
		id TEXT PRIMARY KEY,
		message TEXT NOT NULL,
		remind_at TEXT NOT NULL,
		recurrence TEXT NOT NULL DEFAULT 'none',
		fired INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reminders_pending ON reminders(fired, remind_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Create persists a new reminder.
func (s *Store) Create(r *Reminder) error {
	if r.ID == "" {
		r.ID = NewID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	fired := 0
	if r.Fired {
		fired = 1
	}

	_, err := s.db.Exec(`
		INSERT INTO reminders (id, message, remind_at, recurrence, fired, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.Message, r.RemindAt.UTC().Format(time.RFC3339Nano), string(r.Recurrence),
		fired, r.CreatedAt.Format(time.RFC3339Nano))

	return err
}

// Get retrieves a reminder by ID. Returns nil, nil when absent.
func (s *Store) Get(id string) (*Reminder, error) {
	row := s.db.QueryRow(`
		SELECT id, message, remind_at, recurrence, fired, created_at
		FROM reminders WHERE id = ?
	`, id)

	r, err := s.scanReminder(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// ListPending returns un-fired reminders ordered by due time. Rows with
// unparsable fire times are skipped and logged, never fatal: a corrupt
// row must not take the whole subsystem down.
func (s *Store) ListPending() ([]*Reminder, error) {
	rows, err := s.db.Query(`
		SELECT id, message, remind_at, recurrence, fired, created_at
		FROM reminders WHERE fired = 0
		ORDER BY remind_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reminders []*Reminder
	for rows.Next() {
		r, err := s.scanReminder(rows.Scan)
		if err != nil {
			s.logger.Warn("skipping unreadable reminder row", "error", err)
			continue
		}
		reminders = append(reminders, r)
	}

	return reminders, rows.Err()
}

// UpdateRemindAt moves a reminder's fire time. Returns the number of
// rows affected; zero means the reminder was deleted concurrently, and
// callers must not re-arm in that case.
func (s *Store) UpdateRemindAt(id string, at time.Time) (int64, error) {
	res, err := s.db.Exec(`
		UPDATE reminders SET remind_at = ? WHERE id = ? AND fired = 0
	`, at.UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkFired transitions a one-shot reminder to its terminal state.
func (s *Store) MarkFired(id string) (int64, error) {
	res, err := s.db.Exec(`UPDATE reminders SET fired = 1 WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete removes a reminder row. Returns the number of rows affected.
func (s *Store) Delete(id string) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM reminders WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteFired removes all terminal reminders (used by clear_completed).
func (s *Store) DeleteFired() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM reminders WHERE fired = 1`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// scanReminder reads one row via the given scan function, parsing the
// stored timestamps. A bad remind_at produces an error rather than a
// zero time so callers can decide to skip the row.
func (s *Store) scanReminder(scan func(dest ...any) error) (*Reminder, error) {
	var r Reminder
	var remindAt, recurrence, createdAt string
	var fired int

	if err := scan(&r.ID, &r.Message, &remindAt, &recurrence, &fired, &createdAt); err != nil {
		return nil, err
	}

	at, err := time.Parse(time.RFC3339Nano, remindAt)
	if err != nil {
		return nil, fmt.Errorf("reminder %s: parse remind_at %q: %w", r.ID, remindAt, err)
	}

	r.RemindAt = at
	r.Recurrence = Recurrence(recurrence)
	r.Fired = fired == 1
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

	return &r, nil
}
