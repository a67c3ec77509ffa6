// Package productivity implements the todo and note features and their
// agent tools.
package productivity

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Priority levels in display order. Anything unrecognized sorts last.
var priorityOrder = map[string]int{
	"high":   0,
	"normal": 1,
	"low":    2,
}

// Todo is a single task item.
type Todo struct {
	ID        string     `json:"id"`
	Task      string     `json:"task"`
	Priority  string     `json:"priority"`
	DueDate   *time.Time `json:"due_date,omitempty"`
	Completed bool       `json:"completed"`
	CreatedAt time.Time  `json:"created_at"`
}

// Overdue reports whether the todo has a due date in the past and is
// still open.
func (t *Todo) Overdue(now time.Time) bool {
	return !t.Completed && t.DueDate != nil && t.DueDate.Before(now)
}

// Note is a free-form text note with optional tags and an optional
// model-generated summary.
type Note struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Summary   string    `json:"summary,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists todos and notes in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore opens (or creates) the productivity database.
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
	CREATE TABLE IF NOT EXISTS todos (
		id TEXT PRIMARY KEY,
		task TEXT NOT NULL,
		priority TEXT NOT NULL DEFAULT 'normal',
		due_date TEXT,
		completed INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_todos_open ON todos(completed);

	CREATE TABLE IF NOT EXISTS notes (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		summary TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails
		return uuid.New().String()
	}
	return id.String()
}

// AddTodo persists a new task. An empty priority defaults to normal;
// unknown priorities are rejected so list ordering stays meaningful.
func (s *Store) AddTodo(task, priority string, dueDate *time.Time) (*Todo, error) {
	if task == "" {
		return nil, fmt.Errorf("task must not be empty")
	}
	if priority == "" {
		priority = "normal"
	}
	if _, ok := priorityOrder[priority]; !ok {
		return nil, fmt.Errorf("invalid priority %q: must be high, normal or low", priority)
	}

	t := &Todo{
		ID:        newID(),
		Task:      task,
		Priority:  priority,
		DueDate:   dueDate,
		CreatedAt: time.Now().UTC(),
	}

	var due any
	if dueDate != nil {
		due = dueDate.UTC().Format(time.RFC3339Nano)
	}

	_, err := s.db.Exec(`
		INSERT INTO todos (id, task, priority, due_date, completed, created_at)
		VALUES (?, ?, ?, ?, 0, ?)
	`, t.ID, t.Task, t.Priority, due, t.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListTodos returns todos sorted by priority (high first), then due
// date (soonest first, undated last), then creation order. When
// includeCompleted is false only open tasks are returned.
func (s *Store) ListTodos(includeCompleted bool) ([]*Todo, error) {
	query := `SELECT id, task, priority, due_date, completed, created_at FROM todos`
	if !includeCompleted {
		query += ` WHERE completed = 0`
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var todos []*Todo
	for rows.Next() {
		var t Todo
		var due sql.NullString
		var completed int
		var createdAt string
		if err := rows.Scan(&t.ID, &t.Task, &t.Priority, &due, &completed, &createdAt); err != nil {
			return nil, err
		}
		if due.Valid {
			if d, err := time.Parse(time.RFC3339Nano, due.String); err == nil {
				t.DueDate = &d
			} else {
				s.logger.Warn("skipping unreadable due date", "todo_id", t.ID, "value", due.String)
			}
		}
		t.Completed = completed == 1
		t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		todos = append(todos, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(todos, func(i, j int) bool {
		pi, pj := todoRank(todos[i]), todoRank(todos[j])
		if pi != pj {
			return pi < pj
		}
		di, dj := todos[i].DueDate, todos[j].DueDate
		switch {
		case di != nil && dj != nil:
			if !di.Equal(*dj) {
				return di.Before(*dj)
			}
		case di != nil:
			return true
		case dj != nil:
			return false
		}
		// UUIDv7 ids sort by creation time.
		return todos[i].ID < todos[j].ID
	})

	return todos, nil
}

func todoRank(t *Todo) int {
	if r, ok := priorityOrder[t.Priority]; ok {
		return r
	}
	return len(priorityOrder)
}

// CompleteTodo marks a task done. Returns the number of rows affected.
func (s *Store) CompleteTodo(id string) (int64, error) {
	res, err := s.db.Exec(`UPDATE todos SET completed = 1 WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteTodo removes a task. Returns the number of rows affected.
func (s *Store) DeleteTodo(id string) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM todos WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClearCompleted removes all completed tasks and returns how many were
// deleted.
func (s *Store) ClearCompleted() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM todos WHERE completed = 1`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// AddNote persists a new note.
func (s *Store) AddNote(content, summary string, tags []string) (*Note, error) {
	if content == "" {
		return nil, fmt.Errorf("content must not be empty")
	}

	now := time.Now().UTC()
	n := &Note{
		ID:        newID(),
		Content:   content,
		Summary:   summary,
		Tags:      tags,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.Exec(`
		INSERT INTO notes (id, content, summary, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, n.ID, n.Content, n.Summary, joinTags(tags),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, err
	}
	return n, nil
}

// GetNotes returns notes newest-first, optionally filtered by a keyword
// (substring match on content and summary) and/or a tag.
func (s *Store) GetNotes(keyword, tag string) ([]*Note, error) {
	query := `SELECT id, content, summary, tags, created_at, updated_at FROM notes`
	var conds []string
	var args []any
	if keyword != "" {
		conds = append(conds, `(content LIKE ? OR summary LIKE ?)`)
		like := "%" + keyword + "%"
		args = append(args, like, like)
	}
	if tag != "" {
		conds = append(conds, `tags LIKE ?`)
		args = append(args, "%"+tag+"%")
	}
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []*Note
	for rows.Next() {
		var n Note
		var tags, createdAt, updatedAt string
		if err := rows.Scan(&n.ID, &n.Content, &n.Summary, &tags, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		n.Tags = splitTags(tags)
		n.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		n.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		notes = append(notes, &n)
	}

	return notes, rows.Err()
}

// UpdateNote replaces a note's content (and summary, which tracks the
// content) and refreshes updated_at. Returns the number of rows
// affected.
func (s *Store) UpdateNote(id, content, summary string) (int64, error) {
	if content == "" {
		return 0, fmt.Errorf("content must not be empty")
	}
	res, err := s.db.Exec(`
		UPDATE notes SET content = ?, summary = ?, updated_at = ? WHERE id = ?
	`, content, summary, time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteNote removes a note. Returns the number of rows affected.
func (s *Store) DeleteNote(id string) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Stats returns row counts for diagnostics.
func (s *Store) Stats() (map[string]int, error) {
	stats := make(map[string]int)
	for name, query := range map[string]string{
		"todos_open":  `SELECT COUNT(*) FROM todos WHERE completed = 0`,
		"todos_done":  `SELECT COUNT(*) FROM todos WHERE completed = 1`,
		"notes_total": `SELECT COUNT(*) FROM notes`,
	} {
		var n int
		if err := s.db.QueryRow(query).Scan(&n); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		stats[name] = n
	}
	return stats, nil
}

// Tags are stored as a comma-separated lowercase list. Fine at personal
// scale; a join table would be overkill here.

func joinTags(tags []string) string {
	clean := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			clean = append(clean, t)
		}
	}
	return strings.Join(clean, ",")
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
