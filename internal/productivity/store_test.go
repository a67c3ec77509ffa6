package productivity

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "productivity_test.db"), testLogger())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddTodo_Validation(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.AddTodo("", "normal", nil); err == nil {
		t.Error("expected error for empty task")
	}
	if _, err := s.AddTodo("x", "urgent", nil); err == nil {
		t.Error("expected error for unknown priority")
	}

	todo, err := s.AddTodo("x", "", nil)
	if err != nil {
		t.Fatalf("AddTodo: %v", err)
	}
	if todo.Priority != "normal" {
		t.Errorf("default priority = %q", todo.Priority)
	}
}

func TestListTodos_SortOrder(t *testing.T) {
	s := newTestStore(t)

	soon := time.Now().Add(time.Hour)
	later := time.Now().Add(48 * time.Hour)

	if _, err := s.AddTodo("low undated", "low", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddTodo("normal later", "normal", &later); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddTodo("high undated", "high", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddTodo("high soon", "high", &soon); err != nil {
		t.Fatal(err)
	}

	todos, err := s.ListTodos(false)
	if err != nil {
		t.Fatalf("ListTodos: %v", err)
	}

	want := []string{"high soon", "high undated", "normal later", "low undated"}
	if len(todos) != len(want) {
		t.Fatalf("got %d todos, want %d", len(todos), len(want))
	}
	for i, task := range want {
		if todos[i].Task != task {
			t.Errorf("todos[%d] = %q, want %q", i, todos[i].Task, task)
		}
	}
}

func TestListTodos_ExcludesCompletedByDefault(t *testing.T) {
	s := newTestStore(t)

	done, err := s.AddTodo("finished", "normal", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddTodo("open", "normal", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CompleteTodo(done.ID); err != nil {
		t.Fatalf("CompleteTodo: %v", err)
	}

	open, err := s.ListTodos(false)
	if err != nil {
		t.Fatalf("ListTodos: %v", err)
	}
	if len(open) != 1 || open[0].Task != "open" {
		t.Errorf("open todos = %+v", open)
	}

	all, err := s.ListTodos(true)
	if err != nil {
		t.Fatalf("ListTodos(true): %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all todos = %d, want 2", len(all))
	}
}

func TestTodo_Overdue(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	overdue := &Todo{DueDate: &past}
	if !overdue.Overdue(now) {
		t.Error("past due date must be overdue")
	}

	if (&Todo{DueDate: &future}).Overdue(now) {
		t.Error("future due date must not be overdue")
	}
	if (&Todo{}).Overdue(now) {
		t.Error("undated todo must not be overdue")
	}
	if (&Todo{DueDate: &past, Completed: true}).Overdue(now) {
		t.Error("completed todo must not be overdue")
	}
}

func TestClearCompleted(t *testing.T) {
	s := newTestStore(t)

	a, _ := s.AddTodo("a", "normal", nil)
	b, _ := s.AddTodo("b", "normal", nil)
	if _, err := s.CompleteTodo(a.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CompleteTodo(b.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddTodo("c", "normal", nil); err != nil {
		t.Fatal(err)
	}

	n, err := s.ClearCompleted()
	if err != nil {
		t.Fatalf("ClearCompleted: %v", err)
	}
	if n != 2 {
		t.Errorf("cleared %d, want 2", n)
	}

	remaining, err := s.ListTodos(true)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 1 || remaining[0].Task != "c" {
		t.Errorf("remaining = %+v", remaining)
	}
}

func TestGetNotes_Filters(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.AddNote("grocery run: milk and eggs", "", []string{"errands"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddNote("quarterly planning ideas", "roadmap summary", []string{"work"}); err != nil {
		t.Fatal(err)
	}

	byKeyword, err := s.GetNotes("milk", "")
	if err != nil {
		t.Fatalf("GetNotes: %v", err)
	}
	if len(byKeyword) != 1 || byKeyword[0].Content != "grocery run: milk and eggs" {
		t.Errorf("keyword filter = %+v", byKeyword)
	}

	// Keyword matches summaries too.
	bySummary, err := s.GetNotes("roadmap", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(bySummary) != 1 {
		t.Errorf("summary keyword match = %d notes", len(bySummary))
	}

	byTag, err := s.GetNotes("", "work")
	if err != nil {
		t.Fatal(err)
	}
	if len(byTag) != 1 || byTag[0].Content != "quarterly planning ideas" {
		t.Errorf("tag filter = %+v", byTag)
	}

	all, err := s.GetNotes("", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("unfiltered = %d notes", len(all))
	}
	// Newest first.
	if all[0].Content != "quarterly planning ideas" {
		t.Errorf("all[0] = %q, want newest", all[0].Content)
	}
}

func TestUpdateNote(t *testing.T) {
	s := newTestStore(t)

	n, err := s.AddNote("draft", "", nil)
	if err != nil {
		t.Fatal(err)
	}

	count, err := s.UpdateNote(n.ID, "final", "")
	if err != nil {
		t.Fatalf("UpdateNote: %v", err)
	}
	if count != 1 {
		t.Errorf("affected = %d", count)
	}

	notes, err := s.GetNotes("final", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 1 {
		t.Fatalf("updated note not found")
	}
	if !notes[0].UpdatedAt.After(notes[0].CreatedAt) && !notes[0].UpdatedAt.Equal(notes[0].CreatedAt) {
		t.Error("UpdatedAt not refreshed")
	}

	if count, _ := s.UpdateNote("ghost", "x", ""); count != 0 {
		t.Errorf("update of missing note affected %d rows", count)
	}
}

func TestDeleteNote(t *testing.T) {
	s := newTestStore(t)

	n, err := s.AddNote("bye", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	count, err := s.DeleteNote(n.ID)
	if err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	if count != 1 {
		t.Errorf("affected = %d", count)
	}

	notes, err := s.GetNotes("", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 0 {
		t.Errorf("notes remaining = %d", len(notes))
	}
}
