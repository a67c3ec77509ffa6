package productivity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/quillhq/quill/internal/llm"
	"github.com/quillhq/quill/internal/prompts"
	"github.com/quillhq/quill/internal/tools"
)

// autoSummaryThreshold is the note length, in words, above which a
// one-sentence summary is generated.
const autoSummaryThreshold = 40

// Deps bundles what the productivity tools need beyond their own store.
type Deps struct {
	Store  *Store
	LLM    llm.Client
	Logger *slog.Logger
}

// RegisterTodoTools adds the task-management tools to the registry.
func RegisterTodoTools(reg *tools.Registry, d Deps) {
	reg.Register(&tools.Tool{
		Name:        "add_todo",
		Description: "Add a task to the todo list. Priority: high, normal or low. Due date format: YYYY-MM-DD HH:MM (optional).",
		Params: map[string]string{
			"task":     "what needs doing",
			"priority": "high, normal (default) or low",
			"due_date": "optional due time, e.g. 2026-03-01 17:00",
		},
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			task, _ := params["task"].(string)
			priority, _ := params["priority"].(string)

			due, err := parseDueDate(params["due_date"])
			if err != nil {
				return nil, err
			}

			t, err := d.Store.AddTodo(task, priority, due)
			if err != nil {
				return nil, err
			}
			return todoPayload(t, time.Now()), nil
		},
	})

	reg.Register(&tools.Tool{
		Name:        "bulk_add_todos",
		Description: "Add several tasks at once. Pass an array of task strings; all share the same priority.",
		Params: map[string]string{
			"tasks":    "array of task strings",
			"priority": "high, normal (default) or low",
		},
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			raw, ok := params["tasks"].([]any)
			if !ok || len(raw) == 0 {
				return nil, fmt.Errorf("tasks must be a non-empty array")
			}
			priority, _ := params["priority"].(string)

			added := make([]map[string]any, 0, len(raw))
			now := time.Now()
			for _, item := range raw {
				task, _ := item.(string)
				t, err := d.Store.AddTodo(task, priority, nil)
				if err != nil {
					return nil, fmt.Errorf("task %d: %w", len(added)+1, err)
				}
				added = append(added, todoPayload(t, now))
			}
			return map[string]any{"added": added, "count": len(added)}, nil
		},
	})

	reg.Register(&tools.Tool{
		Name:        "list_todos",
		Description: "List tasks sorted by priority then due date. Overdue tasks are flagged.",
		Params: map[string]string{
			"include_completed": "true to include finished tasks, default false",
		},
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			includeCompleted, _ := params["include_completed"].(bool)

			todos, err := d.Store.ListTodos(includeCompleted)
			if err != nil {
				return nil, err
			}

			out := make([]map[string]any, 0, len(todos))
			now := time.Now()
			for _, t := range todos {
				out = append(out, todoPayload(t, now))
			}
			return map[string]any{"todos": out, "count": len(out)}, nil
		},
	})

	reg.Register(&tools.Tool{
		Name:        "complete_todo",
		Description: "Mark a task as done.",
		Params: map[string]string{
			"id": "todo id",
		},
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			id, _ := params["id"].(string)
			if id == "" {
				return nil, fmt.Errorf("id is required")
			}
			n, err := d.Store.CompleteTodo(id)
			if err != nil {
				return nil, err
			}
			if n == 0 {
				return nil, fmt.Errorf("todo not found: %s", id)
			}
			return map[string]any{"completed": id}, nil
		},
	})

	reg.Register(&tools.Tool{
		Name:        "bulk_complete_todos",
		Description: "Mark several tasks done at once. Unknown ids are reported, not fatal.",
		Params: map[string]string{
			"ids": "array of todo ids",
		},
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			raw, ok := params["ids"].([]any)
			if !ok || len(raw) == 0 {
				return nil, fmt.Errorf("ids must be a non-empty array")
			}

			var completed, missing []string
			for _, item := range raw {
				id, _ := item.(string)
				if id == "" {
					continue
				}
				n, err := d.Store.CompleteTodo(id)
				if err != nil {
					return nil, err
				}
				if n == 0 {
					missing = append(missing, id)
				} else {
					completed = append(completed, id)
				}
			}
			return map[string]any{"completed": completed, "not_found": missing}, nil
		},
	})

	reg.Register(&tools.Tool{
		Name:        "delete_todo",
		Description: "Delete a task from the list entirely.",
		Params: map[string]string{
			"id": "todo id",
		},
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			id, _ := params["id"].(string)
			if id == "" {
				return nil, fmt.Errorf("id is required")
			}
			n, err := d.Store.DeleteTodo(id)
			if err != nil {
				return nil, err
			}
			if n == 0 {
				return nil, fmt.Errorf("todo not found: %s", id)
			}
			return map[string]any{"deleted": id}, nil
		},
	})
}

// RegisterNoteTools adds the note tools to the registry.
func RegisterNoteTools(reg *tools.Registry, d Deps) {
	reg.Register(&tools.Tool{
		Name:        "add_note",
		Description: "Save a note. Long notes get a one-sentence summary automatically. Tags are optional.",
		Params: map[string]string{
			"content": "the note text",
			"tags":    "optional array of tag strings",
		},
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			content, _ := params["content"].(string)
			tags := stringSlice(params["tags"])

			summary := d.maybeSummarize(ctx, content)
			n, err := d.Store.AddNote(content, summary, tags)
			if err != nil {
				return nil, err
			}
			return notePayload(n), nil
		},
	})

	reg.Register(&tools.Tool{
		Name:        "get_notes",
		Description: "Retrieve notes, newest first. Filter by keyword and/or tag.",
		Params: map[string]string{
			"keyword": "optional substring to search for",
			"tag":     "optional tag to filter by",
		},
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			keyword, _ := params["keyword"].(string)
			tag, _ := params["tag"].(string)

			notes, err := d.Store.GetNotes(keyword, tag)
			if err != nil {
				return nil, err
			}

			out := make([]map[string]any, 0, len(notes))
			for _, n := range notes {
				out = append(out, notePayload(n))
			}
			return map[string]any{"notes": out, "count": len(out)}, nil
		},
	})

	reg.Register(&tools.Tool{
		Name:        "update_note",
		Description: "Replace a note's content. The summary is regenerated for long notes.",
		Params: map[string]string{
			"id":      "note id",
			"content": "the new note text",
		},
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			id, _ := params["id"].(string)
			content, _ := params["content"].(string)
			if id == "" {
				return nil, fmt.Errorf("id is required")
			}

			summary := d.maybeSummarize(ctx, content)
			n, err := d.Store.UpdateNote(id, content, summary)
			if err != nil {
				return nil, err
			}
			if n == 0 {
				return nil, fmt.Errorf("note not found: %s", id)
			}
			return map[string]any{"updated": id}, nil
		},
	})

	reg.Register(&tools.Tool{
		Name:        "delete_note",
		Description: "Delete a note.",
		Params: map[string]string{
			"id": "note id",
		},
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			id, _ := params["id"].(string)
			if id == "" {
				return nil, fmt.Errorf("id is required")
			}
			n, err := d.Store.DeleteNote(id)
			if err != nil {
				return nil, err
			}
			if n == 0 {
				return nil, fmt.Errorf("note not found: %s", id)
			}
			return map[string]any{"deleted": id}, nil
		},
	})
}

// maybeSummarize generates a one-sentence summary for notes over the
// word threshold. Summarization failure is never fatal: the note is
// saved either way.
func (d Deps) maybeSummarize(ctx context.Context, content string) string {
	if len(strings.Fields(content)) <= autoSummaryThreshold {
		return ""
	}
	summary, err := d.LLM.Generate(ctx, prompts.NoteSummary(content), false)
	if err != nil {
		d.Logger.Warn("note auto-summary failed", "error", err)
		return ""
	}
	return strings.TrimSpace(summary)
}

func todoPayload(t *Todo, now time.Time) map[string]any {
	p := map[string]any{
		"id":        t.ID,
		"task":      t.Task,
		"priority":  t.Priority,
		"completed": t.Completed,
	}
	if t.DueDate != nil {
		p["due_date"] = t.DueDate.Local().Format("2006-01-02 15:04")
		p["overdue"] = t.Overdue(now)
	}
	return p
}

func notePayload(n *Note) map[string]any {
	p := map[string]any{
		"id":      n.ID,
		"content": n.Content,
		"created": n.CreatedAt.Local().Format("2006-01-02 15:04"),
	}
	if n.Summary != "" {
		p["summary"] = n.Summary
	}
	if len(n.Tags) > 0 {
		p["tags"] = n.Tags
	}
	return p
}

func parseDueDate(v any) (*time.Time, error) {
	s, _ := v.(string)
	if s == "" {
		return nil, nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04", s, time.Local); err == nil {
		return &t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return &t, nil
	}
	return nil, fmt.Errorf("invalid due_date %q: use YYYY-MM-DD HH:MM", s)
}

func stringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, _ := item.(string); s != "" {
			out = append(out, s)
		}
	}
	return out
}
