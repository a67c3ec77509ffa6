package reminder

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/quillhq/quill/internal/tools"
)

func newToolRegistry(t *testing.T) (*tools.Registry, *Service) {
	t.Helper()
	svc, _, _ := newTestService(t, "")
	reg := tools.NewRegistry()
	RegisterTools(reg, svc)
	return reg, svc
}

func TestSetReminderTool(t *testing.T) {
	reg, svc := newToolRegistry(t)

	future := time.Now().Add(time.Hour).Format(TimeFormat)
	res := reg.Execute(context.Background(), "set_reminder", map[string]any{
		"message": "dentist",
		"time":    future,
	})
	if !res.Success {
		t.Fatalf("set_reminder failed: %s", res.Error)
	}

	out := res.Result.(map[string]any)
	if out["recurrence"] != "none" {
		t.Errorf("recurrence = %v, want default none", out["recurrence"])
	}

	pending, err := svc.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].Message != "dentist" {
		t.Errorf("pending = %+v", pending)
	}
}

func TestSetReminderTool_PastTimeFails(t *testing.T) {
	reg, _ := newToolRegistry(t)

	past := time.Now().Add(-time.Hour).Format(TimeFormat)
	res := reg.Execute(context.Background(), "set_reminder", map[string]any{
		"message": "too late",
		"time":    past,
	})
	if res.Success {
		t.Fatal("expected failure for past time")
	}
	if !strings.Contains(res.Error, "future") {
		t.Errorf("error = %q", res.Error)
	}
}

func TestSnoozeReminderTool_MinutesParam(t *testing.T) {
	reg, svc := newToolRegistry(t)

	r, err := svc.Create("call mom", time.Now().Add(time.Hour), RecurrenceNone)
	if err != nil {
		t.Fatal(err)
	}

	// JSON numbers decode to float64.
	res := reg.Execute(context.Background(), "snooze_reminder", map[string]any{
		"id":      r.ID,
		"minutes": float64(45),
	})
	if !res.Success {
		t.Fatalf("snooze_reminder failed: %s", res.Error)
	}

	pending, err := svc.List()
	if err != nil {
		t.Fatal(err)
	}
	want := r.RemindAt.Add(45 * time.Minute)
	if !pending[0].RemindAt.Equal(want) {
		t.Errorf("RemindAt = %v, want %v", pending[0].RemindAt, want)
	}
}

func TestDeleteReminderTool(t *testing.T) {
	reg, svc := newToolRegistry(t)

	r, err := svc.Create("obsolete", time.Now().Add(time.Hour), RecurrenceNone)
	if err != nil {
		t.Fatal(err)
	}

	res := reg.Execute(context.Background(), "delete_reminder", map[string]any{"id": r.ID})
	if !res.Success {
		t.Fatalf("delete_reminder failed: %s", res.Error)
	}

	res = reg.Execute(context.Background(), "delete_reminder", map[string]any{"id": r.ID})
	if res.Success {
		t.Error("expected failure deleting twice")
	}
}

func TestListRemindersTool_MarksOverdue(t *testing.T) {
	reg, svc := newToolRegistry(t)

	// Seed an overdue row directly through the store.
	overdue := &Reminder{
		Message:    "was due",
		RemindAt:   time.Now().Add(-time.Hour).UTC(),
		Recurrence: RecurrenceNone,
	}
	if err := svc.store.Create(overdue); err != nil {
		t.Fatal(err)
	}

	res := reg.Execute(context.Background(), "list_reminders", nil)
	if !res.Success {
		t.Fatalf("list_reminders failed: %s", res.Error)
	}
	out := res.Result.(map[string]any)
	items := out["reminders"].([]map[string]any)
	if len(items) != 1 {
		t.Fatalf("reminders = %v", items)
	}
	if items[0]["overdue"] != true {
		t.Errorf("overdue = %v", items[0]["overdue"])
	}
}
