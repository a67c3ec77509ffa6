package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/quillhq/quill/internal/tools"
)

// RegisterTools exposes the reminder service to the agent.
func RegisterTools(reg *tools.Registry, svc *Service) {
	reg.Register(&tools.Tool{
		Name:        "set_reminder",
		Description: "Set a reminder for a specific time. Time format: YYYY-MM-DD HH:MM. Recurrence: none, daily or weekly.",
		Params: map[string]string{
			"message":    "what to remind about",
			"time":       "when to fire, e.g. 2026-03-01 09:00",
			"recurrence": "none (default), daily or weekly",
		},
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			message, _ := params["message"].(string)
			timeStr, _ := params["time"].(string)
			recurrence, _ := params["recurrence"].(string)

			if timeStr == "" {
				return nil, fmt.Errorf("time is required")
			}
			at, err := ParseRemindAt(timeStr)
			if err != nil {
				return nil, err
			}

			r, err := svc.Create(message, at, Recurrence(recurrence))
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"id":         r.ID,
				"message":    r.Message,
				"remind_at":  r.RemindAt.Local().Format(TimeFormat),
				"recurrence": string(r.Recurrence),
			}, nil
		},
	})

	reg.Register(&tools.Tool{
		Name:        "list_reminders",
		Description: "List all pending reminders ordered by due time.",
		Params:      map[string]string{},
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			pending, err := svc.List()
			if err != nil {
				return nil, err
			}

			out := make([]map[string]any, 0, len(pending))
			now := time.Now()
			for _, r := range pending {
				out = append(out, map[string]any{
					"id":         r.ID,
					"message":    r.Message,
					"remind_at":  r.RemindAt.Local().Format(TimeFormat),
					"recurrence": string(r.Recurrence),
					"overdue":    !r.RemindAt.After(now),
				})
			}
			return map[string]any{"reminders": out, "count": len(out)}, nil
		},
	})

	reg.Register(&tools.Tool{
		Name:        "snooze_reminder",
		Description: "Push a pending reminder's due time out by a number of minutes (default 15).",
		Params: map[string]string{
			"id":      "reminder id",
			"minutes": "how long to snooze, default 15",
		},
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			id, _ := params["id"].(string)
			if id == "" {
				return nil, fmt.Errorf("id is required")
			}

			minutes := 15.0
			if m, ok := params["minutes"].(float64); ok && m > 0 {
				minutes = m
			}

			r, err := svc.Snooze(id, time.Duration(minutes)*time.Minute)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"id":        r.ID,
				"message":   r.Message,
				"remind_at": r.RemindAt.Local().Format(TimeFormat),
			}, nil
		},
	})

	reg.Register(&tools.Tool{
		Name:        "delete_reminder",
		Description: "Cancel a reminder so it never fires.",
		Params: map[string]string{
			"id": "reminder id",
		},
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			id, _ := params["id"].(string)
			if id == "" {
				return nil, fmt.Errorf("id is required")
			}
			if err := svc.Cancel(id); err != nil {
				return nil, err
			}
			return map[string]any{"deleted": id}, nil
		},
	})
}
