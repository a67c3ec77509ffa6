package productivity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/quillhq/quill/internal/notify"
	"github.com/quillhq/quill/internal/prompts"
	"github.com/quillhq/quill/internal/reminder"
	"github.com/quillhq/quill/internal/tools"
)

// RegisterSummaryTools adds the cross-cutting tools: the daily summary,
// completed-item cleanup, free-text summarization, and Slack delivery.
// reminders and slack may be nil when those subsystems are disabled.
func RegisterSummaryTools(reg *tools.Registry, d Deps, reminders *reminder.Service, slack *notify.Slack) {
	reg.Register(&tools.Tool{
		Name:        "get_daily_summary",
		Description: "Summarize today: open tasks (overdue flagged) and reminders due today.",
		Params:      map[string]string{},
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			text, err := buildDailySummary(d.Store, reminders, time.Now())
			if err != nil {
				return nil, err
			}
			return map[string]any{"summary": text}, nil
		},
	})

	reg.Register(&tools.Tool{
		Name:        "clear_completed",
		Description: "Remove finished todos and already-fired one-shot reminders.",
		Params:      map[string]string{},
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			todosCleared, err := d.Store.ClearCompleted()
			if err != nil {
				return nil, err
			}

			var remindersCleared int64
			if reminders != nil {
				remindersCleared, err = reminders.ClearFired()
				if err != nil {
					return nil, err
				}
			}
			return map[string]any{
				"todos_cleared":     todosCleared,
				"reminders_cleared": remindersCleared,
			}, nil
		},
	})

	reg.Register(&tools.Tool{
		Name:        "summarize_text",
		Description: "Summarize a piece of text concisely.",
		Params: map[string]string{
			"text": "the text to summarize",
		},
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			text, _ := params["text"].(string)
			if text == "" {
				return nil, fmt.Errorf("text is required")
			}
			summary, err := d.LLM.Generate(ctx, prompts.TextSummary(text), false)
			if err != nil {
				return nil, fmt.Errorf("summarize: %w", err)
			}
			return map[string]any{"summary": strings.TrimSpace(summary)}, nil
		},
	})

	reg.Register(&tools.Tool{
		Name:        "send_slack_message",
		Description: "Send a message to the configured Slack channel.",
		Params: map[string]string{
			"message": "the message to send",
		},
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			message, _ := params["message"].(string)
			if message == "" {
				return nil, fmt.Errorf("message is required")
			}
			if slack == nil || !slack.Configured() {
				return nil, fmt.Errorf("slack is not configured")
			}
			if !slack.Deliver(ctx, message, notify.MessageBlocks(message, time.Now())) {
				return nil, fmt.Errorf("slack delivery failed")
			}
			return map[string]any{"sent": true}, nil
		},
	})

	reg.Register(&tools.Tool{
		Name:        "send_slack_daily_summary",
		Description: "Build the daily summary and post it to Slack.",
		Params:      map[string]string{},
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			if slack == nil || !slack.Configured() {
				return nil, fmt.Errorf("slack is not configured")
			}
			text, err := buildDailySummary(d.Store, reminders, time.Now())
			if err != nil {
				return nil, err
			}
			if !slack.Deliver(ctx, text, notify.MessageBlocks(text, time.Now())) {
				return nil, fmt.Errorf("slack delivery failed")
			}
			return map[string]any{"sent": true, "summary": text}, nil
		},
	})
}

// buildDailySummary renders the plain-text digest shared by the
// get_daily_summary and send_slack_daily_summary tools.
func buildDailySummary(store *Store, reminders *reminder.Service, now time.Time) (string, error) {
	todos, err := store.ListTodos(false)
	if err != nil {
		return "", fmt.Errorf("list todos: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Daily summary for %s\n", now.Format("Monday, January 2"))

	if len(todos) == 0 {
		b.WriteString("\nNo open tasks.\n")
	} else {
		fmt.Fprintf(&b, "\nOpen tasks (%d):\n", len(todos))
		for _, t := range todos {
			line := fmt.Sprintf("- [%s] %s", t.Priority, t.Task)
			if t.DueDate != nil {
				line += fmt.Sprintf(" (due %s)", t.DueDate.Local().Format("Jan 2 15:04"))
				if t.Overdue(now) {
					line += " OVERDUE"
				}
			}
			b.WriteString(line + "\n")
		}
	}

	if reminders != nil {
		pending, err := reminders.List()
		if err != nil {
			return "", fmt.Errorf("list reminders: %w", err)
		}
		var today []*reminder.Reminder
		dayEnd := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, now.Location())
		for _, r := range pending {
			if !r.RemindAt.After(dayEnd) {
				today = append(today, r)
			}
		}
		if len(today) > 0 {
			fmt.Fprintf(&b, "\nReminders today (%d):\n", len(today))
			for _, r := range today {
				fmt.Fprintf(&b, "- %s at %s\n", r.Message, r.RemindAt.Local().Format("15:04"))
			}
		}
	}

	return strings.TrimRight(b.String(), "\n"), nil
}
