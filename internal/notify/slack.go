package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/quillhq/quill/internal/buildinfo"
)

// Slack posts notifications to a Slack incoming webhook.
type Slack struct {
	webhookURL string
	logger     *slog.Logger
	httpClient *http.Client
}

// NewSlack creates a Slack notifier. An empty webhookURL disables
// delivery; messages are logged locally instead.
func NewSlack(webhookURL string, logger *slog.Logger) *Slack {
	return &Slack{
		webhookURL: webhookURL,
		logger:     logger,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Configured reports whether a webhook URL is set.
func (s *Slack) Configured() bool {
	return s.webhookURL != ""
}

// Deliver implements Notifier. Returns false when the webhook is not
// configured, the request fails, or Slack responds non-200.
func (s *Slack) Deliver(ctx context.Context, message string, blocks []Block) bool {
	if s.webhookURL == "" {
		s.logger.Info("slack webhook not configured, notification logged only", "message", message)
		return false
	}

	payload := map[string]any{"text": message}
	if len(blocks) > 0 {
		payload["blocks"] = blocks
	}

	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("slack payload marshal failed", "error", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.webhookURL, bytes.NewReader(body))
	if err != nil {
		s.logger.Warn("slack request build failed", "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Warn("slack notification failed", "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("slack notification rejected", "status", resp.StatusCode)
		return false
	}
	return true
}

// ReminderBlocks builds the Block Kit payload for a fired reminder.
func ReminderBlocks(reminderID, message string, firedAt time.Time) []Block {
	return []Block{
		{
			"type": "section",
			"text": map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Reminder*\n%s", message)},
		},
		{
			"type": "context",
			"elements": []any{
				map[string]any{
					"type": "mrkdwn",
					"text": fmt.Sprintf("Fired at %s  |  ID: `%s`", firedAt.Format("03:04 PM"), reminderID),
				},
			},
		},
		{"type": "divider"},
	}
}

// MessageBlocks builds the Block Kit payload for an ad-hoc message sent
// via the send_slack_message tool.
func MessageBlocks(message string, sentAt time.Time) []Block {
	return []Block{
		{
			"type": "section",
			"text": map[string]any{"type": "mrkdwn", "text": message},
		},
		{
			"type": "context",
			"elements": []any{
				map[string]any{
					"type": "mrkdwn",
					"text": fmt.Sprintf("Sent via Quill · %s", sentAt.Format("Jan 02, 03:04 PM")),
				},
			},
		},
	}
}
