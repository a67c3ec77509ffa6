// Package notify delivers reminder and ad-hoc notifications to external
// channels. Delivery is strictly best-effort: failures are logged and
// reported as a false return, never as an error, and never influence
// trigger state.
package notify

import "context"

// Block is one Slack Block Kit element. Blocks are built as loose maps
// because the Block Kit schema is large and we only emit a few shapes.
type Block = map[string]any

// Notifier is the notification channel consumed by the reminder service
// and the Slack tools. Deliver reports whether the message reached the
// channel.
type Notifier interface {
	Deliver(ctx context.Context, message string, blocks []Block) bool
}

// Multi fans a notification out to several channels. Delivery counts as
// successful when at least one channel accepts it.
type Multi []Notifier

// Deliver implements Notifier.
func (m Multi) Deliver(ctx context.Context, message string, blocks []Block) bool {
	delivered := false
	for _, n := range m {
		if n.Deliver(ctx, message, blocks) {
			delivered = true
		}
	}
	return delivered
}
