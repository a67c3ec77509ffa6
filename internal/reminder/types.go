// Package reminder implements the durable scheduled-trigger subsystem:
// reminders persist in SQLite, fire from in-process timers, survive
// restart via recovery, and re-arm themselves when recurring.
package reminder

import (
	"time"

	"github.com/google/uuid"
)

// Recurrence is a reminder's repeat policy.
type Recurrence string

const (
	// RecurrenceNone fires once; the reminder is terminal afterwards.
	RecurrenceNone Recurrence = "none"
	// RecurrenceDaily re-arms the reminder 24 hours after each fire time.
	RecurrenceDaily Recurrence = "daily"
	// RecurrenceWeekly re-arms the reminder 7 days after each fire time.
	RecurrenceWeekly Recurrence = "weekly"
)

// Valid reports whether r is a recognized recurrence policy.
func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly:
		return true
	}
	return false
}

// Interval returns the advance applied after a fire, or zero for
// one-shot reminders.
func (r Recurrence) Interval() time.Duration {
	switch r {
	case RecurrenceDaily:
		return 24 * time.Hour
	case RecurrenceWeekly:
		return 7 * 24 * time.Hour
	}
	return 0
}

// Reminder is a persisted, timer-backed trigger. The store row is the
// source of truth; the service's timer map is a derived, rebuildable
// cache.
type Reminder struct {
	ID         string     `json:"id"`
	Message    string     `json:"message"`
	RemindAt   time.Time  `json:"remind_at"`
	Recurrence Recurrence `json:"recurrence"`
	Fired      bool       `json:"fired"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewID generates a new UUIDv7. IDs sort by creation time, which keeps
// list output stable without a separate sequence column.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails
		return uuid.New().String()
	}
	return id.String()
}

// TimeFormat is the wire format the agent is instructed to use for
// remind_at parameters.
const TimeFormat = "2006-01-02 15:04"
