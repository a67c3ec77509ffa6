// Package memory provides conversation memory storage: sessions,
// their append-only message logs, and one rolling summary per session.
package memory

import "time"

// Session is a single conversation thread.
type Session struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is a single entry in a session's history. Immutable once written.
type Message struct {
	Role      string    `json:"role"` // user | assistant
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
