package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quillhq/quill/internal/events"
	"github.com/quillhq/quill/internal/notify"
)

// Service owns the in-process timers for pending reminders. The store
// row is authoritative; timers are re-derived from it on every restart
// via Recover, so a crash between arming and firing loses nothing.
type Service struct {
	store    *Store
	notifier notify.Notifier
	bus      *events.Bus
	logger   *slog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer

	// locks serializes fire, snooze and cancel per reminder so a fire
	// racing a cancel cannot resurrect a deleted row.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	// now is swappable for tests.
	now func() time.Time
}

// NewService creates a reminder service. The notifier may be nil, in
// which case fires are only logged and published on the bus.
func NewService(store *Store, notifier notify.Notifier, bus *events.Bus, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		bus:      bus,
		logger:   logger,
		timers:   make(map[string]*time.Timer),
		locks:    make(map[string]*sync.Mutex),
		now:      time.Now,
	}
}

// Create validates and persists a reminder, then arms its timer. The
// fire time must be strictly in the future.
func (s *Service) Create(message string, remindAt time.Time, recurrence Recurrence) (*Reminder, error) {
	if message == "" {
		return nil, fmt.Errorf("message must not be empty")
	}
	if recurrence == "" {
		recurrence = RecurrenceNone
	}
	if !recurrence.Valid() {
		return nil, fmt.Errorf("invalid recurrence %q: must be none, daily or weekly", recurrence)
	}
	if !remindAt.After(s.now()) {
		return nil, fmt.Errorf("time must be in the future")
	}

	r := &Reminder{
		ID:         NewID(),
		Message:    message,
		RemindAt:   remindAt.UTC(),
		Recurrence: recurrence,
	}
	if err := s.store.Create(r); err != nil {
		return nil, fmt.Errorf("persist reminder: %w", err)
	}

	s.arm(r.ID, r.RemindAt)
	s.logger.Info("reminder created",
		"id", r.ID, "remind_at", r.RemindAt.Format(time.RFC3339), "recurrence", string(r.Recurrence))
	return r, nil
}

// List returns pending reminders ordered by due time.
func (s *Service) List() ([]*Reminder, error) {
	return s.store.ListPending()
}

// Snooze advances a pending reminder's fire time by the given duration
// and re-arms its timer. The new time is anchored to the stored due
// time, not the wall clock: a reminder due at T snoozed by 30 minutes
// lands on T+30m. Arming is idempotent, so a snooze right after a
// restart simply replaces the recovered timer.
func (s *Service) Snooze(id string, d time.Duration) (*Reminder, error) {
	if d <= 0 {
		d = 15 * time.Minute
	}

	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	r, err := s.store.Get(id)
	if err != nil {
		return nil, fmt.Errorf("snooze reminder: %w", err)
	}
	if r == nil || r.Fired {
		return nil, fmt.Errorf("reminder not found: %s", id)
	}

	newAt := r.RemindAt.Add(d)
	n, err := s.store.UpdateRemindAt(id, newAt)
	if err != nil {
		return nil, fmt.Errorf("snooze reminder: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("reminder not found: %s", id)
	}

	s.arm(id, newAt)
	s.logger.Info("reminder snoozed", "id", id, "until", newAt.Format(time.RFC3339))
	return s.store.Get(id)
}

// Cancel stops a reminder's timer and deletes its row. Timer first:
// once the row is gone a late fire would otherwise find nothing to
// guard against.
func (s *Service) Cancel(id string) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	s.disarm(id)

	n, err := s.store.Delete(id)
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("reminder not found: %s", id)
	}

	s.logger.Info("reminder cancelled", "id", id)
	return nil
}

// Recover re-arms timers for all pending reminders whose fire time is
// still in the future. Overdue reminders are not fired retroactively;
// they stay pending and visible in list output so the user can see what
// was missed.
func (s *Service) Recover() (int, error) {
	pending, err := s.store.ListPending()
	if err != nil {
		return 0, fmt.Errorf("list pending reminders: %w", err)
	}

	armed := 0
	now := s.now()
	for _, r := range pending {
		if !r.RemindAt.After(now) {
			s.logger.Warn("reminder overdue after restart, not firing",
				"id", r.ID, "remind_at", r.RemindAt.Format(time.RFC3339))
			continue
		}
		s.arm(r.ID, r.RemindAt)
		armed++
	}

	s.logger.Info("reminder recovery complete", "pending", len(pending), "armed", armed)
	return armed, nil
}

// ClearFired purges terminal one-shot reminders from the store. They
// have no timers, so no disarming is needed.
func (s *Service) ClearFired() (int64, error) {
	return s.store.DeleteFired()
}

// Stop cancels every in-process timer. Rows are untouched; the next
// Recover picks them back up.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// arm schedules (or reschedules) the timer for a reminder. Replacing an
// existing timer stops the old one first so each reminder has at most
// one pending fire.
func (s *Service) arm(id string, at time.Time) {
	d := time.Until(at)
	if d < 0 {
		d = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.timers[id]; ok {
		old.Stop()
	}
	s.timers[id] = time.AfterFunc(d, func() { s.fire(id) })
}

// disarm stops and forgets a reminder's timer if one exists.
func (s *Service) disarm(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
}

// fire delivers one reminder and advances or finalizes it. The row is
// re-read under the per-reminder lock: if it was cancelled or snoozed
// between the timer firing and the lock being acquired, the stale fire
// is dropped.
func (s *Service) fire(id string) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	r, err := s.store.Get(id)
	if err != nil {
		s.logger.Error("reminder fire: load failed", "id", id, "error", err)
		return
	}
	if r == nil || r.Fired {
		// Cancelled or already terminal; nothing to do.
		s.disarm(id)
		return
	}
	if r.RemindAt.After(s.now()) {
		// Snoozed after this timer was queued. The snooze already
		// re-armed the real fire.
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	firedAt := s.now()
	delivered := false
	if s.notifier != nil {
		delivered = s.notifier.Deliver(ctx, fmt.Sprintf("Reminder: %s", r.Message),
			notify.ReminderBlocks(r.ID, r.Message, firedAt))
	}
	s.logger.Info("reminder fired", "id", r.ID, "message", r.Message, "delivered", delivered)
	s.bus.Publish(events.Event{
		Timestamp: firedAt,
		Source:    events.SourceReminder,
		Kind:      events.KindReminderFired,
		Data: map[string]any{
			"reminder_id": r.ID,
			"recurrence":  string(r.Recurrence),
			"delivered":   delivered,
		},
	})

	if interval := r.Recurrence.Interval(); interval > 0 {
		// Advance from the scheduled fire time, not from now, so a
		// daily 9:00 reminder stays at 9:00 even when delivery lagged.
		next := r.RemindAt.Add(interval)
		for !next.After(s.now()) {
			next = next.Add(interval)
		}
		n, err := s.store.UpdateRemindAt(id, next)
		if err != nil {
			s.logger.Error("reminder re-arm: update failed", "id", id, "error", err)
			return
		}
		if n == 0 {
			// Deleted while firing; do not resurrect.
			s.disarm(id)
			return
		}
		s.arm(id, next)
		s.bus.Publish(events.Event{
			Timestamp: s.now(),
			Source:    events.SourceReminder,
			Kind:      events.KindReminderRearmed,
			Data: map[string]any{
				"reminder_id": r.ID,
				"next_at":     next.UTC().Format(time.RFC3339),
			},
		})
		s.logger.Info("recurring reminder re-armed", "id", id, "next", next.Format(time.RFC3339))
		return
	}

	if _, err := s.store.MarkFired(id); err != nil {
		s.logger.Error("reminder finalize failed", "id", id, "error", err)
	}
	s.disarm(id)
}

// lockFor returns the serialization lock for one reminder id.
func (s *Service) lockFor(id string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	if l, ok := s.locks[id]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.locks[id] = l
	return l
}

// ParseRemindAt parses a reminder time in the agent's wire format,
// falling back to RFC 3339 for API callers. Times without a zone are
// interpreted in the server's local zone, matching how people phrase
// reminders.
func ParseRemindAt(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(TimeFormat, s, time.Local); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q: use YYYY-MM-DD HH:MM", s)
}
