package store

import (
	"time"

	"github.com/google/uuid"
)

// Level is the severity of a notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// DefaultNotificationTTL is how long a notification stays visible.
const DefaultNotificationTTL = 3 * time.Second

const maxNotifications = 50

// Notification is a transient user-facing message.
type Notification struct {
	ID        string        `json:"id"`
	Level     Level         `json:"level"`
	Message   string        `json:"message"`
	CreatedAt time.Time     `json:"createdAt"`
	Duration  time.Duration `json:"duration"`
}

// Expired reports whether n is no longer visible at now.
func (n Notification) Expired(now time.Time) bool {
	return !now.Before(n.CreatedAt.Add(n.Duration))
}

// notifier is a bounded queue of notifications. Not safe for concurrent use;
// the coordinator guards it.
type notifier struct {
	ttl     time.Duration
	entries []Notification
}

func (q *notifier) push(level Level, msg string, now time.Time) Notification {
	n := Notification{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   msg,
		CreatedAt: now,
		Duration:  q.ttl,
	}
	q.prune(now)
	q.entries = append(q.entries, n)
	if len(q.entries) > maxNotifications {
		q.entries = q.entries[len(q.entries)-maxNotifications:]
	}
	return n
}

func (q *notifier) prune(now time.Time) {
	live := q.entries[:0]
	for _, n := range q.entries {
		if !n.Expired(now) {
			live = append(live, n)
		}
	}
	q.entries = live
}

func (q *notifier) dismiss(id string) bool {
	for i, n := range q.entries {
		if n.ID == id {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (q *notifier) live(now time.Time) []Notification {
	out := make([]Notification, 0, len(q.entries))
	for _, n := range q.entries {
		if !n.Expired(now) {
			out = append(out, n)
		}
	}
	return out
}
