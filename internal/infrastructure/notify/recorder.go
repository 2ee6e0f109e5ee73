package notify

import (
	"strings"
	"sync"

	"ytd.app/adminctl/internal/core/domain"
	"ytd.app/adminctl/internal/core/ports"
)

// Recorder keeps every notification in memory
type Recorder struct {
	mu            sync.Mutex
	notifications []domain.Notification
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Notify records the notification
func (r *Recorder) Notify(message string, severity domain.Severity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, domain.Notification{Message: message, Severity: severity})
}

// All returns a copy of the recorded notifications
func (r *Recorder) All() []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Notification, len(r.notifications))
	copy(out, r.notifications)
	return out
}

// Count returns how many notifications with the given severity were recorded
func (r *Recorder) Count(severity domain.Severity) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range r.notifications {
		if rec.Severity == severity {
			n++
		}
	}
	return n
}

// Contains reports whether any notification message contains substr
func (r *Recorder) Contains(substr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.notifications {
		if strings.Contains(rec.Message, substr) {
			return true
		}
	}
	return false
}

var _ ports.Notifier = (*Recorder)(nil)
