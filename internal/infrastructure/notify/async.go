package notify

import (
	"sync"
	"sync/atomic"

	"ytd.app/adminctl/internal/core/domain"
	"ytd.app/adminctl/internal/core/ports"
)

// DefaultQueueSize is the buffer used by NewAsync when size is not positive
const DefaultQueueSize = 64

// Async hands notifications to a background goroutine so Notify never blocks.
// When the queue is full the notification is dropped.
type Async struct {
	next    ports.Notifier
	queue   chan domain.Notification
	dropped atomic.Uint64

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
	done      chan struct{}
}

// NewAsync wraps next with a queue of the given size
func NewAsync(next ports.Notifier, size int) *Async {
	if size <= 0 {
		size = DefaultQueueSize
	}
	a := &Async{
		next:  next,
		queue: make(chan domain.Notification, size),
		done:  make(chan struct{}),
	}
	go a.loop()
	return a
}

// Notify enqueues the notification without blocking
func (a *Async) Notify(message string, severity domain.Severity) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.dropped.Add(1)
		return
	}

	select {
	case a.queue <- domain.Notification{Message: message, Severity: severity}:
	default:
		a.dropped.Add(1)
	}
}

// Dropped returns how many notifications were discarded
func (a *Async) Dropped() uint64 {
	return a.dropped.Load()
}

// Close stops accepting notifications and waits until the queue is drained
func (a *Async) Close() {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		close(a.queue)
		a.mu.Unlock()
	})
	<-a.done
}

func (a *Async) loop() {
	defer close(a.done)
	for n := range a.queue {
		a.next.Notify(n.Message, n.Severity)
	}
}

var _ ports.Notifier = (*Async)(nil)
