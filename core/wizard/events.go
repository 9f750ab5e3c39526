package wizard

import (
	"sync"
	"time"
)

type EventKind string

const (
	// EventStepEntered is published on every entry into an editing step: the UI scrolls to top.
	EventStepEntered      EventKind = "step_entered"
	EventValidationFailed EventKind = "validation_failed"
	EventUploadProgress   EventKind = "upload_progress"
	EventSubmitting       EventKind = "submitting"
	EventSubmitted        EventKind = "submitted"
	EventSubmissionFailed EventKind = "submission_failed"
	EventReset            EventKind = "reset"
)

type Event struct {
	Kind      EventKind         `json:"kind"`
	Form      string            `json:"form"`
	Step      int               `json:"step"`
	Field     string            `json:"field,omitempty"`
	Progress  int               `json:"progress,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
	Message   string            `json:"message,omitempty"`
	ReceiptID string            `json:"receipt_id,omitempty"`
	At        time.Time         `json:"at"`
}

// Hub fans wizard events out to subscribers.
// Publishing never blocks: events are dropped for subscribers whose buffer is full.
type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// Subscription is a scoped listener on a Hub, always release it with Close.
type Subscription struct {
	C    <-chan Event
	ch   chan Event
	hub  *Hub
	once sync.Once
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a listener with room for buffer pending events.
// Subscribing to a closed hub returns an already closed subscription.
func (h *Hub) Subscribe(buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	sub := &Subscription{C: ch, ch: ch, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		sub.once.Do(func() { close(ch) })
		return sub
	}
	h.subs[sub] = struct{}{}
	return sub
}

// Close releases the subscription and closes C. It is safe to call more than once.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.closeLocked()
}

func (s *Subscription) closeLocked() {
	s.once.Do(func() {
		delete(s.hub.subs, s)
		close(s.ch)
	})
}

func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		select {
		case sub.ch <- ev:
		default: // slow subscriber
		}
	}
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close releases every subscription; later subscriptions are closed immediately.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for sub := range h.subs {
		sub.closeLocked()
	}
}
