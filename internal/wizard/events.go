// internal/wizard/events.go
package wizard

import (
	"sort"
	"sync"
	"time"
)

// EventType identifies a controller transition.
type EventType string

const (
	EventStepAdvanced     EventType = "step_advanced"
	EventStepReturned     EventType = "step_returned"
	EventValidationFailed EventType = "validation_failed"
	EventSubmitStarted    EventType = "submit_started"
	EventSubmitted        EventType = "submitted"
	EventSubmitFailed     EventType = "submit_failed"
	EventDraftDiscarded   EventType = "draft_discarded"
)

// Event is published by a Controller after each transition. Subscribers run
// synchronously on the publishing goroutine and must not call back into the
// controller.
type Event struct {
	Type     EventType
	DraftID  string
	Session  SessionContext
	From     Step
	To       Step
	Errors   FieldErrors
	Receipt  *Receipt
	Failure  *SubmissionError
	Duration time.Duration
	// Values carries the submitted fields on EventSubmitted.
	Values map[string]string
	At     time.Time
}

// Subscriber receives events.
type Subscriber func(Event)

// Bus is an explicit publish/subscribe hub handed to controllers, replacing
// ambient cross-component notifications.
type Bus struct {
	mu   sync.RWMutex
	next int
	subs map[int]Subscriber
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]Subscriber)}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn Subscriber) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish delivers e to every subscriber in registration order.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	b.mu.RLock()
	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	b.mu.RUnlock()

	sort.Ints(ids)
	for _, id := range ids {
		b.mu.RLock()
		fn, ok := b.subs[id]
		b.mu.RUnlock()
		if ok {
			fn(e)
		}
	}
}
