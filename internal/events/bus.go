// Package events carries refresh notifications between the parts of the
// dashboard that change data and the pages that display it.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind identifies what changed.
type Kind string

const (
	ExpenseUploaded  Kind = "expense:uploaded"
	AnomaliesChanged Kind = "anomalies:changed"
	SettingsUpdated  Kind = "settings:updated"
)

// Event is a single refresh notification.
type Event struct {
	ID     string    `json:"id"`
	Kind   Kind      `json:"kind"`
	Source string    `json:"source,omitempty"`
	At     time.Time `json:"at"`
}

// New stamps an event with a fresh id and the current time.
func New(kind Kind, source string) Event {
	return Event{
		ID:     uuid.NewString(),
		Kind:   kind,
		Source: source,
		At:     time.Now().UTC(),
	}
}

// Bus fans events out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the event, which is fine because any pending
// event already tells it to refresh.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a listener. The returned cancel func unregisters it and
// closes the channel; it is safe to call more than once.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Publish delivers e to every subscriber that has room for it.
func (b *Bus) Publish(e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close unregisters every subscriber and rejects new ones.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
