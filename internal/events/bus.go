// Package events fans device events out to SSE subscribers.
package events

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/micro-nova/gl846-go/internal/models"
)

const subBufferSize = 16

type subscriber struct {
	ch    chan models.Event
	kinds []string
}

// Bus is a non-blocking publish-subscribe event bus. Slow subscribers
// lose events instead of blocking the device operation that published.
type Bus struct {
	mu      sync.Mutex
	subs    map[string]subscriber
	last    models.Event
	hasLast bool
	dropped int
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[string]subscriber),
	}
}

// Subscribe registers id for events of the given kinds, or all kinds when
// none are given. Call Unsubscribe when done.
func (b *Bus) Subscribe(id string, kinds ...string) <-chan models.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan models.Event, subBufferSize)
	b.subs[id] = subscriber{ch: ch, kinds: kinds}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(s.ch)
	}
}

// Publish stamps ev with an id and time when missing and delivers it.
func (b *Bus) Publish(ev models.Event) models.Event {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.last, b.hasLast = ev, true
	for _, s := range b.subs {
		if len(s.kinds) > 0 && !slices.Contains(s.kinds, ev.Kind) {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			b.dropped++
		}
	}
	return ev
}

// Last returns the most recently published event.
func (b *Bus) Last() (models.Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last, b.hasLast
}

// Dropped returns how many deliveries were skipped because a subscriber
// was full.
func (b *Bus) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// SubscriberCount returns the current number of subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
