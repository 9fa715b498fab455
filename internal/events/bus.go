// Package events fans run progress out to SSE clients and keeps a short
// backlog so a reconnecting client can pick up where it left off.
package events

import (
	"sync"
	"time"

	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/models"
)

const (
	subBufferSize = 64

	// DefaultBacklog is how many recent events a bus retains for replay.
	DefaultBacklog = 256
)

// Bus is a non-blocking publish-subscribe bus for run events.
// Every published event gets the next sequence number. A subscriber whose
// buffer is full misses the event; it is counted in Dropped.
type Bus struct {
	mu      sync.Mutex
	subs    map[string]chan models.Event
	seq     uint64
	backlog []models.Event
	size    int
	dropped uint64
}

// NewBus creates a bus retaining DefaultBacklog events.
func NewBus() *Bus {
	return NewBusWithBacklog(DefaultBacklog)
}

// NewBusWithBacklog creates a bus retaining the last n events. n <= 0
// disables replay.
func NewBusWithBacklog(n int) *Bus {
	if n < 0 {
		n = 0
	}
	return &Bus{
		subs: make(map[string]chan models.Event),
		size: n,
	}
}

// Subscribe registers a live subscription under id. Call Unsubscribe when done.
func (b *Bus) Subscribe(id string) <-chan models.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan models.Event, subBufferSize)
	b.subs[id] = ch
	return ch
}

// Resume registers a subscription under id and returns the retained events
// with a sequence number greater than after. Registration and the backlog
// snapshot happen under one lock, so no event falls between them.
func (b *Bus) Resume(id string, after uint64) (<-chan models.Event, []models.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var missed []models.Event
	for _, ev := range b.backlog {
		if ev.Seq > after {
			missed = append(missed, ev)
		}
	}
	ch := make(chan models.Event, subBufferSize)
	b.subs[id] = ch
	return ch, missed
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish stamps ev with the next sequence number (and the current time if
// unset), retains it and delivers it to every subscriber that has room.
func (b *Bus) Publish(ev models.Event) models.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	ev.Seq = b.seq
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	if b.size > 0 {
		if len(b.backlog) == b.size {
			b.backlog = append(b.backlog[:0], b.backlog[1:]...)
		}
		b.backlog = append(b.backlog, ev)
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped++
		}
	}
	return ev
}

// LastSeq returns the sequence number of the most recent event, 0 if none.
func (b *Bus) LastSeq() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}

// Dropped returns how many deliveries were skipped because a subscriber was full.
func (b *Bus) Dropped() uint64 {
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
