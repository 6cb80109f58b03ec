package events

import (
	"sync"

	"wallet-monitor/internal/models"
)

// Bus is the in-process publish-subscribe registry for live transfer
// updates. Each service owns its bus; its lifecycle follows the service's
// start/stop, not process lifetime.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan models.Transfer
	nextID int
	closed bool
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan models.Transfer)}
}

// Subscribe registers a listener and returns its channel plus a cancel
// function. The channel is buffered; slow consumers drop events rather than
// blocking the publisher.
func (b *Bus) Subscribe(buffer int) (<-chan models.Transfer, func()) {
	if buffer <= 0 {
		buffer = 16
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan models.Transfer, buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish fans one transfer out to every subscriber.
func (b *Bus) Publish(t models.Transfer) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- t:
		default:
		}
	}
}

// SubscriberCount reports the number of active subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close drops all subscriptions. Further publishes are no-ops.
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
