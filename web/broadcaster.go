package web

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"go.viam.com/gridnav/spatialmath"
)

// Broadcaster fans plan emissions out to subscribers. Each subscriber only ever holds the newest
// plan, so a slow subscriber never blocks the publisher.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[uuid.UUID]chan []spatialmath.Configuration
	latest      []spatialmath.Configuration
}

// NewBroadcaster returns a broadcaster with no subscribers.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subscribers: map[uuid.UUID]chan []spatialmath.Configuration{}}
}

// PublishPlan records plan as the latest emission and offers it to every subscriber, replacing
// any emission they have not yet received.
func (b *Broadcaster) PublishPlan(_ context.Context, plan []spatialmath.Configuration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.latest = plan
	for _, ch := range b.subscribers {
		offer(ch, plan)
	}
	return nil
}

// Subscribe registers a subscriber. If a plan has already been published it is delivered first.
func (b *Broadcaster) Subscribe() (uuid.UUID, <-chan []spatialmath.Configuration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New()
	ch := make(chan []spatialmath.Configuration, 1)
	if b.latest != nil {
		ch <- b.latest
	}
	b.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(ch)
	}
}

// Latest returns the last published plan, or nil if nothing has been published.
func (b *Broadcaster) Latest() []spatialmath.Configuration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latest
}

// NumSubscribers returns the number of active subscribers.
func (b *Broadcaster) NumSubscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// offer replaces whatever is buffered in ch with plan. Callers hold the broadcaster lock, so they
// are the only sender.
func offer(ch chan []spatialmath.Configuration, plan []spatialmath.Configuration) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- plan:
	default:
	}
}
