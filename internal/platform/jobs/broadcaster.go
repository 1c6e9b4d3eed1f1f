package jobs

import (
	"context"
	"sync"

	"github.com/create-my-art/api/internal/services"
)

// Broadcaster fans order-completed events out to in-process subscribers. It
// serves deployments without a Pub/Sub topic and lets the presentation layer
// react to completions either way.
type Broadcaster struct {
	mu   sync.RWMutex
	subs []func(services.OrderCompletedEvent)
	// next forwards to an optional downstream publisher (Pub/Sub).
	next interface {
		PublishOrderCompleted(ctx context.Context, event services.OrderCompletedEvent) error
	}
}

// NewBroadcaster builds a broadcaster. The downstream publisher is optional.
func NewBroadcaster(next *PubSubOrderPublisher) *Broadcaster {
	b := &Broadcaster{}
	if next != nil {
		b.next = next
	}
	return b
}

// Subscribe registers a handler invoked synchronously for every event.
func (b *Broadcaster) Subscribe(fn func(services.OrderCompletedEvent)) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	b.subs = append(b.subs, fn)
	b.mu.Unlock()
}

// PublishOrderCompleted notifies subscribers, then the downstream publisher.
func (b *Broadcaster) PublishOrderCompleted(ctx context.Context, event services.OrderCompletedEvent) error {
	b.mu.RLock()
	subs := make([]func(services.OrderCompletedEvent), len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, fn := range subs {
		fn(event)
	}
	if b.next != nil {
		return b.next.PublishOrderCompleted(ctx, event)
	}
	return nil
}
