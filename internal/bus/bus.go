// Package bus provides a small in-process publish/subscribe fan-out
// used to hand measurements and anomalies to external observers (UI,
// monitor API) without coupling them to the pipeline.
package bus

import (
	"sync"
	"sync/atomic"

	"github.com/banshee-data/catenary.report/internal/monitoring"
)

// Standard topics published by the inspection runner.
const (
	TopicMeasurement = "measurement"
	TopicAnomaly     = "anomaly"
)

// Handler receives published payloads. Handlers run synchronously on
// the publisher's goroutine, in subscription order.
type Handler func(payload any)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is a thread-safe topic registry. Construct with New and pass the
// instance to whichever components need it; there is no package-level
// singleton.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	topics map[string][]subscription
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{topics: make(map[string][]subscription)}
}

// Subscribe registers h on topic and returns a token for Unsubscribe.
func (b *Bus) Subscribe(topic string, h Handler) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := atomic.AddUint64(&b.nextID, 1)
	b.topics[topic] = append(b.topics[topic], subscription{id: id, handler: h})
	return id
}

// Unsubscribe removes the subscription identified by token from topic.
// Unknown tokens are a no-op.
func (b *Bus) Unsubscribe(topic string, token uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.topics[topic]
	for i, s := range subs {
		if s.id == token {
			b.topics[topic] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Publish delivers payload to every subscriber of topic, in
// subscription order. The handler list is snapshotted under the lock
// and handlers are invoked outside it, so a slow or re-entrant handler
// never blocks registry mutation. A panicking handler is logged and
// does not prevent delivery to the rest.
func (b *Bus) Publish(topic string, payload any) {
	b.mu.Lock()
	subs := append([]subscription(nil), b.topics[topic]...)
	b.mu.Unlock()

	for _, s := range subs {
		invoke(topic, s.handler, payload)
	}
}

func invoke(topic string, h Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			monitoring.Logf("bus: handler panic on topic %q: %v", topic, r)
		}
	}()
	h(payload)
}

// Topics returns the topics that currently have at least one
// subscriber.
func (b *Bus) Topics() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for t, subs := range b.topics {
		if len(subs) > 0 {
			out = append(out, t)
		}
	}
	return out
}
