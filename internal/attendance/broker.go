package attendance

import (
	"sync"

	"github.com/google/uuid"

	"github.com/dikshaa-012/event-checkin-app/internal/models"
)

// SubscriberBuffer is the per-subscriber delta channel capacity. A subscriber
// that falls this far behind starts losing deltas rather than stalling the
// publisher.
const SubscriberBuffer = 16

// Broker fans presence deltas out to the subscribers of each event's room.
// Delivery is at-most-once, fire-and-forget: no replay after resubscribe.
// Deltas for the same event reach a given subscriber in publish order.
type Broker struct {
	mu     sync.RWMutex
	topics map[uuid.UUID]*topic
}

type topic struct {
	mu   sync.Mutex
	next int
	subs map[int]chan models.PresenceDelta
}

// NewBroker creates an empty presence delta broker.
func NewBroker() *Broker {
	return &Broker{topics: make(map[uuid.UUID]*topic)}
}

// Subscribe returns a channel of deltas for the event and a cancel function.
// Cancelling stops delivery and closes the channel; in-flight delivery to
// other subscribers is unaffected. The last cancel for an event drops its
// topic, so the topic map does not grow with every event ever observed.
//
// Membership changes take b.mu before t.mu; Publish never holds t.mu while
// acquiring b.mu.
func (b *Broker) Subscribe(eventID uuid.UUID) (<-chan models.PresenceDelta, func()) {
	b.mu.Lock()
	t := b.topics[eventID]
	if t == nil {
		t = &topic{subs: make(map[int]chan models.PresenceDelta)}
		b.topics[eventID] = t
	}
	t.mu.Lock()
	id := t.next
	t.next++
	ch := make(chan models.PresenceDelta, SubscriberBuffer)
	t.subs[id] = ch
	t.mu.Unlock()
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			t.mu.Lock()
			delete(t.subs, id)
			close(ch)
			if len(t.subs) == 0 && b.topics[eventID] == t {
				delete(b.topics, eventID)
			}
			t.mu.Unlock()
			b.mu.Unlock()
		})
	}
	return ch, cancel
}

// Publish fans the delta out to all current subscribers of its event. A full
// subscriber buffer drops the delta for that subscriber only; Publish never
// blocks on a slow consumer. Publishes for the same event are serialized, so
// per-subscriber ordering matches publish order.
func (b *Broker) Publish(delta models.PresenceDelta) {
	b.mu.RLock()
	t := b.topics[delta.EventID]
	b.mu.RUnlock()
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ch := range t.subs {
		select {
		case ch <- delta:
		default:
			// subscriber too slow, drop
		}
	}
}

// Subscribers returns the current subscriber count for an event.
func (b *Broker) Subscribers(eventID uuid.UUID) int {
	b.mu.RLock()
	t := b.topics[eventID]
	b.mu.RUnlock()
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}
