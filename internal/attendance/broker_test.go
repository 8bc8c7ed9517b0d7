package attendance

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dikshaa-012/event-checkin-app/internal/models"
)

func delta(eventID uuid.UUID, kind models.DeltaKind, count int) models.PresenceDelta {
	return models.PresenceDelta{
		EventID:        eventID,
		Kind:           kind,
		Participant:    participant(),
		ResultingCount: count,
	}
}

func TestBroker_PublishOrder(t *testing.T) {
	b := NewBroker()
	eventID := uuid.New()
	ch, cancel := b.Subscribe(eventID)
	defer cancel()

	for i := 1; i <= 5; i++ {
		b.Publish(delta(eventID, models.DeltaJoined, i))
	}
	for i := 1; i <= 5; i++ {
		d := <-ch
		assert.Equal(t, i, d.ResultingCount)
	}
}

func TestBroker_TopicsAreIsolated(t *testing.T) {
	b := NewBroker()
	eventA, eventB := uuid.New(), uuid.New()
	chA, cancelA := b.Subscribe(eventA)
	defer cancelA()
	chB, cancelB := b.Subscribe(eventB)
	defer cancelB()

	b.Publish(delta(eventA, models.DeltaJoined, 1))

	d := <-chA
	assert.Equal(t, eventA, d.EventID)
	select {
	case leaked := <-chB:
		t.Fatalf("delta leaked across topics: %+v", leaked)
	default:
	}
}

func TestBroker_CancelClosesChannel(t *testing.T) {
	b := NewBroker()
	eventID := uuid.New()
	ch, cancel := b.Subscribe(eventID)

	require.Equal(t, 1, b.Subscribers(eventID))
	cancel()
	cancel() // idempotent
	assert.Equal(t, 0, b.Subscribers(eventID))

	_, open := <-ch
	assert.False(t, open)

	// publishing after cancel must not panic or deliver
	b.Publish(delta(eventID, models.DeltaJoined, 1))
}

func TestBroker_SlowSubscriberDoesNotBlockPublish(t *testing.T) {
	b := NewBroker()
	eventID := uuid.New()
	ch, cancel := b.Subscribe(eventID)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// nobody reads ch; overflow past the buffer must drop, not block
		for i := 0; i < SubscriberBuffer*3; i++ {
			b.Publish(delta(eventID, models.DeltaJoined, i))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on slow subscriber")
	}
	assert.Len(t, ch, SubscriberBuffer)
}

func TestBroker_LastCancelDropsTopic(t *testing.T) {
	b := NewBroker()
	eventID := uuid.New()
	_, cancelA := b.Subscribe(eventID)
	_, cancelB := b.Subscribe(eventID)

	hasTopic := func() bool {
		b.mu.RLock()
		defer b.mu.RUnlock()
		_, ok := b.topics[eventID]
		return ok
	}

	cancelA()
	assert.True(t, hasTopic())
	cancelB()
	assert.False(t, hasTopic())

	// resubscribing after the drop works from a fresh topic
	ch, cancel := b.Subscribe(eventID)
	defer cancel()
	b.Publish(delta(eventID, models.DeltaJoined, 1))
	d := <-ch
	assert.Equal(t, 1, d.ResultingCount)
}

func TestBroker_PublishWithoutSubscribers(t *testing.T) {
	b := NewBroker()
	b.Publish(delta(uuid.New(), models.DeltaLeft, 0))
	assert.Equal(t, 0, b.Subscribers(uuid.New()))
}
