package attendance

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/dikshaa-012/event-checkin-app/internal/models"
)

func TestRegistry_UpsertDeduplicates(t *testing.T) {
	r := NewRegistry()
	eventID := uuid.New()
	p := participant()

	assert.Equal(t, 1, r.Upsert(eventID, p))
	assert.Equal(t, 1, r.Upsert(eventID, p))
	assert.Equal(t, 1, r.Count(eventID))
}

func TestRegistry_RemoveUnknownIsNoop(t *testing.T) {
	r := NewRegistry()
	eventID := uuid.New()

	assert.Equal(t, 0, r.Remove(eventID, uuid.New()))

	p := participant()
	r.Upsert(eventID, p)
	assert.Equal(t, 1, r.Remove(eventID, uuid.New()))
	assert.Equal(t, 0, r.Remove(eventID, p.ID))
}

func TestRegistry_EventsAreIsolated(t *testing.T) {
	r := NewRegistry()
	eventA, eventB := uuid.New(), uuid.New()
	p := participant()

	r.Upsert(eventA, p)
	assert.Equal(t, 1, r.Count(eventA))
	assert.Equal(t, 0, r.Count(eventB))
	assert.Nil(t, r.List(eventB))
}

func TestRegistry_ListOrderedByConnection(t *testing.T) {
	r := NewRegistry()
	eventID := uuid.New()
	first, second, third := participant(), participant(), participant()

	r.Upsert(eventID, first)
	time.Sleep(time.Millisecond)
	r.Upsert(eventID, second)
	time.Sleep(time.Millisecond)
	r.Upsert(eventID, third)

	got := r.List(eventID)
	assert.Len(t, got, 3)
	assert.Equal(t, []models.Participant{first, second, third}, got)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	eventID := uuid.New()

	const n = 64
	participants := make([]models.Participant, n)
	for i := range participants {
		participants[i] = participant()
	}

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(p models.Participant) {
			defer wg.Done()
			r.Upsert(eventID, p)
			r.Count(eventID)
			r.List(eventID)
		}(participants[i])
	}
	wg.Wait()

	assert.Equal(t, n, r.Count(eventID))
	for _, p := range participants {
		r.Remove(eventID, p.ID)
	}
	assert.Equal(t, 0, r.Count(eventID))
}
