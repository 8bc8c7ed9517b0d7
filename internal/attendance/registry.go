package attendance

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dikshaa-012/event-checkin-app/internal/models"
)

// Registry is the in-memory, per-event set of currently present participants.
// It is an ephemeral cache of "who is here now": lost on restart and
// repopulated only by new accepted transitions — a join that is an idempotent
// no-op (open interval still in the ledger) does not re-upsert, so a user
// must leave and rejoin to reappear here. The ledger remains the historical
// truth; after a restart a fresh registry starts empty and its counts are
// authoritative only going forward. Locking is scoped per event so unrelated
// events never contend.
type Registry struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]*room
}

type room struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]models.RoomPresenceEntry
}

// NewRegistry creates an empty presence registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[uuid.UUID]*room)}
}

func (r *Registry) room(eventID uuid.UUID, create bool) *room {
	r.mu.RLock()
	rm := r.rooms[eventID]
	r.mu.RUnlock()
	if rm != nil || !create {
		return rm
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if rm = r.rooms[eventID]; rm == nil {
		rm = &room{entries: make(map[uuid.UUID]models.RoomPresenceEntry)}
		r.rooms[eventID] = rm
	}
	return rm
}

// Upsert inserts or replaces the entry for (event, participant). Duplicate
// joins never produce duplicate entries.
func (r *Registry) Upsert(eventID uuid.UUID, p models.Participant) int {
	rm := r.room(eventID, true)
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.entries[p.ID] = models.RoomPresenceEntry{
		EventID:        eventID,
		Participant:    p,
		ConnectedSince: time.Now(),
	}
	return len(rm.entries)
}

// Remove deletes the entry for (event, user) if present. No-op otherwise.
// Returns the resulting count.
func (r *Registry) Remove(eventID, userID uuid.UUID) int {
	rm := r.room(eventID, false)
	if rm == nil {
		return 0
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	delete(rm.entries, userID)
	return len(rm.entries)
}

// Count returns the number of participants currently present at the event.
func (r *Registry) Count(eventID uuid.UUID) int {
	rm := r.room(eventID, false)
	if rm == nil {
		return 0
	}
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.entries)
}

// List returns a snapshot of the participants present at the event, ordered
// by connection time.
func (r *Registry) List(eventID uuid.UUID) []models.Participant {
	rm := r.room(eventID, false)
	if rm == nil {
		return nil
	}
	rm.mu.RLock()
	entries := make([]models.RoomPresenceEntry, 0, len(rm.entries))
	for _, e := range rm.entries {
		entries = append(entries, e)
	}
	rm.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ConnectedSince.Before(entries[j].ConnectedSince)
	})
	out := make([]models.Participant, len(entries))
	for i, e := range entries {
		out[i] = e.Participant
	}
	return out
}
