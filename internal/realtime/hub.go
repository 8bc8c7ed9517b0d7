package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dikshaa-012/event-checkin-app/internal/attendance"
	"github.com/dikshaa-012/event-checkin-app/internal/models"
)

const (
	// PingInterval and PongWait are used for heartbeat (seconds).
	PingInterval = 30
	PongWait     = 60
)

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Hub groups WebSocket connections by event room and relays presence deltas
// from the broker to each room. One broker subscription per room, held while
// the room has at least one connection.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[uuid.UUID]map[string]*Client
	cancels map[uuid.UUID]func()

	broker   *attendance.Broker
	registry *attendance.Registry
	logger   *zap.Logger
}

// NewHub creates a WebSocket hub backed by the presence broker.
func NewHub(broker *attendance.Broker, registry *attendance.Registry, logger *zap.Logger) *Hub {
	return &Hub{
		rooms:    make(map[uuid.UUID]map[string]*Client),
		cancels:  make(map[uuid.UUID]func()),
		broker:   broker,
		registry: registry,
		logger:   logger,
	}
}

// Register adds a client to an event room, subscribing the room to the broker
// if it is the first connection.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.EventID] == nil {
		h.rooms[c.EventID] = make(map[string]*Client)
		ch, cancel := h.broker.Subscribe(c.EventID)
		h.cancels[c.EventID] = cancel
		go h.forward(c.EventID, ch)
	}
	h.rooms[c.EventID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client connected", zap.String("client_id", c.ID), zap.String("event_id", c.EventID.String()))
}

// Unregister removes a client from its room, cancelling the broker
// subscription when the last connection leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.rooms[c.EventID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.rooms, c.EventID)
			if cancel, ok := h.cancels[c.EventID]; ok {
				cancel()
				delete(h.cancels, c.EventID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client disconnected", zap.String("client_id", c.ID), zap.String("event_id", c.EventID.String()))
}

// forward drains a room's broker subscription, translating deltas into the
// socket protocol. Exits when the subscription is cancelled.
func (h *Hub) forward(eventID uuid.UUID, ch <-chan models.PresenceDelta) {
	for delta := range ch {
		event := "user_joined"
		if delta.Kind == models.DeltaLeft {
			event = "user_left"
		}
		h.Broadcast(eventID, event, deltaPayload(delta))
		h.Broadcast(eventID, "live_count", map[string]int{"count": delta.ResultingCount})
	}
}

// Broadcast sends a message to every connection in an event room. A full
// client buffer drops the message for that client only.
func (h *Hub) Broadcast(eventID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[eventID] {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// LiveCount returns the registry count for an event room.
func (h *Hub) LiveCount(eventID uuid.UUID) int {
	return h.registry.Count(eventID)
}

// Participants returns the registry roster for an event room.
func (h *Hub) Participants(eventID uuid.UUID) []models.Participant {
	return h.registry.List(eventID)
}

func deltaPayload(delta models.PresenceDelta) map[string]interface{} {
	return map[string]interface{}{
		"user":  delta.Participant,
		"count": delta.ResultingCount,
	}
}
