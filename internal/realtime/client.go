package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dikshaa-012/event-checkin-app/internal/attendance"
	"github.com/dikshaa-012/event-checkin-app/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// Client represents a single WebSocket connection in an event room.
type Client struct {
	ID          string
	EventID     uuid.UUID
	participant models.Participant
	joined      bool // set while the user has checked in over this socket

	hub        *Hub
	controller *attendance.Controller
	conn       *websocket.Conn
	send       chan WSMessage
	logger     *zap.Logger
}

// ServeWs handles the WebSocket upgrade and runs the client loop. The token
// is carried in the query string; room addressing uses the event_id param.
func ServeWs(
	hub *Hub,
	controller *attendance.Controller,
	participants attendance.ParticipantDirectory,
	jwtValidate func(token string) (userID string, role string, err error),
	logger *zap.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventIDStr := c.Query("event_id")
		token := c.Query("token")
		if eventIDStr == "" || token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "event_id and token required"})
			return
		}
		eventID, err := uuid.Parse(eventIDStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event_id"})
			return
		}
		userIDStr, _, err := jwtValidate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		userID, err := uuid.Parse(userIDStr)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		participant, err := participants.Participant(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:          uuid.New().String(),
			EventID:     eventID,
			participant: participant,
			hub:         hub,
			controller:  controller,
			conn:        conn,
			send:        make(chan WSMessage, 256),
			logger:      logger,
		}
		hub.Register(client)
		client.sendToSelf("live_count", map[string]int{"count": hub.LiveCount(eventID)})
		go client.writePump()
		client.readPump()
	}
}

func (c *Client) sendToSelf(event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	select {
	case c.send <- WSMessage{Event: event, Data: data}:
	default:
	}
}

func (c *Client) readPump() {
	defer func() {
		if c.joined {
			// socket dropped without an explicit leave_event
			_, _ = c.controller.Leave(context.Background(), c.EventID, c.participant)
		}
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		switch msg.Event {
		case "join_event":
			_, count, err := c.controller.Join(context.Background(), c.EventID, c.participant)
			if err != nil {
				c.sendToSelf("error", map[string]string{"message": joinErrorMessage(err)})
				continue
			}
			c.joined = true
			// idempotent rejoin emits no delta; confirm the count to this client
			c.sendToSelf("live_count", map[string]int{"count": count})
		case "leave_event":
			if _, err := c.controller.Leave(context.Background(), c.EventID, c.participant); err != nil {
				c.sendToSelf("error", map[string]string{"message": "leave failed"})
				continue
			}
			c.joined = false
		case "get_participants":
			c.sendToSelf("event_participants", c.hub.Participants(c.EventID))
		default:
			// ignore
		}
	}
}

func joinErrorMessage(err error) string {
	switch err {
	case attendance.ErrEventNotFound:
		return "event not found"
	case attendance.ErrEventClosed:
		return "event is closed"
	default:
		return "join failed"
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
