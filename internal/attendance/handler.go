package attendance

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dikshaa-012/event-checkin-app/internal/middleware"
	"github.com/dikshaa-012/event-checkin-app/internal/models"
	"github.com/dikshaa-012/event-checkin-app/pkg/response"
)

// ParticipantDirectory resolves the minimal presence profile for a user.
// Implemented by the auth repository.
type ParticipantDirectory interface {
	Participant(ctx context.Context, id uuid.UUID) (models.Participant, error)
}

// Handler exposes the attendance HTTP endpoints.
type Handler struct {
	controller   *Controller
	engine       *Engine
	registry     *Registry
	ledger       Ledger
	events       EventDirectory
	participants ParticipantDirectory
	snapshots    *SnapshotRepository
}

// NewHandler creates an attendance handler.
func NewHandler(
	controller *Controller,
	engine *Engine,
	registry *Registry,
	ledger Ledger,
	events EventDirectory,
	participants ParticipantDirectory,
	snapshots *SnapshotRepository,
) *Handler {
	return &Handler{
		controller:   controller,
		engine:       engine,
		registry:     registry,
		ledger:       ledger,
		events:       events,
		participants: participants,
		snapshots:    snapshots,
	}
}

// JoinResponse is the body returned by POST /events/:id/join.
type JoinResponse struct {
	IntervalID uuid.UUID `json:"interval_id"`
	Count      int       `json:"count"`
}

// IntervalRow is one attendance log row with computed duration.
type IntervalRow struct {
	models.AttendanceInterval
	DurationSeconds *int64 `json:"duration_seconds,omitempty"`
}

func eventParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return uuid.Nil, false
	}
	return id, true
}

func callerParticipant(c *gin.Context, dir ParticipantDirectory) (models.Participant, bool) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	p, err := dir.Participant(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to load user")
		return models.Participant{}, false
	}
	return p, true
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrEventNotFound):
		response.NotFound(c, "event not found")
	case errors.Is(err, ErrEventClosed):
		response.Conflict(c, "event is closed")
	case errors.Is(err, ErrConcurrencyConflict):
		response.Internal(c, "attendance state conflict")
	default:
		response.ServiceUnavailable(c, "attendance storage unavailable")
	}
}

// Join handles POST /events/:id/join.
func (h *Handler) Join(c *gin.Context) {
	eventID, ok := eventParam(c)
	if !ok {
		return
	}
	p, ok := callerParticipant(c, h.participants)
	if !ok {
		return
	}
	intervalID, count, err := h.controller.Join(c.Request.Context(), eventID, p)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, JoinResponse{IntervalID: intervalID, Count: count})
}

// Leave handles POST /events/:id/leave.
func (h *Handler) Leave(c *gin.Context) {
	eventID, ok := eventParam(c)
	if !ok {
		return
	}
	p, ok := callerParticipant(c, h.participants)
	if !ok {
		return
	}
	count, err := h.controller.Leave(c.Request.Context(), eventID, p)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, gin.H{"count": count})
}

// Attending handles GET /events/:id/attending. Answers from the ledger, so
// the result is correct even right after a restart when the registry is
// still empty.
func (h *Handler) Attending(c *gin.Context) {
	eventID, ok := eventParam(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	attending, err := h.controller.Attending(c.Request.Context(), eventID, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, gin.H{"attending": attending})
}

// LiveCount handles GET /events/:id/live_count from the in-memory registry.
func (h *Handler) LiveCount(c *gin.Context) {
	eventID, ok := eventParam(c)
	if !ok {
		return
	}
	response.OK(c, gin.H{"count": h.registry.Count(eventID)})
}

// Presence handles GET /events/:id/presence: the live roster for the room.
func (h *Handler) Presence(c *gin.Context) {
	eventID, ok := eventParam(c)
	if !ok {
		return
	}
	participants := h.registry.List(eventID)
	response.OK(c, gin.H{"participants": participants, "count": len(participants)})
}

// Stats handles GET /events/:id/stats (admin): metrics recomputed fresh from
// the ledger.
func (h *Handler) Stats(c *gin.Context) {
	eventID, ok := eventParam(c)
	if !ok {
		return
	}
	status, err := h.events.Status(c.Request.Context(), eventID)
	if err != nil {
		response.ServiceUnavailable(c, "event directory unavailable")
		return
	}
	if !status.Exists {
		response.NotFound(c, "event not found")
		return
	}
	stats, err := h.engine.Compute(c.Request.Context(), eventID)
	if err != nil {
		response.ServiceUnavailable(c, "failed to compute stats")
		return
	}
	response.OK(c, stats)
}

// ListIntervals handles GET /events/:id/attendance (admin): the raw interval
// log with computed durations.
func (h *Handler) ListIntervals(c *gin.Context) {
	eventID, ok := eventParam(c)
	if !ok {
		return
	}
	intervals, err := h.ledger.ListByEvent(c.Request.Context(), eventID)
	if err != nil {
		response.ServiceUnavailable(c, "failed to list attendance")
		return
	}
	rows := make([]IntervalRow, len(intervals))
	for i, in := range intervals {
		rows[i] = IntervalRow{AttendanceInterval: in, DurationSeconds: in.DurationSeconds()}
	}
	response.OK(c, gin.H{"intervals": rows})
}

// ListSnapshots handles GET /events/:id/snapshots (admin): snapshots stored
// when the event was closed.
func (h *Handler) ListSnapshots(c *gin.Context) {
	eventID, ok := eventParam(c)
	if !ok {
		return
	}
	list, err := h.snapshots.ListByEvent(c.Request.Context(), eventID)
	if err != nil {
		response.ServiceUnavailable(c, "failed to list snapshots")
		return
	}
	response.OK(c, gin.H{"snapshots": list})
}
