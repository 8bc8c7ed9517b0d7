package events

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dikshaa-012/event-checkin-app/internal/middleware"
	"github.com/dikshaa-012/event-checkin-app/internal/models"
	"github.com/dikshaa-012/event-checkin-app/pkg/queue"
	"github.com/dikshaa-012/event-checkin-app/pkg/response"
)

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// CreateRequest is the body for POST /events.
type CreateRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	Location    string  `json:"location"`
	Category    string  `json:"category"`
	StartTime   string  `json:"start_time" binding:"required"`
	EndTime     *string `json:"end_time"`
}

// UpdateRequest is the body for PATCH /events/:id. Absent fields keep their
// stored value; only fields present in the body are written.
type UpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
	Category    *string `json:"category"`
	StartTime   *string `json:"start_time"`
	EndTime     *string `json:"end_time"`
}

// patch converts the request into an UpdatePatch, parsing timestamps.
func (req UpdateRequest) patch() (UpdatePatch, error) {
	p := UpdatePatch{
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		Category:    req.Category,
	}
	if req.StartTime != nil {
		t, err := parseTime(*req.StartTime)
		if err != nil {
			return UpdatePatch{}, fmt.Errorf("invalid start_time")
		}
		p.StartTime = &t
	}
	if req.EndTime != nil {
		t, err := parseTime(*req.EndTime)
		if err != nil {
			return UpdatePatch{}, fmt.Errorf("invalid end_time")
		}
		p.EndTime = &t
	}
	return p, nil
}

// Handler handles event HTTP endpoints.
type Handler struct {
	repo   *Repository
	jobs   *queue.Queue
	logger *zap.Logger
}

// NewHandler creates an event handler. jobs may be nil when no queue is
// configured; closing an event then skips the snapshot job.
func NewHandler(repo *Repository, jobs *queue.Queue, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, jobs: jobs, logger: logger}
}

// Create handles POST /events (admin only).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	startTime, err := parseTime(req.StartTime)
	if err != nil {
		response.BadRequest(c, "invalid start_time")
		return
	}
	var endTime *time.Time
	if req.EndTime != nil {
		t, err := parseTime(*req.EndTime)
		if err != nil {
			response.BadRequest(c, "invalid end_time")
			return
		}
		endTime = &t
	}

	e := &models.Event{
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		Category:    req.Category,
		StartTime:   startTime,
		EndTime:     endTime,
		CreatedBy:   c.MustGet(middleware.ContextUserID).(uuid.UUID),
	}
	if err := h.repo.Create(c.Request.Context(), e); err != nil {
		response.Internal(c, "failed to create event")
		return
	}
	response.Created(c, e)
}

// List handles GET /events with optional category, search and date filters.
func (h *Handler) List(c *gin.Context) {
	f := Filter{
		Category: c.Query("category"),
		Search:   c.Query("search"),
	}
	if d := c.Query("date"); d != "" {
		t, err := parseTime(d)
		if err != nil {
			response.BadRequest(c, "invalid date")
			return
		}
		f.From = &t
	}
	list, err := h.repo.List(c.Request.Context(), f)
	if err != nil {
		response.Internal(c, "failed to list events")
		return
	}
	response.OK(c, gin.H{"events": list})
}

// GetByID handles GET /events/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	e, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "event not found")
		return
	}
	response.OK(c, e)
}

// Update handles PATCH /events/:id (admin only).
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	p, err := req.patch()
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.repo.Update(c.Request.Context(), id, p); err != nil {
		response.Internal(c, "failed to update event")
		return
	}
	e, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "event not found")
		return
	}
	response.OK(c, e)
}

// Delete handles DELETE /events/:id (admin only).
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		response.Internal(c, "failed to delete event")
		return
	}
	response.NoContent(c)
}

// CloseEvent handles POST /events/:id/close (admin only). Closing is
// terminal and enqueues a final stats snapshot job.
func (h *Handler) CloseEvent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	if _, err := h.repo.GetByID(c.Request.Context(), id); err != nil {
		response.NotFound(c, "event not found")
		return
	}
	if err := h.repo.Close(c.Request.Context(), id); err != nil {
		response.Internal(c, "failed to close event")
		return
	}
	if h.jobs != nil {
		if err := h.jobs.EnqueueStatsSnapshot(c.Request.Context(), queue.StatsSnapshotPayload{EventID: id}); err != nil {
			h.logger.Warn("enqueue stats snapshot", zap.Error(err), zap.String("event_id", id.String()))
		}
	}
	e, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "event not found")
		return
	}
	response.OK(c, e)
}
