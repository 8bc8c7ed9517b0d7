package exports

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dikshaa-012/event-checkin-app/internal/events"
	"github.com/dikshaa-012/event-checkin-app/internal/middleware"
	"github.com/dikshaa-012/event-checkin-app/internal/models"
	"github.com/dikshaa-012/event-checkin-app/pkg/queue"
	"github.com/dikshaa-012/event-checkin-app/pkg/response"
	"github.com/dikshaa-012/event-checkin-app/pkg/storage"
)

// Handler handles attendee export endpoints (admin only).
type Handler struct {
	repo      *Repository
	eventRepo *events.Repository
	jobs      *queue.Queue
	s3        *storage.S3
	logger    *zap.Logger
}

// NewHandler creates an exports handler. jobs and s3 may be nil; archive
// requests are then rejected but synchronous downloads still work.
func NewHandler(repo *Repository, eventRepo *events.Repository, jobs *queue.Queue, s3 *storage.S3, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, eventRepo: eventRepo, jobs: jobs, s3: s3, logger: logger}
}

// Download handles GET /events/:id/export.csv: streams the attendee CSV.
func (h *Handler) Download(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	e, err := h.eventRepo.GetByID(c.Request.Context(), eventID)
	if err != nil {
		response.NotFound(c, "event not found")
		return
	}
	rows, err := h.repo.ListRows(c.Request.Context(), eventID)
	if err != nil {
		response.Internal(c, "failed to load attendees")
		return
	}
	body, err := BuildCSV(rows)
	if err != nil {
		response.Internal(c, "failed to build csv")
		return
	}
	filename := fmt.Sprintf("attendees-%s.csv", e.ID)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv", body)
}

// RequestArchive handles POST /events/:id/export: records a pending archive
// and enqueues the upload job.
func (h *Handler) RequestArchive(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	if h.jobs == nil || h.s3 == nil {
		response.ServiceUnavailable(c, "export archiving is not configured")
		return
	}
	if _, err := h.eventRepo.GetByID(c.Request.Context(), eventID); err != nil {
		response.NotFound(c, "event not found")
		return
	}
	requestedBy := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	archive, err := h.repo.CreateArchive(c.Request.Context(), eventID, requestedBy)
	if err != nil {
		response.Internal(c, "failed to create export")
		return
	}
	payload := queue.ExportArchivePayload{EventID: eventID, ArchiveID: archive.ID}
	if err := h.jobs.EnqueueExportArchive(c.Request.Context(), payload); err != nil {
		h.logger.Error("enqueue export archive", zap.Error(err), zap.String("archive_id", archive.ID.String()))
		response.Internal(c, "failed to enqueue export")
		return
	}
	response.Created(c, archive)
}

// ListArchives handles GET /events/:id/exports: archives with presigned
// download URLs for completed ones.
func (h *Handler) ListArchives(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	list, err := h.repo.ListArchivesByEvent(c.Request.Context(), eventID)
	if err != nil {
		response.Internal(c, "failed to list exports")
		return
	}
	if h.s3 != nil {
		for i := range list {
			if list[i].Status != models.ExportStatusCompleted || list[i].ObjectKey == "" {
				continue
			}
			url, err := h.s3.GeneratePresignedDownloadURL(c.Request.Context(), list[i].ObjectKey)
			if err != nil {
				h.logger.Warn("presign export url", zap.Error(err), zap.String("key", list[i].ObjectKey))
				continue
			}
			list[i].DownloadURL = url
		}
	}
	response.OK(c, gin.H{"exports": list})
}
