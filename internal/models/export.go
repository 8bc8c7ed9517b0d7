package models

import (
	"time"

	"github.com/google/uuid"
)

// Export archive statuses.
const (
	ExportStatusPending   = "pending"
	ExportStatusCompleted = "completed"
	ExportStatusFailed    = "failed"
)

// ExportArchive tracks an attendee CSV export archived to S3.
type ExportArchive struct {
	ID          uuid.UUID  `json:"id"`
	EventID     uuid.UUID  `json:"event_id"`
	RequestedBy uuid.UUID  `json:"requested_by"`
	ObjectKey   string     `json:"object_key,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// DownloadURL is a presigned S3 URL, populated on reads for completed
	// archives when storage is configured.
	DownloadURL string `json:"download_url,omitempty"`
}
