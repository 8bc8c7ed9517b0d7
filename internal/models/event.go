package models

import (
	"time"

	"github.com/google/uuid"
)

// Event represents a live event that users can check in to.
type Event struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	Category    string     `json:"category"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	IsClosed    bool       `json:"is_closed"`
	CreatedBy   uuid.UUID  `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// AttendeeCount is the number of distinct users with at least one
	// attendance interval. Populated on reads, not stored.
	AttendeeCount int `json:"attendee_count"`
}
