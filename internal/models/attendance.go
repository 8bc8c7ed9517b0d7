package models

import (
	"time"

	"github.com/google/uuid"
)

// AttendanceInterval is one continuous span of a user's presence at an event.
// An interval with no left_at is open: the user joined and has not left yet.
// For a given (user, event) pair at most one interval is open at any time.
type AttendanceInterval struct {
	ID       uuid.UUID  `json:"id"`
	EventID  uuid.UUID  `json:"event_id"`
	UserID   uuid.UUID  `json:"user_id"`
	JoinedAt time.Time  `json:"joined_at"`
	LeftAt   *time.Time `json:"left_at,omitempty"`
}

// Open reports whether the interval has not been closed yet.
func (i AttendanceInterval) Open() bool {
	return i.LeftAt == nil
}

// DurationSeconds returns the closed interval length in seconds, or nil while
// the interval is open. Never negative.
func (i AttendanceInterval) DurationSeconds() *int64 {
	if i.LeftAt == nil {
		return nil
	}
	secs := int64(i.LeftAt.Sub(i.JoinedAt) / time.Second)
	if secs < 0 {
		secs = 0
	}
	return &secs
}

// Participant is the minimal user profile carried in room presence state and
// presence deltas.
type Participant struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
	Email    string    `json:"email"`
	Role     Role      `json:"role"`
}

// RoomPresenceEntry is one ephemeral membership record in an event's room.
// Entries live only in memory and are lost on restart.
type RoomPresenceEntry struct {
	EventID        uuid.UUID   `json:"event_id"`
	Participant    Participant `json:"participant"`
	ConnectedSince time.Time   `json:"connected_since"`
}

// DeltaKind identifies the direction of a presence change.
type DeltaKind string

const (
	DeltaJoined DeltaKind = "joined"
	DeltaLeft   DeltaKind = "left"
)

// PresenceDelta is a single presence-change notification broadcast to the
// subscribers of an event's room.
type PresenceDelta struct {
	EventID        uuid.UUID   `json:"event_id"`
	Kind           DeltaKind   `json:"kind"`
	Participant    Participant `json:"participant"`
	ResultingCount int         `json:"resulting_count"`
}

// EventStatsSnapshot holds metrics derived from an event's attendance
// intervals. Computed fresh on every query, never cached.
type EventStatsSnapshot struct {
	TotalAttendees          int     `json:"total_attendees"`
	JoinRate                float64 `json:"join_rate"`
	PeakConcurrent          int     `json:"peak_concurrent"`
	ParticipationPercentage float64 `json:"participation_percentage"`
}
