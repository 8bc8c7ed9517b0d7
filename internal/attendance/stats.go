package attendance

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/dikshaa-012/event-checkin-app/internal/models"
)

// Engine computes derived metrics over the ledger's intervals for an event.
// It is read-only and independent of the live registry.
type Engine struct {
	ledger Ledger
	users  UserDirectory
}

// NewEngine creates a statistics engine.
func NewEngine(ledger Ledger, users UserDirectory) *Engine {
	return &Engine{ledger: ledger, users: users}
}

// Compute derives an EventStatsSnapshot from the event's current interval
// set. Pure function of the ledger at call time; nothing is cached.
func (e *Engine) Compute(ctx context.Context, eventID uuid.UUID) (models.EventStatsSnapshot, error) {
	intervals, err := e.ledger.ListByEvent(ctx, eventID)
	if err != nil {
		return models.EventStatsSnapshot{}, fmt.Errorf("list intervals: %w", err)
	}

	totalUsers, err := e.users.TotalUsers(ctx)
	if err != nil {
		return models.EventStatsSnapshot{}, fmt.Errorf("total users: %w", err)
	}

	snapshot := models.EventStatsSnapshot{
		TotalAttendees: distinctAttendees(intervals),
		JoinRate:       joinRate(intervals),
		PeakConcurrent: PeakConcurrent(intervals),
	}
	if totalUsers > 0 {
		snapshot.ParticipationPercentage = float64(snapshot.TotalAttendees) / float64(totalUsers) * 100
	}
	return snapshot, nil
}

func distinctAttendees(intervals []models.AttendanceInterval) int {
	seen := make(map[uuid.UUID]struct{}, len(intervals))
	for _, in := range intervals {
		seen[in.UserID] = struct{}{}
	}
	return len(seen)
}

// joinRate is the fraction of intervals that are closed; 0 for an empty set.
func joinRate(intervals []models.AttendanceInterval) float64 {
	if len(intervals) == 0 {
		return 0
	}
	closed := 0
	for _, in := range intervals {
		if !in.Open() {
			closed++
		}
	}
	return float64(closed) / float64(len(intervals))
}

// PeakConcurrent returns the maximum number of simultaneously active
// intervals at any instant. An interval is active at t when joined_at <= t
// and (left_at absent or left_at >= t); an open interval stays active until
// now. Timeline sweep, O(n log n).
//
// Interval ends are inclusive, so at a shared instant joins are counted
// before leaves. A malformed row with left_at < joined_at contributes a
// zero-duration point at joined_at rather than being rejected.
func PeakConcurrent(intervals []models.AttendanceInterval) int {
	if len(intervals) == 0 {
		return 0
	}

	type boundary struct {
		atNanos int64
		delta   int
	}
	points := make([]boundary, 0, 2*len(intervals))
	for _, in := range intervals {
		points = append(points, boundary{atNanos: in.JoinedAt.UnixNano(), delta: +1})
		if in.LeftAt != nil {
			end := *in.LeftAt
			if end.Before(in.JoinedAt) {
				end = in.JoinedAt
			}
			points = append(points, boundary{atNanos: end.UnixNano(), delta: -1})
		}
	}

	sort.Slice(points, func(i, j int) bool {
		if points[i].atNanos != points[j].atNanos {
			return points[i].atNanos < points[j].atNanos
		}
		return points[i].delta > points[j].delta
	})

	peak, active := 0, 0
	for _, p := range points {
		active += p.delta
		if active > peak {
			peak = active
		}
	}
	return peak
}
