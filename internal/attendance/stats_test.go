package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dikshaa-012/event-checkin-app/internal/models"
)

var statsBase = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func at(sec int) time.Time { return statsBase.Add(time.Duration(sec) * time.Second) }

func atp(sec int) *time.Time {
	t := at(sec)
	return &t
}

func interval(userID uuid.UUID, joinSec int, leaveSec *int) models.AttendanceInterval {
	in := models.AttendanceInterval{
		ID:       uuid.New(),
		EventID:  uuid.New(),
		UserID:   userID,
		JoinedAt: at(joinSec),
	}
	if leaveSec != nil {
		in.LeftAt = atp(*leaveSec)
	}
	return in
}

func sec(n int) *int { return &n }

func TestPeakConcurrent_OverlappingIntervals(t *testing.T) {
	u1, u2, u3 := uuid.New(), uuid.New(), uuid.New()
	intervals := []models.AttendanceInterval{
		interval(u1, 10, sec(20)),
		interval(u2, 15, sec(25)),
		interval(u3, 22, sec(30)),
	}
	assert.Equal(t, 2, PeakConcurrent(intervals))
}

func TestPeakConcurrent_Empty(t *testing.T) {
	assert.Equal(t, 0, PeakConcurrent(nil))
}

func TestPeakConcurrent_OpenIntervalsStayActive(t *testing.T) {
	u1, u2 := uuid.New(), uuid.New()
	intervals := []models.AttendanceInterval{
		interval(u1, 10, nil),
		interval(u2, 50, nil),
	}
	assert.Equal(t, 2, PeakConcurrent(intervals))
}

func TestPeakConcurrent_InclusiveEnds(t *testing.T) {
	// one user leaves at the exact instant another joins; both count
	u1, u2 := uuid.New(), uuid.New()
	intervals := []models.AttendanceInterval{
		interval(u1, 10, sec(20)),
		interval(u2, 20, sec(30)),
	}
	assert.Equal(t, 2, PeakConcurrent(intervals))
}

func TestPeakConcurrent_MalformedIntervalClamped(t *testing.T) {
	// left_at before joined_at degrades to a zero-duration point
	u1, u2 := uuid.New(), uuid.New()
	intervals := []models.AttendanceInterval{
		interval(u1, 20, sec(5)),
		interval(u2, 100, sec(110)),
	}
	assert.Equal(t, 1, PeakConcurrent(intervals))
}

func TestPeakConcurrent_SameUserRejoins(t *testing.T) {
	u := uuid.New()
	intervals := []models.AttendanceInterval{
		interval(u, 10, sec(20)),
		interval(u, 30, sec(40)),
	}
	assert.Equal(t, 1, PeakConcurrent(intervals))
}

func TestJoinRate(t *testing.T) {
	u := uuid.New()
	intervals := []models.AttendanceInterval{
		interval(u, 10, sec(20)),
		interval(u, 30, sec(40)),
		interval(u, 50, nil),
	}
	assert.InDelta(t, 2.0/3.0, joinRate(intervals), 1e-9)
	assert.Zero(t, joinRate(nil))
}

func TestDistinctAttendees(t *testing.T) {
	u1, u2 := uuid.New(), uuid.New()
	intervals := []models.AttendanceInterval{
		interval(u1, 10, sec(20)),
		interval(u1, 30, nil),
		interval(u2, 15, sec(25)),
	}
	assert.Equal(t, 2, distinctAttendees(intervals))
}

func TestEngine_Compute(t *testing.T) {
	eventID := uuid.New()
	u1, u2 := uuid.New(), uuid.New()
	ledger := newFakeLedger()
	ledger.seed(eventID, u1, at(10), atp(20))
	ledger.seed(eventID, u2, at(15), atp(25))
	ledger.seed(eventID, u1, at(30), nil)

	engine := NewEngine(ledger, fakeUserDirectory{total: 4})
	snap, err := engine.Compute(context.Background(), eventID)
	require.NoError(t, err)

	assert.Equal(t, 2, snap.TotalAttendees)
	assert.Equal(t, 2, snap.PeakConcurrent)
	assert.InDelta(t, 2.0/3.0, snap.JoinRate, 1e-9)
	assert.InDelta(t, 50.0, snap.ParticipationPercentage, 1e-9)
}

func TestEngine_Compute_NoIntervals(t *testing.T) {
	engine := NewEngine(newFakeLedger(), fakeUserDirectory{total: 10})
	snap, err := engine.Compute(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, models.EventStatsSnapshot{}, snap)
}

type fakeUserDirectory struct{ total int }

func (d fakeUserDirectory) TotalUsers(context.Context) (int, error) { return d.total, nil }
