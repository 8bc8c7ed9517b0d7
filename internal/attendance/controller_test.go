package attendance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dikshaa-012/event-checkin-app/internal/models"
)

// fakeLedger is an in-memory Ledger with the same at-most-one-open-row
// semantics as the PostgreSQL repository.
type fakeLedger struct {
	mu        sync.Mutex
	intervals []models.AttendanceInterval
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{}
}

func (l *fakeLedger) seed(eventID, userID uuid.UUID, joinedAt time.Time, leftAt *time.Time) uuid.UUID {
	l.mu.Lock()
	defer l.mu.Unlock()
	in := models.AttendanceInterval{
		ID:       uuid.New(),
		EventID:  eventID,
		UserID:   userID,
		JoinedAt: joinedAt,
		LeftAt:   leftAt,
	}
	l.intervals = append(l.intervals, in)
	return in.ID
}

func (l *fakeLedger) InsertOpen(_ context.Context, eventID, userID uuid.UUID, joinedAt time.Time) (uuid.UUID, error) {
	return l.seed(eventID, userID, joinedAt, nil), nil
}

func (l *fakeLedger) FindOpen(_ context.Context, eventID, userID uuid.UUID) (*models.AttendanceInterval, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var open []models.AttendanceInterval
	for _, in := range l.intervals {
		if in.EventID == eventID && in.UserID == userID && in.LeftAt == nil {
			open = append(open, in)
		}
	}
	switch len(open) {
	case 0:
		return nil, nil
	case 1:
		return &open[0], nil
	default:
		return nil, ErrConcurrencyConflict
	}
}

func (l *fakeLedger) CloseInterval(_ context.Context, id uuid.UUID, leftAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.intervals {
		if l.intervals[i].ID == id && l.intervals[i].LeftAt == nil {
			t := leftAt
			l.intervals[i].LeftAt = &t
		}
	}
	return nil
}

func (l *fakeLedger) ListByEvent(_ context.Context, eventID uuid.UUID) ([]models.AttendanceInterval, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.AttendanceInterval
	for _, in := range l.intervals {
		if in.EventID == eventID {
			out = append(out, in)
		}
	}
	return out, nil
}

func (l *fakeLedger) openCount(eventID, userID uuid.UUID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, in := range l.intervals {
		if in.EventID == eventID && in.UserID == userID && in.LeftAt == nil {
			n++
		}
	}
	return n
}

type fakeEventDirectory struct {
	mu     sync.Mutex
	events map[uuid.UUID]EventStatus
}

func newFakeEventDirectory() *fakeEventDirectory {
	return &fakeEventDirectory{events: make(map[uuid.UUID]EventStatus)}
}

func (d *fakeEventDirectory) add(id uuid.UUID, closed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events[id] = EventStatus{Exists: true, Closed: closed}
}

func (d *fakeEventDirectory) Status(_ context.Context, id uuid.UUID) (EventStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.events[id], nil
}

func newTestController(t *testing.T) (*Controller, *fakeLedger, *fakeEventDirectory, *Broker) {
	t.Helper()
	ledger := newFakeLedger()
	events := newFakeEventDirectory()
	broker := NewBroker()
	controller := NewController(ledger, NewRegistry(), broker, events, zap.NewNop())
	return controller, ledger, events, broker
}

func participant() models.Participant {
	return models.Participant{
		ID:       uuid.New(),
		FullName: "Diksha Sharma",
		Email:    "diksha@example.com",
		Role:     models.RoleAttendee,
	}
}

func TestController_JoinLeave(t *testing.T) {
	controller, ledger, events, _ := newTestController(t)
	ctx := context.Background()
	eventID := uuid.New()
	events.add(eventID, false)
	p := participant()

	intervalID, count, err := controller.Join(ctx, eventID, p)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, intervalID)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, ledger.openCount(eventID, p.ID))

	count, err = controller.Leave(ctx, eventID, p)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Equal(t, 0, ledger.openCount(eventID, p.ID))

	intervals, err := ledger.ListByEvent(ctx, eventID)
	require.NoError(t, err)
	require.Len(t, intervals, 1)
	assert.False(t, intervals[0].Open())
}

func TestController_JoinIdempotent(t *testing.T) {
	controller, ledger, events, broker := newTestController(t)
	ctx := context.Background()
	eventID := uuid.New()
	events.add(eventID, false)
	p := participant()

	deltas, cancel := broker.Subscribe(eventID)
	defer cancel()

	firstID, count, err := controller.Join(ctx, eventID, p)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	secondID, count, err := controller.Join(ctx, eventID, p)
	require.NoError(t, err)
	assert.Equal(t, firstID, secondID)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, ledger.openCount(eventID, p.ID))

	// exactly one delta despite two joins
	d := <-deltas
	assert.Equal(t, models.DeltaJoined, d.Kind)
	assert.Equal(t, 1, d.ResultingCount)
	select {
	case extra := <-deltas:
		t.Fatalf("unexpected second delta: %+v", extra)
	default:
	}
}

func TestController_LeaveWithoutJoinIsNoop(t *testing.T) {
	controller, _, events, broker := newTestController(t)
	ctx := context.Background()
	eventID := uuid.New()
	events.add(eventID, false)
	p := participant()

	deltas, cancel := broker.Subscribe(eventID)
	defer cancel()

	count, err := controller.Leave(ctx, eventID, p)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	select {
	case d := <-deltas:
		t.Fatalf("no-op leave emitted delta: %+v", d)
	default:
	}
}

func TestController_RejoinAfterLeaveOpensNewInterval(t *testing.T) {
	controller, ledger, events, _ := newTestController(t)
	ctx := context.Background()
	eventID := uuid.New()
	events.add(eventID, false)
	p := participant()

	firstID, _, err := controller.Join(ctx, eventID, p)
	require.NoError(t, err)
	_, err = controller.Leave(ctx, eventID, p)
	require.NoError(t, err)
	secondID, _, err := controller.Join(ctx, eventID, p)
	require.NoError(t, err)

	assert.NotEqual(t, firstID, secondID)
	intervals, err := ledger.ListByEvent(ctx, eventID)
	require.NoError(t, err)
	assert.Len(t, intervals, 2)
	assert.Equal(t, 1, ledger.openCount(eventID, p.ID))
}

func TestController_JoinClosedEvent(t *testing.T) {
	controller, _, events, _ := newTestController(t)
	eventID := uuid.New()
	events.add(eventID, true)

	_, _, err := controller.Join(context.Background(), eventID, participant())
	assert.ErrorIs(t, err, ErrEventClosed)
}

func TestController_UnknownEvent(t *testing.T) {
	controller, _, _, _ := newTestController(t)
	ctx := context.Background()
	eventID := uuid.New()
	p := participant()

	_, _, err := controller.Join(ctx, eventID, p)
	assert.ErrorIs(t, err, ErrEventNotFound)
	_, err = controller.Leave(ctx, eventID, p)
	assert.ErrorIs(t, err, ErrEventNotFound)
	_, err = controller.Attending(ctx, eventID, p.ID)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestController_LeaveOnClosedEventStillAccepted(t *testing.T) {
	controller, ledger, events, _ := newTestController(t)
	ctx := context.Background()
	eventID := uuid.New()
	events.add(eventID, false)
	p := participant()

	_, _, err := controller.Join(ctx, eventID, p)
	require.NoError(t, err)

	// closing the event must not strand open intervals
	events.add(eventID, true)
	_, err = controller.Leave(ctx, eventID, p)
	require.NoError(t, err)
	assert.Equal(t, 0, ledger.openCount(eventID, p.ID))
}

func TestController_ConcurrentJoinsOneOpenInterval(t *testing.T) {
	controller, ledger, events, _ := newTestController(t)
	ctx := context.Background()
	eventID := uuid.New()
	events.add(eventID, false)
	p := participant()

	const n = 32
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, _, err := controller.Join(ctx, eventID, p)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ledger.openCount(eventID, p.ID))
	intervals, err := ledger.ListByEvent(ctx, eventID)
	require.NoError(t, err)
	assert.Len(t, intervals, 1)
}

func TestController_Attending(t *testing.T) {
	controller, _, events, _ := newTestController(t)
	ctx := context.Background()
	eventID := uuid.New()
	events.add(eventID, false)
	p := participant()

	attending, err := controller.Attending(ctx, eventID, p.ID)
	require.NoError(t, err)
	assert.False(t, attending)

	_, _, err = controller.Join(ctx, eventID, p)
	require.NoError(t, err)
	attending, err = controller.Attending(ctx, eventID, p.ID)
	require.NoError(t, err)
	assert.True(t, attending)

	_, err = controller.Leave(ctx, eventID, p)
	require.NoError(t, err)
	attending, err = controller.Attending(ctx, eventID, p.ID)
	require.NoError(t, err)
	assert.False(t, attending)
}

func TestController_TwoUsersCounts(t *testing.T) {
	controller, ledger, events, broker := newTestController(t)
	ctx := context.Background()
	eventID := uuid.New()
	events.add(eventID, false)
	alice, bob := participant(), participant()

	deltas, cancel := broker.Subscribe(eventID)
	defer cancel()

	_, count, err := controller.Join(ctx, eventID, alice)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, count, err = controller.Join(ctx, eventID, bob)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = controller.Leave(ctx, eventID, alice)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	first, second, third := <-deltas, <-deltas, <-deltas
	assert.Equal(t, models.DeltaJoined, first.Kind)
	assert.Equal(t, alice.ID, first.Participant.ID)
	assert.Equal(t, models.DeltaJoined, second.Kind)
	assert.Equal(t, bob.ID, second.Participant.ID)
	assert.Equal(t, models.DeltaLeft, third.Kind)
	assert.Equal(t, alice.ID, third.Participant.ID)
	assert.Equal(t, []int{1, 2, 1}, []int{first.ResultingCount, second.ResultingCount, third.ResultingCount})

	count, err = controller.Leave(ctx, eventID, bob)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	stats, err := NewEngine(ledger, fakeUserDirectory{total: 2}).Compute(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalAttendees)
	assert.Equal(t, 2, stats.PeakConcurrent)
}
