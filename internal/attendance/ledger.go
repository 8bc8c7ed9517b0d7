// Package attendance implements the join/leave lifecycle, the durable
// interval ledger, the in-memory room presence registry, the presence delta
// broker and the statistics engine.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dikshaa-012/event-checkin-app/internal/models"
)

var (
	// ErrEventNotFound is returned when a join/leave/query references an
	// unknown event.
	ErrEventNotFound = errors.New("event not found")
	// ErrEventClosed is returned when a join is attempted on a closed event.
	ErrEventClosed = errors.New("event is closed")
	// ErrConcurrencyConflict reports a violated at-most-one-open-interval
	// invariant. The per-pair serialization in the controller exists to make
	// this unreachable; if observed it is a bug, not a condition to repair.
	ErrConcurrencyConflict = errors.New("multiple open attendance intervals for pair")
)

// Ledger is the durable store of attendance intervals. It is the source of
// truth for statistics and for "is this user attending" after a restart.
type Ledger interface {
	InsertOpen(ctx context.Context, eventID, userID uuid.UUID, joinedAt time.Time) (uuid.UUID, error)
	FindOpen(ctx context.Context, eventID, userID uuid.UUID) (*models.AttendanceInterval, error)
	CloseInterval(ctx context.Context, id uuid.UUID, leftAt time.Time) error
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.AttendanceInterval, error)
}

// EventStatus is the event directory's view of one event.
type EventStatus struct {
	Exists bool
	Closed bool
}

// EventDirectory supplies event existence and closed state. Implemented by
// the events repository.
type EventDirectory interface {
	Status(ctx context.Context, eventID uuid.UUID) (EventStatus, error)
}

// UserDirectory supplies the total registered user count for participation
// percentage. Implemented by the auth repository.
type UserDirectory interface {
	TotalUsers(ctx context.Context) (int, error)
}

// Repository is the PostgreSQL ledger over attendance_intervals.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an attendance ledger repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertOpen inserts a new open interval for the pair and returns its ID.
func (r *Repository) InsertOpen(ctx context.Context, eventID, userID uuid.UUID, joinedAt time.Time) (uuid.UUID, error) {
	const q = `INSERT INTO attendance_intervals (event_id, user_id, joined_at)
		VALUES ($1, $2, $3) RETURNING id`
	var id uuid.UUID
	if err := r.pool.QueryRow(ctx, q, eventID, userID, joinedAt).Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("insert open interval: %w", err)
	}
	return id, nil
}

// FindOpen returns the open interval for the pair, or nil if none. If more
// than one open row exists the invariant is broken and ErrConcurrencyConflict
// is returned.
func (r *Repository) FindOpen(ctx context.Context, eventID, userID uuid.UUID) (*models.AttendanceInterval, error) {
	const q = `SELECT id, event_id, user_id, joined_at, left_at
		FROM attendance_intervals
		WHERE event_id = $1 AND user_id = $2 AND left_at IS NULL
		ORDER BY joined_at DESC LIMIT 2`
	rows, err := r.pool.Query(ctx, q, eventID, userID)
	if err != nil {
		return nil, fmt.Errorf("find open interval: %w", err)
	}
	defer rows.Close()

	var open []models.AttendanceInterval
	for rows.Next() {
		var in models.AttendanceInterval
		if err := rows.Scan(&in.ID, &in.EventID, &in.UserID, &in.JoinedAt, &in.LeftAt); err != nil {
			return nil, fmt.Errorf("scan open interval: %w", err)
		}
		open = append(open, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find open interval: %w", err)
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

// CloseInterval sets left_at on an interval. Closed intervals are never
// mutated again.
func (r *Repository) CloseInterval(ctx context.Context, id uuid.UUID, leftAt time.Time) error {
	const q = `UPDATE attendance_intervals SET left_at = $1 WHERE id = $2 AND left_at IS NULL`
	if _, err := r.pool.Exec(ctx, q, leftAt, id); err != nil {
		return fmt.Errorf("close interval: %w", err)
	}
	return nil
}

// ListByEvent returns all intervals for an event, oldest first.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.AttendanceInterval, error) {
	const q = `SELECT id, event_id, user_id, joined_at, left_at
		FROM attendance_intervals WHERE event_id = $1 ORDER BY joined_at`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, fmt.Errorf("list intervals: %w", err)
	}
	defer rows.Close()

	var list []models.AttendanceInterval
	for rows.Next() {
		var in models.AttendanceInterval
		if err := rows.Scan(&in.ID, &in.EventID, &in.UserID, &in.JoinedAt, &in.LeftAt); err != nil {
			return nil, fmt.Errorf("scan interval: %w", err)
		}
		list = append(list, in)
	}
	return list, rows.Err()
}
