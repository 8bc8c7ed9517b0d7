package events

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dikshaa-012/event-checkin-app/internal/attendance"
	"github.com/dikshaa-012/event-checkin-app/internal/models"
)

// Repository handles event persistence. It is also the event directory
// consulted by the attendance lifecycle controller.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an event repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Filter narrows List results.
type Filter struct {
	Category string
	Search   string
	From     *time.Time
}

// Create inserts a new event.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (name, description, location, category, start_time, end_time, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, is_closed, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, e.Name, e.Description, e.Location, e.Category, e.StartTime, e.EndTime, e.CreatedBy).
		Scan(&e.ID, &e.IsClosed, &e.CreatedAt, &e.UpdatedAt)
}

// GetByID returns an event by ID with its distinct attendee count.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	const q = `SELECT e.id, e.name, e.description, e.location, e.category, e.start_time, e.end_time, e.is_closed, e.created_by, e.created_at, e.updated_at,
		(SELECT COUNT(DISTINCT user_id) FROM attendance_intervals WHERE event_id = e.id)
		FROM events e WHERE e.id = $1`
	var e models.Event
	err := r.pool.QueryRow(ctx, q, id).Scan(&e.ID, &e.Name, &e.Description, &e.Location, &e.Category, &e.StartTime, &e.EndTime, &e.IsClosed, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt, &e.AttendeeCount)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// List returns events matching the filter, soonest first.
func (r *Repository) List(ctx context.Context, f Filter) ([]models.Event, error) {
	q := `SELECT e.id, e.name, e.description, e.location, e.category, e.start_time, e.end_time, e.is_closed, e.created_by, e.created_at, e.updated_at,
		(SELECT COUNT(DISTINCT user_id) FROM attendance_intervals WHERE event_id = e.id)
		FROM events e WHERE 1=1`
	var args []interface{}
	if f.Category != "" {
		args = append(args, f.Category)
		q += ` AND e.category = $` + strconv.Itoa(len(args))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		q += ` AND e.name ILIKE $` + strconv.Itoa(len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		q += ` AND e.start_time >= $` + strconv.Itoa(len(args))
	}
	q += ` ORDER BY e.start_time`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Event
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.ID, &e.Name, &e.Description, &e.Location, &e.Category, &e.StartTime, &e.EndTime, &e.IsClosed, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt, &e.AttendeeCount); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// UpdatePatch carries the fields of a partial event update. Nil fields keep
// their stored value; a non-nil empty string clears the column.
type UpdatePatch struct {
	Name        *string
	Description *string
	Location    *string
	Category    *string
	StartTime   *time.Time
	EndTime     *time.Time
}

// Update applies a partial update. Nil patch fields map to NULL and COALESCE
// to the stored value.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, p UpdatePatch) error {
	const q = `UPDATE events SET
		name = COALESCE($1, name),
		description = COALESCE($2, description),
		location = COALESCE($3, location),
		category = COALESCE($4, category),
		start_time = COALESCE($5, start_time),
		end_time = COALESCE($6, end_time),
		updated_at = NOW()
		WHERE id = $7`
	_, err := r.pool.Exec(ctx, q, p.Name, p.Description, p.Location, p.Category, p.StartTime, p.EndTime, id)
	return err
}

// Delete removes an event by ID.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	return err
}

// Close marks an event closed. Closed is terminal: joins are rejected
// afterwards.
func (r *Repository) Close(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE events SET is_closed = TRUE, updated_at = NOW() WHERE id = $1`, id)
	return err
}

// Status implements attendance.EventDirectory.
func (r *Repository) Status(ctx context.Context, id uuid.UUID) (attendance.EventStatus, error) {
	var closed bool
	err := r.pool.QueryRow(ctx, `SELECT is_closed FROM events WHERE id = $1`, id).Scan(&closed)
	if err != nil {
		if err == pgx.ErrNoRows {
			return attendance.EventStatus{Exists: false}, nil
		}
		return attendance.EventStatus{}, err
	}
	return attendance.EventStatus{Exists: true, Closed: closed}, nil
}
