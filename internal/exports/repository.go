package exports

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dikshaa-012/event-checkin-app/internal/models"
)

// Repository reads attendee rows for CSV exports and tracks export archives.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an exports repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListRows returns one row per attendance interval joined with the user's
// profile, oldest first.
func (r *Repository) ListRows(ctx context.Context, eventID uuid.UUID) ([]Row, error) {
	const q = `SELECT u.full_name, u.email, i.joined_at, i.left_at
		FROM attendance_intervals i
		INNER JOIN users u ON u.id = i.user_id
		WHERE i.event_id = $1 ORDER BY i.joined_at`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, fmt.Errorf("list export rows: %w", err)
	}
	defer rows.Close()

	var list []Row
	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.FullName, &row.Email, &row.JoinedAt, &row.LeftAt); err != nil {
			return nil, fmt.Errorf("scan export row: %w", err)
		}
		list = append(list, row)
	}
	return list, rows.Err()
}

// CreateArchive inserts a pending archive record.
func (r *Repository) CreateArchive(ctx context.Context, eventID, requestedBy uuid.UUID) (*models.ExportArchive, error) {
	const q = `INSERT INTO attendance_exports (event_id, requested_by)
		VALUES ($1, $2)
		RETURNING id, event_id, requested_by, object_key, status, created_at, completed_at`
	var a models.ExportArchive
	err := r.pool.QueryRow(ctx, q, eventID, requestedBy).
		Scan(&a.ID, &a.EventID, &a.RequestedBy, &a.ObjectKey, &a.Status, &a.CreatedAt, &a.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}
	return &a, nil
}

// GetArchive returns an archive by ID.
func (r *Repository) GetArchive(ctx context.Context, id uuid.UUID) (*models.ExportArchive, error) {
	const q = `SELECT id, event_id, requested_by, object_key, status, created_at, completed_at
		FROM attendance_exports WHERE id = $1`
	var a models.ExportArchive
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&a.ID, &a.EventID, &a.RequestedBy, &a.ObjectKey, &a.Status, &a.CreatedAt, &a.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("get archive: %w", err)
	}
	return &a, nil
}

// MarkCompleted records the uploaded object key on an archive.
func (r *Repository) MarkCompleted(ctx context.Context, id uuid.UUID, objectKey string) error {
	const q = `UPDATE attendance_exports SET status = $1, object_key = $2, completed_at = NOW() WHERE id = $3`
	if _, err := r.pool.Exec(ctx, q, models.ExportStatusCompleted, objectKey, id); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

// MarkFailed flags an archive whose upload did not succeed.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE attendance_exports SET status = $1 WHERE id = $2`
	if _, err := r.pool.Exec(ctx, q, models.ExportStatusFailed, id); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// ListArchivesByEvent returns archives for an event, newest first.
func (r *Repository) ListArchivesByEvent(ctx context.Context, eventID uuid.UUID) ([]models.ExportArchive, error) {
	const q = `SELECT id, event_id, requested_by, object_key, status, created_at, completed_at
		FROM attendance_exports WHERE event_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	defer rows.Close()

	var list []models.ExportArchive
	for rows.Next() {
		var a models.ExportArchive
		if err := rows.Scan(&a.ID, &a.EventID, &a.RequestedBy, &a.ObjectKey, &a.Status, &a.CreatedAt, &a.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan archive: %w", err)
		}
		list = append(list, a)
	}
	return list, rows.Err()
}
