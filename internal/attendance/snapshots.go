package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dikshaa-012/event-checkin-app/internal/models"
)

// StoredSnapshot is a persisted stats snapshot, written by the worker when an
// event closes. Live stats queries still recompute from the ledger.
type StoredSnapshot struct {
	ID         uuid.UUID                 `json:"id"`
	EventID    uuid.UUID                 `json:"event_id"`
	Stats      models.EventStatsSnapshot `json:"stats"`
	ComputedAt time.Time                 `json:"computed_at"`
}

// SnapshotRepository persists event_stats_snapshots.
type SnapshotRepository struct {
	pool *pgxpool.Pool
}

// NewSnapshotRepository creates a snapshot repository.
func NewSnapshotRepository(pool *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{pool: pool}
}

// Insert stores a computed snapshot for an event.
func (r *SnapshotRepository) Insert(ctx context.Context, eventID uuid.UUID, s models.EventStatsSnapshot) error {
	const q = `INSERT INTO event_stats_snapshots (event_id, total_attendees, join_rate, peak_concurrent, participation_percentage)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.pool.Exec(ctx, q, eventID, s.TotalAttendees, s.JoinRate, s.PeakConcurrent, s.ParticipationPercentage); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// ListByEvent returns stored snapshots for an event, newest first.
func (r *SnapshotRepository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]StoredSnapshot, error) {
	const q = `SELECT id, event_id, total_attendees, join_rate, peak_concurrent, participation_percentage, computed_at
		FROM event_stats_snapshots WHERE event_id = $1 ORDER BY computed_at DESC`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var list []StoredSnapshot
	for rows.Next() {
		var s StoredSnapshot
		if err := rows.Scan(&s.ID, &s.EventID, &s.Stats.TotalAttendees, &s.Stats.JoinRate, &s.Stats.PeakConcurrent, &s.Stats.ParticipationPercentage, &s.ComputedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		list = append(list, s)
	}
	return list, rows.Err()
}
