package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueSnapshots is the Redis list key for stats snapshot jobs.
	QueueSnapshots = "worker:snapshots"
	// QueueExports is the Redis list key for CSV export archive jobs.
	QueueExports = "worker:exports"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeStatsSnapshot JobType = "stats_snapshot"
	JobTypeExportArchive JobType = "export_archive"
)

// StatsSnapshotPayload is the payload for stats snapshot jobs, enqueued when
// an event is closed.
type StatsSnapshotPayload struct {
	EventID uuid.UUID `json:"event_id"`
}

// ExportArchivePayload is the payload for CSV export archive jobs.
type ExportArchivePayload struct {
	EventID   uuid.UUID `json:"event_id"`
	ArchiveID uuid.UUID `json:"archive_id"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// EnqueueStatsSnapshot enqueues a stats snapshot job.
func (q *Queue) EnqueueStatsSnapshot(ctx context.Context, payload StatsSnapshotPayload) error {
	job, raw, err := newJob(JobTypeStatsSnapshot, payload)
	if err != nil {
		return err
	}
	if err := q.client.RPush(ctx, QueueSnapshots, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued stats snapshot job", zap.String("job_id", job.ID), zap.String("event_id", payload.EventID.String()))
	return nil
}

// EnqueueExportArchive enqueues a CSV export archive job.
func (q *Queue) EnqueueExportArchive(ctx context.Context, payload ExportArchivePayload) error {
	job, raw, err := newJob(JobTypeExportArchive, payload)
	if err != nil {
		return err
	}
	if err := q.client.RPush(ctx, QueueExports, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued export archive job", zap.String("job_id", job.ID), zap.String("archive_id", payload.ArchiveID.String()))
	return nil
}

func newJob(t JobType, payload interface{}) (*Job, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal payload: %w", err)
	}
	job := &Job{
		ID:        uuid.New().String(),
		Type:      t,
		Payload:   body,
		Attempt:   0,
		CreatedAt: time.Now(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal job: %w", err)
	}
	return job, raw, nil
}

// Dequeue blocks until a job is available on any worker queue or ctx is done.
// Returns job and the queue name it came from.
func (q *Queue) Dequeue(ctx context.Context) (*Job, string, error) {
	result, err := q.client.BLPop(ctx, 0, QueueSnapshots, QueueExports).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, "", nil
		}
		return nil, "", err
	}
	if len(result) < 2 {
		return nil, "", nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, "", nil
	}
	return &job, result[0], nil
}

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries, pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if job.Attempt >= MaxRetries {
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	key := QueueSnapshots
	if job.Type == JobTypeExportArchive {
		key = QueueExports
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}
