package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dikshaa-012/event-checkin-app/internal/attendance"
	"github.com/dikshaa-012/event-checkin-app/internal/exports"
	"github.com/dikshaa-012/event-checkin-app/pkg/queue"
	"github.com/dikshaa-012/event-checkin-app/pkg/storage"
)

// Processor consumes background jobs: stats snapshots when events close and
// CSV export archives uploaded to S3.
type Processor struct {
	engine     *attendance.Engine
	snapshots  *attendance.SnapshotRepository
	exportRepo *exports.Repository
	s3         *storage.S3
	queue      *queue.Queue
	logger     *zap.Logger
}

// NewProcessor creates a job processor. s3 may be nil; export jobs then fail
// and retry until dead-lettered.
func NewProcessor(
	engine *attendance.Engine,
	snapshots *attendance.SnapshotRepository,
	exportRepo *exports.Repository,
	s3 *storage.S3,
	q *queue.Queue,
	logger *zap.Logger,
) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		engine:     engine,
		snapshots:  snapshots,
		exportRepo: exportRepo,
		s3:         s3,
		queue:      q,
		logger:     logger,
	}
}

// Process executes one job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeStatsSnapshot:
		return p.processSnapshot(ctx, job)
	case queue.JobTypeExportArchive:
		return p.processExport(ctx, job)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (p *Processor) processSnapshot(ctx context.Context, job *queue.Job) error {
	var payload queue.StatsSnapshotPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	stats, err := p.engine.Compute(ctx, payload.EventID)
	if err != nil {
		return fmt.Errorf("compute stats: %w", err)
	}
	if err := p.snapshots.Insert(ctx, payload.EventID, stats); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	p.logger.Info("stats snapshot stored",
		zap.String("event_id", payload.EventID.String()),
		zap.Int("total_attendees", stats.TotalAttendees),
		zap.Int("peak_concurrent", stats.PeakConcurrent),
	)
	return nil
}

func (p *Processor) processExport(ctx context.Context, job *queue.Job) error {
	var payload queue.ExportArchivePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if p.s3 == nil {
		return fmt.Errorf("s3 storage not configured")
	}

	rows, err := p.exportRepo.ListRows(ctx, payload.EventID)
	if err != nil {
		return fmt.Errorf("load rows: %w", err)
	}
	body, err := exports.BuildCSV(rows)
	if err != nil {
		return fmt.Errorf("build csv: %w", err)
	}

	key := storage.ExportKey(payload.EventID.String(), payload.ArchiveID.String())
	if err := p.s3.UploadExport(ctx, key, body); err != nil {
		if job.Attempt+1 >= queue.MaxRetries {
			_ = p.exportRepo.MarkFailed(ctx, payload.ArchiveID)
		}
		return fmt.Errorf("upload: %w", err)
	}
	if err := p.exportRepo.MarkCompleted(ctx, payload.ArchiveID, key); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	p.logger.Info("export archive uploaded", zap.String("archive_id", payload.ArchiveID.String()), zap.String("s3_key", key))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
