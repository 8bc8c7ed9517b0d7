// Package main runs the background job worker for stats snapshots and CSV export archives.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dikshaa-012/event-checkin-app/config"
	"github.com/dikshaa-012/event-checkin-app/internal/attendance"
	"github.com/dikshaa-012/event-checkin-app/internal/auth"
	"github.com/dikshaa-012/event-checkin-app/internal/exports"
	"github.com/dikshaa-012/event-checkin-app/internal/worker"
	"github.com/dikshaa-012/event-checkin-app/pkg/database"
	"github.com/dikshaa-012/event-checkin-app/pkg/queue"
	"github.com/dikshaa-012/event-checkin-app/pkg/redis"
	"github.com/dikshaa-012/event-checkin-app/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ExportsBucket:        cfg.AWS.ExportsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled, export jobs will dead-letter", zap.Error(err))
		}
	}

	ledger := attendance.NewRepository(pool)
	userRepo := auth.NewRepository(pool)
	engine := attendance.NewEngine(ledger, userRepo)
	snapshotRepo := attendance.NewSnapshotRepository(pool)
	exportRepo := exports.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	processor := worker.NewProcessor(engine, snapshotRepo, exportRepo, s3Client, jobQueue, logger)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("worker shutting down")
		cancel()
	}()

	logger.Info("worker started")
	processor.Run(ctx)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
