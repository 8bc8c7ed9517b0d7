// Package main runs the event check-in HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dikshaa-012/event-checkin-app/config"
	"github.com/dikshaa-012/event-checkin-app/internal/attendance"
	"github.com/dikshaa-012/event-checkin-app/internal/auth"
	"github.com/dikshaa-012/event-checkin-app/internal/events"
	"github.com/dikshaa-012/event-checkin-app/internal/exports"
	"github.com/dikshaa-012/event-checkin-app/internal/middleware"
	"github.com/dikshaa-012/event-checkin-app/internal/realtime"
	"github.com/dikshaa-012/event-checkin-app/pkg/database"
	"github.com/dikshaa-012/event-checkin-app/pkg/queue"
	"github.com/dikshaa-012/event-checkin-app/pkg/redis"
	"github.com/dikshaa-012/event-checkin-app/pkg/response"
	"github.com/dikshaa-012/event-checkin-app/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

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
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Auth and user directory
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Events (directory consulted by the lifecycle controller)
	eventRepo := events.NewRepository(pool)
	eventHandler := events.NewHandler(eventRepo, jobQueue, logger)

	// Attendance core
	ledger := attendance.NewRepository(pool)
	registry := attendance.NewRegistry()
	broker := attendance.NewBroker()
	controller := attendance.NewController(ledger, registry, broker, eventRepo, logger)
	engine := attendance.NewEngine(ledger, authRepo)
	snapshotRepo := attendance.NewSnapshotRepository(pool)
	attendanceHandler := attendance.NewHandler(controller, engine, registry, ledger, eventRepo, authRepo, snapshotRepo)

	// Exports
	exportRepo := exports.NewRepository(pool)
	exportHandler := exports.NewHandler(exportRepo, eventRepo, jobQueue, s3Client, logger)

	// Realtime transport
	hub := realtime.NewHub(broker, registry, logger)
	jwtValidate := func(token string) (userID, role string, err error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return "", "", err
		}
		return claims.UserID.String(), claims.Role, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Public reads
	router.GET("/events", eventHandler.List)
	router.GET("/events/:id", eventHandler.GetByID)
	router.GET("/events/:id/live_count", attendanceHandler.LiveCount)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/users", middleware.RequireRole("admin"), authHandler.List)

		// Event management
		api.POST("/events", middleware.RequireRole("admin"), eventHandler.Create)
		api.PATCH("/events/:id", middleware.RequireRole("admin"), eventHandler.Update)
		api.DELETE("/events/:id", middleware.RequireRole("admin"), eventHandler.Delete)
		api.POST("/events/:id/close", middleware.RequireRole("admin"), eventHandler.CloseEvent)

		// Attendance lifecycle
		api.POST("/events/:id/join", attendanceHandler.Join)
		api.POST("/events/:id/leave", attendanceHandler.Leave)
		api.GET("/events/:id/attending", attendanceHandler.Attending)
		api.GET("/events/:id/presence", attendanceHandler.Presence)

		// Analytics (admin)
		api.GET("/events/:id/stats", middleware.RequireRole("admin"), attendanceHandler.Stats)
		api.GET("/events/:id/attendance", middleware.RequireRole("admin"), attendanceHandler.ListIntervals)
		api.GET("/events/:id/snapshots", middleware.RequireRole("admin"), attendanceHandler.ListSnapshots)

		// Exports (admin)
		api.GET("/events/:id/export.csv", middleware.RequireRole("admin"), exportHandler.Download)
		api.POST("/events/:id/export", middleware.RequireRole("admin"), exportHandler.RequestArchive)
		api.GET("/events/:id/exports", middleware.RequireRole("admin"), exportHandler.ListArchives)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, controller, authRepo, jwtValidate, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
