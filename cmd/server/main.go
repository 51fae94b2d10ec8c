// Package main runs the meeting management HTTP server with the cancelled-meeting cleanup scheduler.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/meetingapp/backend/config"
	"github.com/meetingapp/backend/internal/auth"
	"github.com/meetingapp/backend/internal/cleanup"
	"github.com/meetingapp/backend/internal/compression"
	"github.com/meetingapp/backend/internal/emaillogs"
	"github.com/meetingapp/backend/internal/files"
	"github.com/meetingapp/backend/internal/meetings"
	"github.com/meetingapp/backend/internal/middleware"
	"github.com/meetingapp/backend/internal/notify"
	"github.com/meetingapp/backend/pkg/database"
	"github.com/meetingapp/backend/pkg/queue"
	"github.com/meetingapp/backend/pkg/redis"
	"github.com/meetingapp/backend/pkg/response"
	"github.com/meetingapp/backend/pkg/storage"
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

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	blobs, err := newBlobStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("storage", zap.Error(err))
	}

	jobQueue := queue.NewQueue(rdb.Client, logger)
	notifier := notify.NewQueueNotifier(jobQueue, logger)

	// Files
	fileRepo := files.NewRepository(pool)
	fileStore := files.NewStore(fileRepo, blobs, compression.NewCodec(logger), logger)

	// Auth
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, fileStore, jwtService, notifier, logger)
	authHandler := auth.NewHandler(authService, logger)

	// Meetings
	meetingRepo := meetings.NewRepository(pool)
	retention := time.Duration(cfg.Cleanup.RetentionDays) * 24 * time.Hour
	meetingService := meetings.NewService(meetingRepo, authRepo, fileStore, notifier, retention, logger)
	meetingHandler := meetings.NewHandler(meetingService, logger)
	fileHandler := files.NewHandler(fileStore, meetingRepo, cfg.Storage.MaxUploadBytes, logger)

	emailLogsHandler := emaillogs.NewHandler(emaillogs.NewRepository(pool), logger)

	var scheduler *cleanup.Scheduler
	if cfg.Cleanup.Enabled {
		scheduler, err = cleanup.NewScheduler(meetingService, cfg.Cleanup.Schedule, logger)
		if err != nil {
			logger.Fatal("cleanup scheduler", zap.Error(err))
		}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics())

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Auth (public)
	authGroup := router.Group("/api/auth")
	{
		authGroup.POST("/register", fileHandler.LimitBody, authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
	}

	// Protected API (JWT required)
	api := router.Group("/api")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/auth/me", authHandler.Me)

		api.POST("/files/upload", fileHandler.LimitBody, fileHandler.Upload)
		api.POST("/files/validate", fileHandler.LimitBody, fileHandler.Validate)
		api.GET("/files/my-files", fileHandler.MyFiles)
		api.GET("/files/by-name/:name", fileHandler.GetByName)
		api.GET("/files/:id", fileHandler.Get)
		api.GET("/files/:id/access", fileHandler.Access)
		api.DELETE("/files/:id", fileHandler.Delete)

		api.POST("/meetings", fileHandler.LimitBody, meetingHandler.Create)
		api.GET("/meetings", meetingHandler.List)
		api.GET("/meetings/my-meetings", meetingHandler.Mine)
		api.GET("/meetings/purge-candidates", meetingHandler.PurgeCandidates)
		api.GET("/meetings/delete-logs", meetingHandler.DeleteLogs)
		api.GET("/meetings/:id", meetingHandler.Get)
		api.PUT("/meetings/:id", fileHandler.LimitBody, meetingHandler.Update)
		api.DELETE("/meetings/:id/cancel", meetingHandler.Cancel)
		api.DELETE("/meetings/:id", meetingHandler.Delete)

		api.GET("/notifications", emailLogsHandler.List)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	if scheduler != nil {
		scheduler.Start(cfg.Cleanup.RunOnStart)
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
	if scheduler != nil {
		if err := scheduler.Stop(shutdownCtx); err != nil {
			logger.Error("cleanup scheduler shutdown", zap.Error(err))
		}
	}
	logger.Info("server stopped")
}

func newBlobStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.BlobStore, error) {
	if cfg.Storage.Backend == config.StorageBackendS3 {
		s3Store, err := storage.NewS3Store(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			Bucket:          cfg.AWS.UploadsBucket,
			Endpoint:        cfg.AWS.S3Endpoint,
		}, logger)
		if err != nil {
			return nil, err
		}
		return s3Store, nil
	}
	local, err := storage.NewLocalStore(cfg.Storage.UploadsRoot, logger)
	if err != nil {
		return nil, err
	}
	return local, nil
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
