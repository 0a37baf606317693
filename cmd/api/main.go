package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-courseware-api/internal/config"
	"github.com/noah-isme/gema-courseware-api/internal/database"
	"github.com/noah-isme/gema-courseware-api/internal/handler"
	"github.com/noah-isme/gema-courseware-api/internal/middleware"
	"github.com/noah-isme/gema-courseware-api/internal/models"
	"github.com/noah-isme/gema-courseware-api/internal/repository"
	"github.com/noah-isme/gema-courseware-api/internal/router"
	"github.com/noah-isme/gema-courseware-api/internal/service"
	"github.com/noah-isme/gema-courseware-api/pkg/events"
	"github.com/noah-isme/gema-courseware-api/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.AnswerKey{},
		&models.Assignment{},
		&models.Course{},
		&models.Chapter{},
		&models.ChapterContent{},
		&models.Submission{},
		&models.CourseProgress{},
		&models.ActivityLog{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis url not configured, progress cache disabled")
	}

	var publisher service.EventPublisher = events.Nop{}
	if cfg.NATSURL != "" {
		conn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer conn.Drain()
		publisher = events.NewNATSPublisher(conn, cfg.EventSubjectPrefix, logger)
	} else {
		logger.Warn().Msg("nats url not configured, domain events are discarded")
	}

	objectStorage, err := newObjectStorage(cfg, logger)
	if err != nil {
		log.Fatalf("failed to create object storage: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	tx := repository.NewTransactor(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	answerKeyRepo := repository.NewAnswerKeyRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	auditTrail := service.NewAuditTrail(activityRepo, validate, logger)
	uploadService := service.NewUploadService(objectStorage, cfg.UploadMaxSizeMB, cfg.StorageTimeout, logger)
	submissionService := service.NewSubmissionService(service.SubmissionDependencies{
		Transactor:      tx,
		Submissions:     submissionRepo,
		Progress:        progressRepo,
		Assignments:     assignmentRepo,
		AnswerKeys:      answerKeyRepo,
		Courses:         courseRepo,
		Uploads:         uploadService,
		Cache:           redisClient,
		Events:          publisher,
		Audit:           auditTrail,
		Validator:       validate,
		MaxAttempts:     cfg.SubmissionMaxAttempts,
		ConflictRetries: cfg.SubmissionConflictRetries,
	}, logger)
	progressService := service.NewProgressService(tx, progressRepo, courseRepo, redisClient, publisher, cfg.ProgressCacheTTL, cfg.SubmissionConflictRetries, logger)
	courseService := service.NewCourseService(tx, courseRepo, assignmentRepo, answerKeyRepo, progressRepo, redisClient, publisher, auditTrail, validate, cfg.SubmissionConflictRetries, logger)
	assignmentService := service.NewAssignmentService(assignmentRepo, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxSizeMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, CORSOrigins: cfg.CORSOrigins, AccessLog: os.Stdout})
	switch {
	case cfg.ServesLocalUploads():
		logger.Warn().Str("root", cfg.StorageFSRoot).Msg("serving filesystem uploads without authentication, development only")
		app.Static("/files", cfg.StorageFSRoot)
	case cfg.StorageDriver == config.StorageDriverFilesystem:
		logger.Warn().Str("env", cfg.AppEnv).Msg("filesystem storage outside development, uploads are stored but not served")
	}
	router.Register(app, cfg, router.Dependencies{
		SubmissionHandler: handler.NewSubmissionHandler(submissionService, logger),
		ProgressHandler:   handler.NewProgressHandler(progressService, logger),
		CourseHandler:     handler.NewCourseHandler(courseService, logger),
		AssignmentHandler: handler.NewAssignmentHandler(assignmentService, logger),
		ActivityHandler:   handler.NewActivityHandler(auditTrail, logger),
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
		SubmitRateLimit:   middleware.RateLimit("submissions", cfg.SubmissionRateLimit, cfg.SubmissionRateWindow),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func newObjectStorage(cfg config.Config, logger zerolog.Logger) (service.ObjectStorage, error) {
	if cfg.StorageDriver == config.StorageDriverFilesystem {
		return storage.NewFilesystem(cfg.StorageFSRoot, cfg.StoragePublicBaseURL, logger)
	}
	return storage.NewCloudinary(storage.CloudinaryConfig{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
