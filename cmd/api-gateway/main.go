package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-timetable-api/api/swagger"
	"github.com/noah-isme/sma-timetable-api/internal/handler"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/cache"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	"github.com/noah-isme/sma-timetable-api/pkg/firebase"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
	"github.com/noah-isme/sma-timetable-api/pkg/storage"
)

// @title SMA Timetable API
// @version 1.0.0
// @description Weekly class timetable generation, editing and export
// @BasePath /
// @schemes http

type timetableSource interface {
	ListCourses(ctx context.Context) ([]models.Course, error)
	TeacherDirectory(ctx context.Context) (models.TeacherDirectory, error)
	CourseTeachers(ctx context.Context) (models.CourseTeacherMap, error)
	LoadSchedule(ctx context.Context) (models.Schedule, error)
	SaveSchedule(ctx context.Context, schedule models.Schedule) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	source, jobStore, closeStore, err := openStore(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to open timetable store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer closeStore()

	var cacheSvc *service.CacheService
	if cfg.Reference.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, reference cache disabled", zap.Error(err))
		} else {
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close() //nolint:errcheck
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Reference.CacheTTL, logr, true)
		}
	}

	store := service.NewScheduleStore(source, cacheSvc, metricsSvc, logr, service.ScheduleStoreConfig{CacheTTL: cfg.Reference.CacheTTL})
	store.Load(ctx)

	timetableSvc := service.NewTimetableService(store, service.NewRandomSource(cfg.Generator.Seed), validate, metricsSvc, logr, service.TimetableServiceConfig{
		SessionTTL: cfg.Sessions.TTL,
	})
	timetableSvc.StartSessionSweeper(ctx, cfg.Sessions.TTL/4)

	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
		Audience:          cfg.JWT.Audience,
	})

	var (
		exportHandler *handler.TimetableExportHandler
		exportQueue   *jobs.Queue
	)
	if cfg.Exports.Enabled {
		exportHandler, exportQueue, err = setupExports(ctx, cfg, store, timetableSvc, jobStore, validate, metricsSvc, logr)
		if err != nil {
			logr.Fatal("failed to set up exports", zap.Error(err))
		}
	}

	r := gin.New()
	registerRoutes(r, routeDeps{
		cfg:       cfg,
		logger:    logr,
		metrics:   metricsSvc,
		auth:      authSvc,
		timetable: handler.NewTimetableHandler(timetableSvc),
		exports:   exportHandler,
		health:    handler.NewMetricsHandler(metricsSvc, store),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
	if exportQueue != nil {
		exportQueue.Stop()
	}
	logr.Info("server stopped")
}

// openStore connects the configured timetable driver and picks the export job
// repository that lives next to it.
func openStore(ctx context.Context, cfg *config.Config, logr *zap.Logger) (timetableSource, service.ExportJobStore, func(), error) {
	noop := func() {}
	switch cfg.Store.Driver {
	case config.StoreFirebase:
		rtdb, err := firebase.NewRealtimeDB(ctx, cfg.Firebase)
		if err != nil {
			return nil, nil, noop, err
		}
		return repository.NewFirebaseTimetableRepository(rtdb), repository.NewMemoryExportJobRepository(), noop, nil
	case config.StorePostgres:
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			return nil, nil, noop, err
		}
		closeDB := func() {
			if err := db.Close(); err != nil {
				logr.Warn("close database", zap.Error(err))
			}
		}
		return repository.NewPostgresTimetableRepository(db), repository.NewExportJobRepository(db), closeDB, nil
	default:
		seed, err := loadSeed(cfg.Store.SeedFile)
		if err != nil {
			return nil, nil, noop, err
		}
		return repository.NewMemoryTimetableRepository(seed), repository.NewMemoryExportJobRepository(), noop, nil
	}
}

func loadSeed(path string) (models.ReferenceData, error) {
	if path == "" {
		return models.ReferenceData{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return models.ReferenceData{}, fmt.Errorf("read seed file: %w", err)
	}
	var seed models.ReferenceData
	if err := json.Unmarshal(raw, &seed); err != nil {
		return models.ReferenceData{}, fmt.Errorf("decode seed file: %w", err)
	}
	return seed, nil
}

func setupExports(
	ctx context.Context,
	cfg *config.Config,
	store *service.ScheduleStore,
	timetableSvc *service.TimetableService,
	jobStore service.ExportJobStore,
	validate *validator.Validate,
	metricsSvc *service.MetricsService,
	logr *zap.Logger,
) (*handler.TimetableExportHandler, *jobs.Queue, error) {
	fileStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return nil, nil, fmt.Errorf("init export storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exporter := service.NewExportService(store, fileStore, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr, service.ExportRenderers{})

	worker := service.NewExportWorker(jobStore, exporter, metricsSvc, cfg.Exports.WorkerRetries, logr)
	queue := jobs.NewQueue("timetable-exports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		Logger:     logr,
	})
	queue.Start(ctx)

	exportSvc := service.NewTimetableExportService(jobStore, queue, exporter, validate, metricsSvc, logr, service.TimetableExportConfig{
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
	})
	exportSvc.RecoverPendingJobs(ctx)
	exportSvc.StartCleanup(ctx)

	return handler.NewTimetableExportHandler(exportSvc, timetableSvc), queue, nil
}
