package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/umworks/aurora-sync/api/swagger"
	"github.com/umworks/aurora-sync/internal/aurora"
	"github.com/umworks/aurora-sync/internal/handler"
	"github.com/umworks/aurora-sync/internal/repository"
	"github.com/umworks/aurora-sync/internal/service"
	"github.com/umworks/aurora-sync/pkg/cache"
	"github.com/umworks/aurora-sync/pkg/config"
	"github.com/umworks/aurora-sync/pkg/database"
	"github.com/umworks/aurora-sync/pkg/jobs"
	"github.com/umworks/aurora-sync/pkg/logger"
	"github.com/umworks/aurora-sync/pkg/storage"
)

// @title Aurora Sync API
// @version 1.0.0
// @description Course registration reconciliation against registrar extracts
// @BasePath /api/v1
// @schemes http

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	store, err := storage.NewLocalStorage(cfg.Imports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init import storage", "error", err)
	}

	people := repository.NewPersonRepository(db)
	students := repository.NewStudentRepository(db)
	courses := repository.NewCourseRepository(db)
	terms := repository.NewTermRepository(db)
	sections := repository.NewSectionRepository(db)
	registrations := repository.NewRegistrationRepository(db)
	history := repository.NewHistoryRepository(db)
	audit := repository.NewAuditRepository(db)
	importJobs := repository.NewImportJobRepository(db)
	clickers := repository.NewClickerRepository(db)
	users := repository.NewUserRepository(db)

	var cacheRepo *repository.CacheRepository
	if redisClient, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
	} else {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		defer redisClient.Close() //nolint:errcheck
	}

	metrics := service.NewMetricsService()

	runner := service.NewAuroraRunner(
		people, students, courses, terms, sections, registrations, history, audit,
		aurora.DomainUsernames(cfg.Aurora.UsernameDomains),
		aurora.DomainEmailTypes(cfg.Aurora.WorkEmailDomains),
		cfg.Aurora.HistoryAdminMirror,
		logr,
	)

	var invalidator interface {
		DeleteByPattern(ctx context.Context, pattern string) error
	}
	if cacheRepo != nil {
		invalidator = cacheRepo
	}
	importSvc := service.NewImportService(db, runner, sections, importJobs, store, invalidator, metrics, nil, logr)
	queue := jobs.NewQueue("extract-imports", importSvc.ProcessQueued, jobs.QueueConfig{
		Workers:    cfg.Imports.WorkerConcurrency,
		MaxRetries: cfg.Imports.WorkerRetries,
		Logger:     logr,
	})
	importSvc.AttachQueue(queue)
	queue.Start(ctx)
	defer queue.Stop()

	var auditStore aurora.AuditStore
	if cfg.Aurora.HistoryAdminMirror {
		auditStore = audit
	}
	recorder := aurora.NewRecorder(history, auditStore, logr)

	var websync service.ClickerWebsync
	if cfg.Clicker.WebsyncURL != "" {
		websync = service.NewWebsyncClient(cfg.Clicker.WebsyncURL, cfg.Clicker.WebsyncTimeout, logr)
	}
	findSvc := service.NewFindService(students, clickers, registrations, history, recorder, websync, logr)

	exportSvc := service.NewExportService(sections, registrations, logr)
	authSvc := service.NewAuthService(users, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
	}, nil, logr)

	deps := handler.Dependencies{
		Config:  cfg,
		Logger:  logr,
		DB:      db,
		Auth:    authSvc,
		Imports: importSvc,
		Find:    findSvc,
		Exports: exportSvc,
		Metrics: metrics,
	}
	if cacheRepo != nil {
		deps.Cache = cacheRepo
	}
	router := handler.NewRouter(deps)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
}
