package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/examsecure/internal/config"
	"github.com/stemsi/examsecure/internal/database"
	"github.com/stemsi/examsecure/internal/handler"
	"github.com/stemsi/examsecure/internal/logger"
	"github.com/stemsi/examsecure/internal/metrics"
	"github.com/stemsi/examsecure/internal/repository"
	"github.com/stemsi/examsecure/internal/router"
	"github.com/stemsi/examsecure/internal/service"
	"github.com/stemsi/examsecure/internal/validator"
	"github.com/stemsi/examsecure/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Str("duplicate_policy", cfg.DuplicateAttemptPolicy).
		Msg("Starting ExamSecure server")

	validator.Setup()
	m := metrics.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Schema Bootstrap ──────────────────────────────────────────────
	// Only one of several starting instances applies migrations; the others skip.
	if cfg.AutoMigrate {
		applied, err := database.Bootstrap(ctx, pool, cfg, log)
		switch {
		case err != nil:
			m.MigrationRuns.WithLabelValues("failed").Inc()
			log.Fatal().Err(err).Msg("Schema bootstrap failed")
		case applied:
			m.MigrationRuns.WithLabelValues("applied").Inc()
		default:
			m.MigrationRuns.WithLabelValues("skipped").Inc()
		}
	}

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	userRepo := repository.NewUserRepository(pool)
	sessionRepo := repository.NewSessionRepository(rdb)
	examRepo := repository.NewExamRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	assignmentRepo := repository.NewAssignmentRepository(pool)
	rosterRepo := repository.NewRosterRepository(pool)
	examCache := repository.NewExamCacheRepository(rdb, cfg.ExamCacheTTL)
	monitorRepo := repository.NewMonitorRepository(pool, rdb)
	dashboardRepo := repository.NewDashboardRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, userRepo, sessionRepo)
	studentService := service.NewStudentService(userRepo, sessionRepo, log)
	examService := service.NewExamService(examRepo, questionRepo, assignmentRepo, examCache, cfg.JoinCodeLength, log)
	attemptService := service.NewAttemptService(attemptRepo, examRepo, questionRepo, assignmentRepo, cfg.DuplicateAttemptPolicy, m, log)
	rosterService := service.NewRosterService(rosterRepo, assignmentRepo, examRepo, log)
	monitorService := service.NewMonitorService(monitorRepo, m, log)
	dashboardService := service.NewDashboardService(dashboardRepo)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:          handler.NewAuthHandler(authService),
		StudentPortal: handler.NewStudentPortalHandler(examService, attemptService),
		StudentMgmt:   handler.NewStudentManagementHandler(studentService),
		Exam:          handler.NewExamHandler(examService, rosterService, attemptService, monitorService),
		Roster:        handler.NewRosterHandler(rosterService),
		WS:            handler.NewWSHandler(examService, monitorService, log, cfg.AllowedOrigins),
		Monitor:       handler.NewMonitorHandler(examService, attemptService, monitorService, log),
		Dashboard:     handler.NewDashboardHandler(dashboardService),
		Metrics:       m.Handler(),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	violationWorker := worker.NewViolationWorker(monitorRepo, monitorRepo, m, log)
	workers.Add(1)
	go func() {
		defer workers.Done()
		violationWorker.Start(workerCtx)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the violation worker and wait for its final flush.
	workerCancel()
	drained := make(chan struct{})
	go func() {
		workers.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(10 * time.Second):
		log.Warn().Msg("Violation worker did not drain in time")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
