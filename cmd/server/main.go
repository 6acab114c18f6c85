package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/examgate/examgate-backend/internal/config"
	"github.com/examgate/examgate-backend/internal/database"
	"github.com/examgate/examgate-backend/internal/examset"
	"github.com/examgate/examgate-backend/internal/handler"
	"github.com/examgate/examgate-backend/internal/logger"
	"github.com/examgate/examgate-backend/internal/repository"
	"github.com/examgate/examgate-backend/internal/router"
	"github.com/examgate/examgate-backend/internal/service"
	"github.com/examgate/examgate-backend/internal/validator"
	"github.com/examgate/examgate-backend/internal/worker"
)

func main() {
	cfg := config.Load()

	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ExamGate Backend")

	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	userRepo := repository.NewUserRepository(pool)
	subjectRepo := repository.NewSubjectRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	examSetRepo := repository.NewExamSetRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	proctorRepo := repository.NewProctorRepository(pool)

	authService := service.NewAuthService(cfg, userRepo, rdb)
	subjectService := service.NewSubjectService(subjectRepo)
	questionService := service.NewQuestionService(questionRepo, subjectService)
	examService := service.NewExamService(examRepo, examSetRepo, subjectService, examset.NewBuilder(questionRepo, nil), log)
	sessionService := service.NewSessionService(sessionRepo, examRepo, rdb, log)
	monitorService := service.NewMonitorService(rdb, log)
	attemptService := service.NewAttemptService(attemptRepo, sessionService, sessionRepo, examSetRepo, questionRepo, monitorService, log, nil)
	proctorService := service.NewProctorService(proctorRepo, attemptRepo, userRepo, sessionService, questionRepo, monitorService, rdb, log)

	handlers := &router.Handlers{
		Auth:     handler.NewAuthHandler(authService),
		Subject:  handler.NewSubjectHandler(subjectService),
		Question: handler.NewQuestionHandler(questionService),
		Exam:     handler.NewExamHandler(examService),
		Session:  handler.NewSessionHandler(sessionService, proctorService),
		Attempt:  handler.NewAttemptHandler(attemptService, proctorService),
		Proctor:  handler.NewProctorHandler(proctorService, sessionService),
		WS:       handler.NewWSHandler(proctorService, monitorService, log, cfg.AllowedOrigins),
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())

	violationWorker := worker.NewViolationWorker(proctorRepo, rdb, log)
	go violationWorker.Start(workerCtx)

	reconciler := worker.NewSessionReconciler(sessionService, cfg.SessionTickInterval, log)
	reconciler.Start(workerCtx)

	r := router.SetupRouter(authService, handlers, cfg)

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the reconciler and the violation worker, letting the
	// worker drain its queue.
	reconciler.Stop()
	workerCancel()
	time.Sleep(2 * time.Second)

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
