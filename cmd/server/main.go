package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/config"
	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/database"
	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/handler"
	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/logger"
	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/repository"
	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/router"
	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/service"
	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/session"
	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/validator"
	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/worker"
	"github.com/rs/zerolog"
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
		Msg("Starting Examwizards Session Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	userRepo := repository.NewUserRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb)
	userService := service.NewUserService(userRepo)
	examService := service.NewExamService(examRepo, rdb, log)
	attemptService := service.NewAttemptService(attemptRepo, examService, rdb, log)

	// ─── Initialize Session Registry ──────────────────────────────────
	// One live machine per (exam, user) pair; handlers create and
	// consult them, the registry owns the map.
	registry := session.NewRegistry()

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:    handler.NewAuthHandler(authService, userService),
		Attempt: handler.NewAttemptHandler(attemptService, registry, log),
		WS:      handler.NewWSHandler(registry, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	autosaveWorker := worker.NewAutosaveWorker(pool, rdb, log)
	violationWorker := worker.NewViolationWorker(pool, rdb, log)
	resultWorker := worker.NewResultWorker(pool, rdb, log)

	go autosaveWorker.Start(workerCtx)
	go violationWorker.Start(workerCtx)
	go resultWorker.Start(workerCtx)

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load all published exam definitions and answer keys into Redis
	// BEFORE accepting traffic. This avoids race conditions from lazy
	// loading under thundering herd.
	if err := examService.Prewarm(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
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

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
