package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"smartclinic/api/internal/cache"
	"smartclinic/api/internal/config"
	"smartclinic/api/internal/database"
	"smartclinic/api/internal/handlers"
	"smartclinic/api/internal/jobs"
	"smartclinic/api/internal/log"
	"smartclinic/api/internal/repository"
	"smartclinic/api/internal/security"
	"smartclinic/api/internal/server"
	"smartclinic/api/internal/service"
	"smartclinic/api/internal/session"
	"smartclinic/api/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment)

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	if err := database.Migrate(ctx, dbPool, "db/migrations/001_init.sql"); err != nil {
		logger.Warn().Err(err).Msg("migration failed")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	photoStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}
	if err := photoStore.EnsureBucket(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure bucket failed")
	}

	principals := repository.NewPrincipalRepository(dbPool)
	appointments := repository.NewAppointmentRepository(dbPool)
	auditLogs := repository.NewAuditRepository(dbPool)

	codec := security.NewCodec(cfg.Security.JWTSecret, cfg.Security.TokenTTL)
	sessions := session.NewRedisStore(redisClient, cfg.Security.SessionTTL)

	authService := service.NewAuthService(principals, auditLogs, codec, logger)
	appointmentService := service.NewAppointmentService(appointments, auditLogs, logger)

	handlerSet := handlers.NewHandlerSet(
		logger, cfg,
		authService, appointmentService,
		sessions, auditLogs, photoStore,
		dbPool, redisClient,
	)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet, authService, sessions)

	scheduler := jobs.NewScheduler(appointmentService, auditLogs, cfg.Jobs, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	scheduler.Stop()

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}
