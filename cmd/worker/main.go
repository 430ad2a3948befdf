package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/osd-exam/backend-registration/internal/catalog"
	"github.com/osd-exam/backend-registration/internal/config"
	"github.com/osd-exam/backend-registration/internal/lock"
	"github.com/osd-exam/backend-registration/internal/obs"
	"github.com/osd-exam/backend-registration/internal/submission"
	"github.com/osd-exam/backend-registration/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := mustInitDatabase(ctx, cfg, logger)
	defer pool.Close()

	redisOpts := mustParseRedis(cfg, logger)
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	storeClient := catalog.NewClient(cfg.StoreBaseURL, cfg.StoreAPIKey, cfg.StoreTimeout, logger)
	loader := &catalog.Loader{Client: storeClient, Redis: redisClient, Lock: &lock.Locker{R: redisClient}, TTL: cfg.CatalogCacheTTL, Logger: logger}

	handler := &workflow.Handler{
		Store:     submission.NewPGStore(pool),
		Loader:    loader,
		Forwarder: workflow.NewForwarder(cfg.RegistrationWebhookURL, cfg.PaymentProofWebhookURL, cfg.WebhookTimeout, logger),
		Logger:    logger,
	}

	concurrency := envInt("WORKER_CONCURRENCY", 5)
	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisOpts.Addr, Password: redisOpts.Password, DB: redisOpts.DB},
		asynq.Config{
			Concurrency: concurrency,
			Queues:      map[string]int{workflow.Queue: 1},
			Logger:      asynqLogger{logger},
		},
	)

	go func() {
		<-ctx.Done()
		logger.Info().Msg("shutdown signal received")
		srv.Shutdown()
	}()

	logger.Info().Int("concurrency", concurrency).Msg("worker starting")
	if err := srv.Run(handler.Mux()); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped with error")
	}
	logger.Info().Msg("worker shutdown complete")
}

func mustInitDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
}

func mustParseRedis(cfg *config.Config, logger zerolog.Logger) *redis.Options {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	return redisOpts
}

// asynqLogger adapts zerolog to the asynq logging interface.
type asynqLogger struct {
	l zerolog.Logger
}

func (a asynqLogger) Debug(args ...any) { a.l.Debug().Msg(joinArgs(args)) }
func (a asynqLogger) Info(args ...any)  { a.l.Info().Msg(joinArgs(args)) }
func (a asynqLogger) Warn(args ...any)  { a.l.Warn().Msg(joinArgs(args)) }
func (a asynqLogger) Error(args ...any) { a.l.Error().Msg(joinArgs(args)) }
func (a asynqLogger) Fatal(args ...any) { a.l.Fatal().Msg(joinArgs(args)) }

func joinArgs(args []any) string {
	return strings.TrimSpace(fmt.Sprintln(args...))
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
