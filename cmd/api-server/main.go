package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sdmydbr9/EVMR-sub000/internal/api"
	"github.com/sdmydbr9/EVMR-sub000/internal/booking"
	"github.com/sdmydbr9/EVMR-sub000/internal/config"
	"github.com/sdmydbr9/EVMR-sub000/internal/db"
	"github.com/sdmydbr9/EVMR-sub000/internal/policy"
	redisclient "github.com/sdmydbr9/EVMR-sub000/internal/redis"
	"github.com/sdmydbr9/EVMR-sub000/internal/schedule"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.Duration("lock_ttl", cfg.LockTTL),
		zap.Duration("slot_granularity", cfg.SlotGranularity),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("error closing redis", zap.Error(err))
		}
	}()
	logger.Info("connected to Redis")

	scheduleRepo := schedule.NewPgRepository(pgPool)
	bookingRepo := booking.NewPgRepository(pgPool)
	policyRepo := policy.NewPgRepository(pgPool)

	locker := redisclient.NewRedisResourceLocker(rdb, cfg.LockTTL)
	bookings := booking.NewService(bookingRepo, scheduleRepo, locker, cfg.SlotGranularity, logger)
	policies := policy.NewService(policyRepo, bookings, logger)

	router := api.NewRouter(api.RouterConfig{
		Bookings:   bookings,
		Policies:   policies,
		Schedules:  scheduleRepo,
		PolicyRepo: policyRepo,
		PgPool:     pgPool,
		Redis:      rdb,
		Logger:     logger,
		Env:        cfg.Env,
		Version:    version,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "prod" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
