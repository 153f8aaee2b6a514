// Package main runs the background jobs and the periodic sweeps (event lifecycle, birthday ages, expired codes).
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/blanball/backend/config"
	"github.com/blanball/backend/internal/events"
	"github.com/blanball/backend/internal/fanout"
	"github.com/blanball/backend/internal/metrics"
	"github.com/blanball/backend/internal/notifications"
	"github.com/blanball/backend/internal/realtime"
	"github.com/blanball/backend/internal/scheduler"
	"github.com/blanball/backend/internal/users"
	"github.com/blanball/backend/internal/worker"
	"github.com/blanball/backend/pkg/database"
	"github.com/blanball/backend/pkg/queue"
	"github.com/blanball/backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		ApplicationName: "blanball-worker",
	}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// The worker has no sockets of its own; pushes go out over Redis to the server instances.
	hub := realtime.NewHub(logger, realtime.NewRedisPubSub(rdb.Client, logger))

	jobQueue := queue.NewQueue(rdb.Client, queue.Options{
		MaxRetries:   cfg.Worker.MaxRetries,
		RetryBackoff: cfg.Worker.RetryBackoff,
	}, logger)

	usersRepo := users.NewRepository(pool)
	notifRepo := notifications.NewRepository(pool)
	orchestrator := fanout.NewOrchestrator(notifRepo, usersRepo, jobQueue, logger)
	eventsSvc := events.NewService(events.NewRepository(pool), orchestrator, usersRepo, logger)
	notifSvc := notifications.NewService(notifRepo, orchestrator, jobQueue, logger)

	jobs := worker.NewPool(jobQueue, worker.Config{
		Concurrency: cfg.Worker.Concurrency,
		JobTimeout:  cfg.Worker.JobTimeout,
	}, logger)
	jobs.Handle(queue.JobTypePush, worker.PushHandler(hub))
	jobs.Handle(queue.JobTypeReadAll, notifSvc.HandleReadAll)
	jobs.Handle(queue.JobTypeDeleteAll, notifSvc.HandleDeleteAll)

	loc := cfg.Scheduler.Location()
	sched := scheduler.New(loc, logger)
	sched.Every("event_lifecycle", cfg.Scheduler.EventSweepInterval, func(ctx context.Context, now time.Time) error {
		_, err := eventsSvc.SweepLifecycle(ctx, now)
		return err
	})
	sched.Daily("birthday_ages", cfg.Scheduler.AgeSweepHour, 0, func(ctx context.Context, now time.Time) error {
		n, err := usersRepo.IncrementBirthdayAges(ctx, now.In(loc))
		if err == nil && n > 0 {
			logger.Info("birthday ages updated", zap.Int64("profiles", n))
		}
		return err
	})
	sched.Every("expired_codes", cfg.Scheduler.CodeSweepInterval, func(ctx context.Context, now time.Time) error {
		n, err := usersRepo.DeleteExpiredCodes(ctx, now)
		if err == nil && n > 0 {
			logger.Info("expired codes deleted", zap.Int64("codes", n))
		}
		return err
	})

	metricsSrv := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics listening", zap.String("addr", cfg.Metrics.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", zap.Error(err))
		}
	}()

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		jobs.Run(workerCtx)
	}()
	go func() {
		defer wg.Done()
		sched.Run(workerCtx)
	}()
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("worker did not stop in time")
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics shutdown", zap.Error(err))
	}
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
