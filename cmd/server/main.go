package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/blanball/backend/config"
	"github.com/blanball/backend/internal/auth"
	"github.com/blanball/backend/internal/events"
	"github.com/blanball/backend/internal/fanout"
	"github.com/blanball/backend/internal/metrics"
	"github.com/blanball/backend/internal/middleware"
	"github.com/blanball/backend/internal/notifications"
	"github.com/blanball/backend/internal/realtime"
	"github.com/blanball/backend/internal/reviews"
	"github.com/blanball/backend/internal/settings"
	"github.com/blanball/backend/internal/users"
	"github.com/blanball/backend/internal/worker"
	"github.com/blanball/backend/pkg/database"
	"github.com/blanball/backend/pkg/queue"
	"github.com/blanball/backend/pkg/redis"
	"github.com/blanball/backend/pkg/response"
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
		ApplicationName: "blanball-server",
	}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

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

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// Push channel: every instance subscribes through Redis, so a push queued anywhere reaches the socket.
	hub := realtime.NewHub(logger, realtime.NewRedisPubSub(rdb.Client, logger))

	usersRepo := users.NewRepository(pool)
	hub.SetPresenceHandler(users.PresenceTracker(usersRepo, logger))

	jobQueue := queue.NewQueue(rdb.Client, queue.Options{
		MaxRetries:   cfg.Worker.MaxRetries,
		RetryBackoff: cfg.Worker.RetryBackoff,
	}, logger)

	notifRepo := notifications.NewRepository(pool)
	orchestrator := fanout.NewOrchestrator(notifRepo, usersRepo, jobQueue, logger)

	eventsSvc := events.NewService(events.NewRepository(pool), orchestrator, usersRepo, logger)
	eventsHandler := events.NewHandler(eventsSvc)

	notifSvc := notifications.NewService(notifRepo, orchestrator, jobQueue, logger)
	notifHandler := notifications.NewHandler(notifSvc)

	reviewsSvc := reviews.NewService(reviews.NewRepository(pool), usersRepo, orchestrator, logger)
	reviewsHandler := reviews.NewHandler(reviewsSvc)

	settingsSvc := settings.NewService(settings.NewRepository(pool), orchestrator, cfg.App.Version, logger)
	settingsHandler := settings.NewHandler(settingsSvc)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			logger.Warn("health: postgres", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, response.Body{Error: "postgres unavailable"})
			return
		}
		if err := rdb.Healthy(c.Request.Context()); err != nil {
			logger.Warn("health: redis", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, response.Body{Error: "redis unavailable"})
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/maintenance", settingsHandler.GetMaintenance)
	router.GET("/version", settingsHandler.Version)

	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.POST("/maintenance", middleware.RequireRole("admin"), settingsHandler.SetMaintenance)

		api.POST("/events", eventsHandler.Create)
		api.GET("/events", eventsHandler.List)
		api.POST("/events/delete", eventsHandler.BulkDelete)
		api.GET("/events/:id", eventsHandler.Get)
		api.PUT("/events/:id", eventsHandler.Update)
		api.DELETE("/events/:id", eventsHandler.Delete)
		api.POST("/events/:id/join", eventsHandler.Join)
		api.POST("/events/:id/leave", eventsHandler.Leave)
		api.POST("/events/:id/spectate", eventsHandler.Spectate)
		api.POST("/events/:id/unspectate", eventsHandler.Unspectate)
		api.POST("/events/:id/remove", eventsHandler.RemoveMember)
		api.POST("/events/:id/invites", eventsHandler.Invite)

		api.GET("/invites", eventsHandler.ListInvites)
		api.POST("/invites/respond", eventsHandler.RespondInvites)
		api.GET("/requests", eventsHandler.ListRequests)
		api.POST("/requests/respond", eventsHandler.RespondRequests)

		api.GET("/notifications", notifHandler.List)
		api.GET("/notifications/count", notifHandler.Count)
		api.POST("/notifications/read", notifHandler.Read)
		api.POST("/notifications/delete", notifHandler.Delete)
		api.POST("/notifications/read-all", notifHandler.ReadAll)
		api.DELETE("/notifications", notifHandler.DeleteAll)

		api.POST("/reviews", reviewsHandler.Create)
		api.GET("/reviews/mine", reviewsHandler.Mine)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws/notifications", realtime.ServeNotifications(hub, logger, jwtService.ValidateToken))
	router.GET("/ws/general", realtime.ServeGeneral(hub, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	workerDone := make(chan struct{})
	if cfg.Worker.Inline {
		jobs := worker.NewPool(jobQueue, worker.Config{
			Concurrency: cfg.Worker.Concurrency,
			JobTimeout:  cfg.Worker.JobTimeout,
		}, logger)
		jobs.Handle(queue.JobTypePush, worker.PushHandler(hub))
		jobs.Handle(queue.JobTypeReadAll, notifSvc.HandleReadAll)
		jobs.Handle(queue.JobTypeDeleteAll, notifSvc.HandleDeleteAll)
		go func() {
			defer close(workerDone)
			jobs.Run(workerCtx)
		}()
		logger.Info("inline job worker started", zap.Int("concurrency", cfg.Worker.Concurrency))
	} else {
		close(workerDone)
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	workerCancel()
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		logger.Warn("job worker did not stop in time")
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
