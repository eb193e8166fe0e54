package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hackhub/internal/account"
	"hackhub/internal/attendance"
	"hackhub/internal/auth"
	"hackhub/internal/config"
	"hackhub/internal/handler"
	"hackhub/internal/httpmiddleware"
	"hackhub/internal/idtoken"
	"hackhub/internal/logging"
	"hackhub/internal/queue"
	"hackhub/internal/reconcile"
	"hackhub/internal/session"
	"hackhub/internal/store"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Production())
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("refusing to start", "error", err)
		os.Exit(1)
	}
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
}

func runHTTP(cfg config.App, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	health := map[string]handler.HealthCheck{}

	var (
		users    account.Store
		attStore attendance.Store
	)
	switch cfg.StoreBackend {
	case "memory":
		users = account.NewMemoryStore()
		attStore = attendance.NewMemoryStore()
		logger.Warn("using in-memory store, data is lost on restart")
	default:
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if db == nil {
			return err
		}
		defer db.Close()
		if err != nil {
			logger.Warn("db not reachable, skipping migrations", "error", err)
		} else if err := db.Migrate(ctx); err != nil {
			return err
		}
		users = account.NewRepository(db.Client)
		attStore = attendance.NewRepository(db.Client)
		health["db"] = db.Healthy
	}

	var redisClient *store.Redis
	if cfg.SessionBackend != "memory" || cfg.QueueBackend != "memory" {
		redisClient = store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
		health["redis"] = redisClient.Healthy
	}

	var sessions session.Provider
	if cfg.SessionBackend == "memory" {
		sessions = session.NewMemoryProvider(cfg.SessionMaxAge)
	} else {
		sessions = session.NewRedisProvider(redisClient.Client, "hackhub", cfg.SessionMaxAge)
	}

	var (
		q     queue.Queue
		cache attendance.SummaryCache
	)
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "hackhub:attendance")
		cache = attendance.NewRedisSummaryCache(redisClient.Client, "hackhub", 10*time.Minute)
	}

	reconciler := reconcile.New(sessions, users)
	mw := auth.NewMiddleware(
		auth.NewIssuer(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.SessionTTL),
		sessions,
		reconciler,
		auth.CookieConfig{Name: cfg.SessionCookie, Secure: cfg.SecureCookies, RefreshWindow: cfg.SessionRefreshWindow},
	)
	att := attendance.NewService(attStore, users, idtoken.NewCodec(cfg.QRSigningKey, cfg.QRTokenTTL), q)
	summaries := attendance.NewSummaries(attStore, cache)

	if cfg.QueueBackend == "memory" {
		// No separate worker can see an in-process queue, so drain it here.
		go consume(ctx, q, summaries, logger)
	}

	ipLimiter := httpmiddleware.NewSimpleTokenBucket("ip", cfg.RateLimitPerMin, cfg.RateLimitPerMin, nil)
	scanLimiter := httpmiddleware.NewSimpleTokenBucket("scan", cfg.ScanRateLimitPerMin, cfg.ScanRateLimitPerMin, handler.ByOperator)
	go ipLimiter.Run(ctx, time.Minute)
	go scanLimiter.Run(ctx, time.Minute)

	h := handler.New(handler.Deps{
		Accounts:      account.NewService(users, sessions),
		Users:         users,
		Sessions:      sessions,
		Validator:     reconciler,
		Auth:          mw,
		Attendance:    att,
		Summaries:     summaries,
		WebhookSecret: cfg.WebhookSecret,
		ScanLimiter:   scanLimiter.GinMiddleware(),
		Health:        health,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(logging.GinMiddleware(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", logging.RequestIDHeader},
		ExposeHeaders:    []string{logging.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(securityHeaders())
	r.Use(ipLimiter.GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	h.Register(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.HTTPPort, "store", cfg.StoreBackend, "sessions", cfg.SessionBackend, "queue", cfg.QueueBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced shutdown", "error", err)
	}
	logger.Info("server exited")
	return nil
}

func consume(ctx context.Context, q queue.Queue, summaries *attendance.Summaries, logger *slog.Logger) {
	msgs, err := q.Consume(logging.ContextWithLogger(ctx, logger))
	if err != nil {
		logger.Error("queue consume init failed", "error", err)
		return
	}
	for msg := range msgs {
		if err := summaries.HandleMessage(ctx, msg); err != nil {
			logger.Warn("summary refresh failed", "type", msg.Type, "error", err)
		}
	}
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
