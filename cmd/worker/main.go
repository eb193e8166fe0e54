package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hackhub/internal/attendance"
	"hackhub/internal/config"
	"hackhub/internal/logging"
	"hackhub/internal/queue"
	"hackhub/internal/store"
)

// Worker consumes attendance.marked messages and refreshes per-schedule summaries.
func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Production())
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(logging.ContextWithLogger(context.Background(), logger))
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	if cfg.QueueBackend == "memory" {
		logger.Error("worker needs a shared queue; the memory backend is drained by the api process")
		os.Exit(1)
	}

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		logger.Error("db migrate failed", "error", err)
		os.Exit(1)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	q := queue.NewRedisQueue(redisClient.Client, "hackhub:attendance")
	summaries := attendance.NewSummaries(
		attendance.NewRepository(db.Client),
		attendance.NewRedisSummaryCache(redisClient.Client, "hackhub", 10*time.Minute),
	)

	messages, err := q.Consume(ctx)
	if err != nil {
		logger.Error("queue consume init failed", "error", err)
		os.Exit(1)
	}

	logger.Info("worker started, waiting for messages")
	for msg := range messages {
		if err := summaries.HandleMessage(ctx, msg); err != nil {
			logger.Warn("summary refresh failed", "type", msg.Type, "error", err)
			continue
		}
		logger.Debug("summary refreshed", "type", msg.Type)
	}
	logger.Info("worker stopped")
}
