package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"document-analyzer-service/internal/config"
	"document-analyzer-service/internal/repository/postgresql"
	"document-analyzer-service/internal/service"
	"document-analyzer-service/internal/worker"
	"document-analyzer-service/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	zlog, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zlog.Sync()

	if cfg.Database.DSN == "" {
		zlog.Fatal("missing env: POSTGRES_DSN")
	}

	pool, err := postgresql.NewPool(ctx, cfg.Database.DSN)
	if err != nil {
		zlog.Fatal("postgres connect failed", zap.Error(err))
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		zlog.Fatal("redis connect failed", zap.Error(err))
	}

	repo := postgresql.NewDocumentRepository(pool)
	if err := repo.InitSchema(ctx); err != nil {
		zlog.Fatal("schema init failed", zap.Error(err))
	}

	dispatcher := service.NewRedisDispatcher(
		rdb,
		cfg.Redis.JobKeyPrefix,
		cfg.Redis.QueueKey,
		cfg.Redis.ProcessingKey,
		cfg.Redis.JobTTL,
	)

	// Reaper: returns claims stuck in the processing list back to the
	// queue (worker crash or restart).
	go func() {
		ticker := time.NewTicker(cfg.Worker.ReaperInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := dispatcher.RequeueStale(ctx, int64(cfg.Worker.ReaperBatch))
				if err != nil {
					zlog.Error("requeue failed", zap.Error(err))
					continue
				}
				if n > 0 {
					zlog.Info("requeued stale claims", zap.Int64("count", n))
				}
			}
		}
	}()

	processor := worker.NewProcessor(repo, zlog)
	workerPool := worker.NewPool(dispatcher, processor, cfg.Worker.Workers, zlog)

	zlog.Info("worker started",
		zap.Int("workers", cfg.Worker.Workers),
		zap.String("redis_addr", cfg.Redis.Addr),
		zap.String("queue_key", cfg.Redis.QueueKey),
		zap.String("postgres_dsn", config.RedactDSN(cfg.Database.DSN)),
	)
	workerPool.Run(ctx)

	zlog.Info("worker stopped")
}
