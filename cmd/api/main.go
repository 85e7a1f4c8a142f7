package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"document-analyzer-service/internal/config"
	"document-analyzer-service/internal/repository/postgresql"
	"document-analyzer-service/internal/service"
	httptransport "document-analyzer-service/internal/transport/http"
	"document-analyzer-service/pkg/logger"
)

// @title Financial Document Analyzer
// @version 1.0
// @description Upload financial documents and query extraction status/results.
// @BasePath /
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

	if err := os.MkdirAll(cfg.Storage.UploadDir, 0o755); err != nil {
		zlog.Fatal("upload dir", zap.Error(err))
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
	docSvc := service.NewDocumentService(repo, dispatcher, cfg.Storage.UploadDir, zlog)

	handler := httptransport.NewHandler(docSvc)
	srv := &http.Server{
		Addr:         cfg.Server.HTTPAddr,
		Handler:      httptransport.Routes(handler, zlog),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		zlog.Info("api started",
			zap.String("addr", cfg.Server.HTTPAddr),
			zap.String("upload_dir", cfg.Storage.UploadDir),
			zap.String("postgres_dsn", config.RedactDSN(cfg.Database.DSN)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("shutdown", zap.Error(err))
	}
	zlog.Info("api stopped")
}
