package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/topiclab/mastery/internal/api"
	"github.com/topiclab/mastery/internal/config"
	"github.com/topiclab/mastery/internal/domain"
	"github.com/topiclab/mastery/internal/store"
	"go.uber.org/zap"
)

func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	if err := config.Load(); err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx := context.Background()

	topics, err := store.NewFileStore(config.MemoryRoot(), logger)
	if err != nil {
		logger.Fatal("failed to open memory root", zap.Error(err))
	}
	logger.Info("memory root ready", zap.String("path", config.MemoryRoot()))

	// The Postgres archive is optional; without it, stage queries scan
	// the file tree and pruned claims live only in the claim index.
	var archive domain.ArchiveStore
	if dbURL := config.DatabaseURL(); dbURL != "" {
		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			logger.Fatal("failed to connect to archive database", zap.Error(err))
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			logger.Fatal("failed to ping archive database", zap.Error(err))
		}

		pg := store.NewPostgresArchive(pool)
		if err := pg.Migrate(ctx); err != nil {
			logger.Fatal("failed to migrate archive schema", zap.Error(err))
		}
		archive = pg
		logger.Info("connected to archive database")
	}

	app := api.NewApp(topics, archive, logger)

	addr := config.ServerAddr()
	srv := &http.Server{
		Addr:    addr,
		Handler: app.Router,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
