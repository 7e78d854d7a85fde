package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"spendsight/internal/amqp"
	"spendsight/internal/apiserver"
	"spendsight/internal/cli"
	"spendsight/internal/log"
	"spendsight/internal/storage"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig()

	if err := cfg.EnsureDataDirs(); err != nil {
		logger.Error("Failed to create data directories", log.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, logger)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}

	var notifier apiserver.Notifier
	var broker *amqp.Client
	if cfg.AMQPURL != "" {
		broker, err = amqp.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Warn("AMQP notifications disabled", log.FieldError, err)
		} else {
			notifier = broker
		}
	}

	srv := apiserver.NewServer(apiserver.Config{
		Addr:            ":" + cfg.APIPort,
		UploadDir:       cfg.UploadDir,
		Source:          "expense-api",
		WritesPerMinute: cfg.WriteRateLimit,
	}, repo, notifier, logger)
	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if broker != nil {
			_ = broker.Close()
		}
		if err := repo.Close(); err != nil {
			logger.Warn("Failed to close SQLite repository", log.FieldError, err)
		}
	})

	logger.Info("Starting expense API",
		"port", cfg.APIPort,
		"db", cfg.SQLiteDBPath,
		"upload_dir", cfg.UploadDir)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.APIPort)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Expense API stopped gracefully")
}
