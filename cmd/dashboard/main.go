package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"spendsight/internal/amqp"
	"spendsight/internal/api"
	"spendsight/internal/cli"
	"spendsight/internal/dashboard"
	"spendsight/internal/events"
	apphttp "spendsight/internal/http"
	"spendsight/internal/log"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig()

	source := "dashboard-" + uuid.NewString()[:8]
	client := api.New(cfg.APIBaseURL, cfg.RequestTimeout,
		api.WithLogger(logger),
		api.WithSettingsCache(cfg.ViewCacheTTL))

	bus := events.NewBus()
	dash := dashboard.New(client, bus, dashboard.Options{
		Role:               cfg.DashboardRole,
		PollInterval:       cfg.PollInterval,
		RequestTimeout:     cfg.RequestTimeout,
		RecentAnomalyLimit: cfg.RecentAnomalyLimit,
	}, logger)

	srv := apphttp.NewServer(apphttp.Config{
		Addr:            ":" + cfg.Port,
		ViewCacheTTL:    cfg.ViewCacheTTL,
		Source:          source,
		WritesPerMinute: cfg.WriteRateLimit,
	}, dash, client, logger)
	srv.ReadTimeout = 15 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	var broker *amqp.Client
	if cfg.AMQPURL != "" {
		c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			// The bridge is optional; local refreshes still work without it.
			logger.Warn("AMQP bridge disabled", log.FieldError, err)
		} else {
			broker = c
		}
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := dash.Stop(shutdownCtx); err != nil {
			logger.Warn("Dashboard stop error", log.FieldError, err)
		}
		bus.Close()
		if broker != nil {
			_ = broker.Close()
		}
	})

	if err := dash.Start(ctx); err != nil {
		logger.Error("Failed to start dashboard", log.FieldError, err)
		os.Exit(1)
	}
	if broker != nil {
		bridge := amqp.NewBridge(broker, bus, source, logger)
		go func() {
			if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("AMQP bridge stopped", log.FieldError, err)
			}
		}()
		logger.Info("AMQP bridge enabled", "exchange", cfg.AMQPExchange)
	}

	logger.Info("Starting dashboard server",
		"port", cfg.Port,
		"api_base_url", cfg.APIBaseURL,
		"role", cfg.DashboardRole,
		"source", source)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Dashboard stopped gracefully")
}
