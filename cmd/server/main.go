package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	webAdapter "github.com/arunteja30/poultry-tracker/internal/adapters/web"
	"github.com/arunteja30/poultry-tracker/internal/ai"
	"github.com/arunteja30/poultry-tracker/internal/app"
	"github.com/arunteja30/poultry-tracker/internal/config"
	"github.com/arunteja30/poultry-tracker/internal/core"
	"github.com/arunteja30/poultry-tracker/internal/db"
	"github.com/arunteja30/poultry-tracker/internal/logger"
	"github.com/arunteja30/poultry-tracker/internal/metrics"
	"github.com/arunteja30/poultry-tracker/internal/notify"
	"github.com/arunteja30/poultry-tracker/internal/scheduler"
)

func main() {
	zlog := logger.Must(logger.New())
	defer func() { _ = zlog.Sync() }()

	cfg, err := config.Load("")
	if err != nil {
		zlog.Fatal("configuration error", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		zlog.Fatal("database connection failed", zap.Error(err))
	}
	defer pool.Close()

	registry := prometheus.NewRegistry()
	m, err := metrics.New(registry)
	if err != nil {
		zlog.Fatal("metrics registration failed", zap.Error(err))
	}

	engineCfg := core.EngineConfig{
		BagWeightKg:           cfg.Farm.BagWeightKg,
		ChickStartWeightKg:    cfg.Farm.ChickStartWeightGrams / 1000,
		LowStockThresholdBags: cfg.Farm.LowStockThresholdBags,
		TargetCycleDays:       cfg.Farm.TargetCycleDays,
		FeedCostPerBag:        cfg.Costs.FeedCostPerBag,
	}

	entries := core.NewEntryService(pool, engineCfg)
	cycles := core.NewCycleService(pool)
	reporting := core.NewReportingService(pool, engineCfg)
	svcs := app.Services{
		Users:      core.NewUserService(pool),
		Cycles:     cycles,
		Entries:    entries,
		Feed:       core.NewFeedService(pool, engineCfg),
		Costs:      core.NewCostsService(pool),
		Dispatches: core.NewDispatchService(pool),
		Reporting:  reporting,
		Importer:   core.NewImportService(entries),
	}

	var parser ai.ReportParser
	if cfg.AI.OpenAIKey != "" {
		parser = ai.NewAgent(cfg.AI.OpenAIKey)
	} else {
		zlog.Warn("OPENAI_API_KEY is not set; report parsing is disabled")
	}

	svc := app.NewAppService(pool, svcs, parser, m, cfg.Costs)

	var notifier notify.Notifier = notify.Nop{}
	if cfg.Notify.WebhookURL != "" {
		notifier = notify.NewWebhookClient(cfg.Notify.WebhookURL)
	} else {
		zlog.Info("ALERT_WEBHOOK_URL is not set; reminder alerts are disabled")
	}

	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		zlog.Fatal("invalid TIMEZONE", zap.String("timezone", cfg.Scheduler.Timezone), zap.Error(err))
	}
	sched := scheduler.New(cfg.Scheduler.ReminderCron, loc, cycles, reporting, notifier, logger.Named(zlog, "scheduler"))
	if err := sched.Start(); err != nil {
		zlog.Fatal("scheduler start failed", zap.Error(err))
	}
	defer sched.Stop()

	handler := webAdapter.NewHandler(svc, zlog, m, registry, cfg.Server.AllowedOrigins, cfg.Auth.JWTSecret)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("server starting", zap.String("port", cfg.Server.Port))
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server failed", zap.Error(err))
		}
	case sig := <-sigCh:
		zlog.Info("shutting down", zap.String("signal", sig.String()))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zlog.Error("graceful shutdown failed", zap.Error(err))
		}
	}
}
