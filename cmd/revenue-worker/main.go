package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"revenued/internal/amqp"
	"revenued/internal/config"
	"revenued/internal/core"
	"revenued/internal/dispatch"
	"revenued/internal/export"
	gsheet "revenued/internal/export/google"
	"revenued/internal/recalc"
	"revenued/internal/reconcile"
	"revenued/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting revenue-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional monthly report export
	var exporter *export.Exporter
	if cfg.ExportEnabled() {
		sheetsClient, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleReportSheet)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		exporter = export.NewExporter(repo, sheetsClient)
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	reconciler := reconcile.New(repo, repo, repo)
	rebuilder := recalc.NewRebuilder(repo)

	handleEvent := func(ctx context.Context, ev core.InvoiceEvent) error {
		err := reconciler.Reconcile(ctx, ev)
		if errors.Is(err, reconcile.ErrInvalidEvent) {
			return fmt.Errorf("%w: %v", amqp.ErrUnprocessable, err)
		}
		return err
	}

	dispatcher := dispatch.New()
	dispatcher.Register(amqp.RoutingKeyCreated, handleEvent)
	dispatcher.Register(amqp.RoutingKeyUpdated, handleEvent)
	dispatcher.Register(amqp.RoutingKeyDeleted, handleEvent)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.RecalcSchedule, func() {
		if _, err := rebuilder.RebuildRecent(ctx, time.Now().UTC(), cfg.RecalcMonths); err != nil {
			logger.Error("Scheduled recalculation failed", "error", err)
		}
	}); err != nil {
		logger.Error("Invalid recalc schedule", "error", err, "schedule", cfg.RecalcSchedule)
		os.Exit(1)
	}
	if _, err := scheduler.AddFunc(cfg.DedupePurgeSchedule, func() {
		cutoff := time.Now().UTC().Add(-cfg.DedupeTTL)
		if _, err := repo.PurgeProcessedBefore(ctx, cutoff); err != nil {
			logger.Error("Dedupe ledger purge failed", "error", err)
		}
	}); err != nil {
		logger.Error("Invalid dedupe purge schedule", "error", err, "schedule", cfg.DedupePurgeSchedule)
		os.Exit(1)
	}
	if exporter != nil {
		if _, err := scheduler.AddFunc(cfg.ExportSchedule, func() {
			if err := exporter.ExportClosedMonth(ctx, time.Now().UTC()); err != nil {
				logger.Error("Monthly report export failed", "error", err)
			}
		}); err != nil {
			logger.Error("Invalid export schedule", "error", err, "schedule", cfg.ExportSchedule)
			os.Exit(1)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := amqpClient.Consume(ctx, dispatcher.Dispatch)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		scheduler.Start()
		<-ctx.Done()
		stopCtx := scheduler.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(30 * time.Second):
			logger.Warn("Timed out waiting for scheduled jobs to finish")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker terminated with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
