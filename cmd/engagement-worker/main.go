package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bookhaven/bookhaven-backend/internal/engagement"
	"github.com/bookhaven/bookhaven-backend/internal/notifications"
	"github.com/bookhaven/bookhaven-backend/internal/users"
	"github.com/bookhaven/bookhaven-backend/pkg/config"
	"github.com/bookhaven/bookhaven-backend/pkg/db"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
	"github.com/bookhaven/bookhaven-backend/pkg/metrics"
	"github.com/bookhaven/bookhaven-backend/pkg/migrate"
	"github.com/bookhaven/bookhaven-backend/pkg/outbox"
	"github.com/bookhaven/bookhaven-backend/pkg/workflow"
)

const workerName = "engagement"

func main() {
	logg := logger.New(logger.Options{ServiceName: "engagement-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "engagement-worker"

	logg = logger.New(logger.Options{
		ServiceName: "engagement-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	usersRepo := users.NewRepository(dbClient.DB())
	notificationsRepo := notifications.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	mailer, err := notifications.NewMailer(notificationsRepo, dbClient, outboxService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification mailer", err)
		os.Exit(1)
	}

	engine, err := workflow.NewEngine(workflow.EngineParams{
		Store:           workflow.NewRepository(dbClient.DB()),
		Logger:          logg,
		MaxStepAttempts: cfg.Engagement.MaxStepAttempts,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create workflow engine", err)
		os.Exit(1)
	}

	workflows, err := engagement.NewWorkflows(engagement.WorkflowsParams{
		Users:         usersRepo,
		Mailer:        mailer,
		WelcomeDelay:  cfg.Engagement.WelcomeDelay,
		CheckInterval: cfg.Engagement.CheckInterval,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create engagement workflows", err)
		os.Exit(1)
	}
	workflows.Register(engine)

	workflowMetrics := metrics.NewWorkflowMetrics(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting engagement worker")

	if err := runLoop(ctx, cfg, logg, engine, workflowMetrics); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "engagement worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "engagement worker shutting down gracefully")
}

func runLoop(ctx context.Context, cfg *config.Config, logg *logger.Logger, engine *workflow.Engine, workflowMetrics *metrics.WorkflowMetrics) error {
	interval := cfg.Engagement.PollInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	batchSize := cfg.Engagement.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		start := time.Now()
		processed, err := engine.ProcessDue(ctx, batchSize)
		workflowMetrics.ObserveCycle(workerName, time.Since(start))
		if err != nil {
			workflowMetrics.IncCycleFailure(workerName)
			logg.Error(ctx, "workflow poll cycle failed", err)
		} else if processed > 0 {
			workflowMetrics.AddRunsProcessed(workerName, processed)
			logg.Info(logg.WithField(ctx, "runs_processed", processed), "workflow runs replayed")
		}

		select {
		case <-ctx.Done():
			logg.Info(ctx, "engagement worker context canceled")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
