package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/bookhaven/bookhaven-backend/internal/analytics"
	"github.com/bookhaven/bookhaven-backend/internal/notifications"
	"github.com/bookhaven/bookhaven-backend/pkg/bigquery"
	"github.com/bookhaven/bookhaven-backend/pkg/config"
	"github.com/bookhaven/bookhaven-backend/pkg/db"
	"github.com/bookhaven/bookhaven-backend/pkg/email"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
	"github.com/bookhaven/bookhaven-backend/pkg/outbox/idempotency"
	"github.com/bookhaven/bookhaven-backend/pkg/pubsub"
	"github.com/bookhaven/bookhaven-backend/pkg/redis"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "failed to close database client", err)
		}
	}()

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "failed to close redis client", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "failed to close pubsub client", err)
		}
	}()

	bqClient, err := bigquery.NewClient(context.Background(), cfg.GCP, cfg.BigQuery, logg)
	requireResource(ctx, logg, "bigquery client", err)
	defer func() {
		if err := bqClient.Close(); err != nil {
			logg.Error(ctx, "failed to close bigquery client", err)
		}
	}()

	emailClient, err := email.NewClient(context.Background(), cfg.Email, logg)
	requireResource(ctx, logg, "email client", err)

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	notificationSub := pubsubClient.NotificationSubscription()
	if notificationSub == nil {
		requireResource(ctx, logg, "notification subscription", errors.New("subscription not configured"))
	}
	analyticsSub := pubsubClient.AnalyticsSubscription()
	if analyticsSub == nil {
		requireResource(ctx, logg, "analytics subscription", errors.New("subscription not configured"))
	}

	notificationConsumer, err := notifications.NewConsumer(
		notifications.NewRepository(dbClient.DB()),
		notificationSub,
		manager,
		emailClient,
		logg,
	)
	requireResource(ctx, logg, "notification consumer", err)

	analyticsConsumer, err := analytics.NewConsumer(
		bqClient,
		cfg.BigQuery.LendingEventsTable,
		analyticsSub,
		manager,
		logg,
	)
	requireResource(ctx, logg, "analytics consumer", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(runCtx, "worker ready")

	errCh := make(chan error, 2)
	go func() {
		errCh <- notificationConsumer.Run(runCtx)
	}()
	go func() {
		errCh <- analyticsConsumer.Run(runCtx)
	}()

	select {
	case <-runCtx.Done():
		logg.Info(runCtx, "worker context canceled")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(runCtx, "consumer stopped unexpectedly", err)
			os.Exit(1)
		}
	}

	logg.Info(runCtx, "worker shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
