package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/bookhaven/bookhaven-backend/pkg/logger"
)

const (
	outboxRetentionDays = 14
	dlqRetentionDays    = 90
)

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type dlqRetentionRepo interface {
	DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// OutboxRetentionJobParams configure the outbox cleanup job.
type OutboxRetentionJobParams struct {
	Logger       *logger.Logger
	Repository   outboxRetentionRepo
	DLQ          dlqRetentionRepo
	Retention    int
	DLQRetention int
}

// NewOutboxRetentionJob builds the job that prunes published outbox rows and
// aged dead letter rows.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	if params.DLQ == nil {
		return nil, fmt.Errorf("dlq repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = outboxRetentionDays
	}
	dlqRetention := params.DLQRetention
	if dlqRetention <= 0 {
		dlqRetention = dlqRetentionDays
	}
	return &outboxRetentionJob{
		logg:         params.Logger,
		repo:         params.Repository,
		dlq:          params.DLQ,
		retention:    retention,
		dlqRetention: dlqRetention,
		now:          time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg         *logger.Logger
	repo         outboxRetentionRepo
	dlq          dlqRetentionRepo
	retention    int
	dlqRetention int
	now          func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	var errs []error
	if err := j.prunePublished(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := j.pruneDeadLetters(ctx); err != nil {
		errs = append(errs, err)
	}
	return multierr.Combine(errs...)
}

func (j *outboxRetentionJob) prunePublished(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
	deleted, err := j.repo.DeletePublishedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "outbox retention cleanup complete")
	return nil
}

func (j *outboxRetentionJob) pruneDeadLetters(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.dlqRetention) * 24 * time.Hour)
	deleted, err := j.dlq.DeleteFailedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("dlq retention: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.dlqRetention,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "dlq retention cleanup complete")
	return nil
}
