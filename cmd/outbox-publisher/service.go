package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bookhaven/bookhaven-backend/pkg/config"
	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
	"github.com/bookhaven/bookhaven-backend/pkg/enums"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
	"github.com/bookhaven/bookhaven-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPollMs      = 500
	defaultMaxAttempts = 10

	publishTimeout = 15 * time.Second
	maxIdleBackoff = 10 * time.Second
	jitterWindow   = 250 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type topicClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type eventStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type deadLetterStore interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type routeResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// topicPublisherFunc lets tests swap the Pub/Sub publisher for a fake.
type topicPublisherFunc func(topic string) topicPublisher

type topicPublisher interface {
	Publish(context.Context, *gcppubsub.Message) publishFuture
}

type publishFuture interface {
	Get(context.Context) (string, error)
}

type ServiceParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            txRunner
	PubSub        topicClient
	Repository    eventStore
	Registry      routeResolver
	DLQRepository deadLetterStore
	Publishers    topicPublisherFunc
}

// Service drains the lending/notification outbox into Pub/Sub. Each cycle
// locks a batch inside one transaction, routes every event through the
// registry, and records the per-event outcome before the batch commits.
type Service struct {
	cfg          *config.Config
	logg         *logger.Logger
	db           txRunner
	events       eventStore
	deadLetters  deadLetterStore
	pubsub       topicClient
	routes       routeResolver
	publishers   topicPublisherFunc
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.Registry == nil {
		return nil, errors.New("event registry is required")
	}
	if params.DLQRepository == nil {
		return nil, errors.New("dlq repository is required")
	}

	publishers := params.Publishers
	if publishers == nil {
		publishers = func(topic string) topicPublisher {
			return wrapPublisher(params.PubSub.Publisher(topic))
		}
	}

	s := &Service{
		cfg:          params.Config,
		logg:         params.Logger,
		db:           params.DB,
		events:       params.Repository,
		deadLetters:  params.DLQRepository,
		pubsub:       params.PubSub,
		routes:       params.Registry,
		publishers:   publishers,
		batchSize:    params.Config.Outbox.BatchSize,
		maxAttempts:  params.Config.Outbox.MaxAttempts,
		pollInterval: time.Duration(params.Config.Outbox.PollIntervalMS) * time.Millisecond,
	}
	if s.batchSize <= 0 {
		s.batchSize = defaultBatchSize
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = defaultMaxAttempts
	}
	if s.pollInterval <= 0 {
		s.pollInterval = defaultPollMs * time.Millisecond
	}
	return s, nil
}

// Run polls until the context is canceled. An empty batch sleeps one poll
// interval; batch-level errors back the loop off exponentially.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.checkDependencies(ctx); err != nil {
		return err
	}

	backoff := s.pollInterval
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "outbox publisher context canceled")
			return ctx.Err()
		default:
		}

		drained, err := s.drainBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox publisher batch error", err)
			backoff = min(backoff*2, maxIdleBackoff)
			if err := s.sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
		case drained == 0:
			backoff = s.pollInterval
			if err := s.sleep(ctx, withJitter(s.pollInterval)); err != nil {
				return err
			}
		default:
			backoff = s.pollInterval
		}
	}
}

func (s *Service) checkDependencies(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		s.logg.Error(ctx, "database ping failed", err)
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := s.pubsub.Ping(ctx); err != nil {
		s.logg.Error(ctx, "pubsub ping failed", err)
		return fmt.Errorf("pubsub ping failed: %w", err)
	}
	return nil
}

// drainBatch locks one batch of unpublished events and dispatches each.
// Per-event publish failures only mark that row; an error updating outcome
// rows rolls the whole batch back so no outcome is lost.
func (s *Service) drainBatch(ctx context.Context) (int, error) {
	drained := 0
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.events.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		for _, event := range events {
			if err := s.dispatch(ctx, tx, event); err != nil {
				return err
			}
		}
		drained = len(events)
		return nil
	})
	return drained, err
}

func (s *Service) dispatch(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) error {
	resolved, err := s.routes.Resolve(event)
	if err != nil {
		return s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err, "")
	}

	topic := resolved.Descriptor.Topic
	err = s.publishToTopic(ctx, event, resolved)
	if err == nil {
		if markErr := s.events.MarkPublishedTx(tx, event.ID); markErr != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, markErr)
		}
		logCtx := s.eventCtx(ctx, event, topic)
		logCtx = s.logg.WithField(logCtx, "event_id", resolved.Envelope.EventID)
		s.logg.Info(logCtx, "outbox event published")
		return nil
	}

	var nonRetry registry.NonRetryableError
	if errors.As(err, &nonRetry) {
		return s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err, topic)
	}

	if event.AttemptCount+1 >= s.maxAttempts {
		cause := fmt.Errorf("max publish attempts reached: %w", err)
		return s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonMaxAttempts, cause, topic)
	}

	logCtx := s.eventCtx(ctx, event, topic)
	logCtx = s.logg.WithField(logCtx, "error", err.Error())
	s.logg.Warn(logCtx, "outbox publish failed")
	if markErr := s.events.MarkFailedTx(tx, event.ID, err); markErr != nil {
		return fmt.Errorf("mark failure %s: %w", event.ID, markErr)
	}
	return nil
}

// deadLetter retires an event: a dlq row records what failed and why, and
// the source row is pinned at the attempt cap so no later cycle refetches it.
func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, topic string) error {
	logCtx := s.eventCtx(ctx, event, topic)
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"error_reason": reason,
		"error":        cause.Error(),
	})
	s.logg.Warn(logCtx, "outbox event will not be retried")

	message := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &message,
		AttemptCount:  event.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	if err := s.deadLetters.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.events.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

func (s *Service) publishToTopic(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.publishers(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	future := pub.Publish(publishCtx, &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
		},
	})
	if future == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	_, err := future.Get(publishCtx)
	return err
}

func (s *Service) eventCtx(ctx context.Context, event models.OutboxEvent, topic string) context.Context {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if topic != "" {
		fields["topic"] = topic
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return s.logg.WithFields(ctx, fields)
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(jitterSource.Int63n(int64(jitterWindow)))
}

func wrapPublisher(p *gcppubsub.Publisher) topicPublisher {
	if p == nil {
		return nil
	}
	return gcpTopicPublisher{p}
}

type gcpTopicPublisher struct {
	publisher *gcppubsub.Publisher
}

func (p gcpTopicPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishFuture {
	if p.publisher == nil {
		return nil
	}
	return p.publisher.Publish(ctx, msg)
}
