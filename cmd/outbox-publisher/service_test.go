package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bookhaven/bookhaven-backend/pkg/config"
	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
	"github.com/bookhaven/bookhaven-backend/pkg/enums"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
	"github.com/bookhaven/bookhaven-backend/pkg/outbox"
	"github.com/bookhaven/bookhaven-backend/pkg/outbox/payloads"
	"github.com/bookhaven/bookhaven-backend/pkg/outbox/registry"
)

func borrowEvent(t *testing.T, attemptCount int) models.OutboxEvent {
	t.Helper()
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventBookBorrowed,
		AggregateType: enums.AggregateBorrowRecord,
		AggregateID:   uuid.New(),
		Payload:       envelopePayload(t),
		AttemptCount:  attemptCount,
	}
}

func lendingRoute(event models.OutboxEvent) *registry.ResolvedEvent {
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{
			Topic:         "lending-topic",
			AggregateType: event.AggregateType,
		},
		Envelope: outbox.PayloadEnvelope{
			EventID:    event.ID.String(),
			OccurredAt: time.Now(),
		},
		Payload: &payloads.BookBorrowedEvent{},
	}
}

func TestDrainBatchContinuesAfterPublishFailure(t *testing.T) {
	first := borrowEvent(t, 0)
	second := borrowEvent(t, 0)
	store := &fakeEventStore{events: []models.OutboxEvent{first, second}}
	pub := &fakeTopicPublisher{
		futures: []publishFuture{
			fakeFuture{err: errors.New("transient")},
			fakeFuture{},
		},
	}
	service := newTestService(t, store, pub, &fakeRoutes{}, &fakeDeadLetters{}, nil)

	drained, err := service.drainBatch(context.Background())
	if err != nil {
		t.Fatalf("drainBatch: %v", err)
	}
	if drained != 2 {
		t.Fatalf("drained = %d, want 2", drained)
	}
	if len(store.failed) != 1 || store.failed[0] != first.ID {
		t.Fatalf("expected only the first event marked failed, got %v", store.failed)
	}
	if len(store.published) != 1 || store.published[0] != second.ID {
		t.Fatalf("expected only the second event marked published, got %v", store.published)
	}
}

func TestDispatchRoutesNotificationTopic(t *testing.T) {
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventNotificationRequested,
		AggregateType: enums.AggregateNotification,
		AggregateID:   uuid.New(),
		Payload:       envelopePayload(t),
	}
	store := &fakeEventStore{events: []models.OutboxEvent{event}}
	pub := &fakeTopicPublisher{futures: []publishFuture{fakeFuture{}}}
	routes := &fakeRoutes{topic: "notification-topic", payload: &payloads.NotificationRequestedEvent{}}
	service := newTestService(t, store, pub, routes, &fakeDeadLetters{}, nil)
	service.publishers = func(topic string) topicPublisher {
		if topic != "notification-topic" {
			t.Fatalf("unexpected topic %q", topic)
		}
		return pub
	}

	drained, err := service.drainBatch(context.Background())
	if err != nil {
		t.Fatalf("drainBatch: %v", err)
	}
	if drained != 1 {
		t.Fatalf("drained = %d, want 1", drained)
	}
	if len(pub.futures) != 0 {
		t.Fatalf("expected all publish futures consumed, got %d", len(pub.futures))
	}
	if len(store.published) != 1 {
		t.Fatalf("expected one published row, got %d", len(store.published))
	}
}

func TestDispatchDeadLettersOnNonRetryable(t *testing.T) {
	event := borrowEvent(t, 0)
	store := &fakeEventStore{events: []models.OutboxEvent{event}}
	routes := &fakeRoutes{err: registry.NewNonRetryableError(errors.New("invalid payload"))}
	deadLetters := &fakeDeadLetters{}
	service := newTestService(t, store, &fakeTopicPublisher{}, routes, deadLetters, nil)

	if _, err := service.drainBatch(context.Background()); err != nil {
		t.Fatalf("drainBatch: %v", err)
	}
	if len(deadLetters.entries) != 1 {
		t.Fatalf("expected one dlq entry, got %d", len(deadLetters.entries))
	}
	entry := deadLetters.entries[0]
	if entry.EventID != event.ID {
		t.Fatalf("dlq event_id = %s, want %s", entry.EventID, event.ID)
	}
	if !bytes.Equal(entry.Payload, event.Payload) {
		t.Fatal("dlq payload mismatch")
	}
	if entry.ErrorReason != enums.OutboxDLQReasonNonRetryable {
		t.Fatalf("error reason = %s", entry.ErrorReason)
	}
	if len(store.terminal) != 1 || store.terminal[0] != event.ID {
		t.Fatalf("expected the event pinned terminal, got %v", store.terminal)
	}
}

func TestDispatchDeadLettersAtAttemptCap(t *testing.T) {
	event := borrowEvent(t, 1)
	store := &fakeEventStore{events: []models.OutboxEvent{event}}
	pub := &fakeTopicPublisher{
		futures: []publishFuture{fakeFuture{err: errors.New("transient")}},
	}
	deadLetters := &fakeDeadLetters{}
	service := newTestService(t, store, pub, &fakeRoutes{}, deadLetters, &config.OutboxConfig{
		BatchSize:      1,
		PollIntervalMS: 100,
		MaxAttempts:    2,
	})

	if _, err := service.drainBatch(context.Background()); err != nil {
		t.Fatalf("drainBatch: %v", err)
	}
	if len(deadLetters.entries) != 1 {
		t.Fatalf("expected one dlq entry, got %d", len(deadLetters.entries))
	}
	if deadLetters.entries[0].ErrorReason != enums.OutboxDLQReasonMaxAttempts {
		t.Fatalf("error reason = %s", deadLetters.entries[0].ErrorReason)
	}
	if len(store.failed) != 0 {
		t.Fatalf("event at the cap must not be marked for retry, got %v", store.failed)
	}
}

func newTestService(t *testing.T, store eventStore, pub topicPublisher, routes routeResolver, deadLetters deadLetterStore, outboxCfg *config.OutboxConfig) *Service {
	t.Helper()
	cfg := &config.Config{
		Outbox: config.OutboxConfig{
			BatchSize:      2,
			PollIntervalMS: 100,
			MaxAttempts:    5,
		},
	}
	if outboxCfg != nil {
		cfg.Outbox = *outboxCfg
	}
	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:            &fakeTxRunner{},
		PubSub:        &fakeTopicClient{},
		Repository:    store,
		Registry:      routes,
		DLQRepository: deadLetters,
		Publishers:    func(string) topicPublisher { return pub },
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return service
}

func envelopePayload(tb testing.TB) json.RawMessage {
	tb.Helper()
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	})
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return payload
}

type fakeEventStore struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
}

func (f *fakeEventStore) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeEventStore) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeEventStore) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeEventStore) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDeadLetters struct {
	entries []models.OutboxDLQ
}

func (f *fakeDeadLetters) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakeTxRunner struct{}

func (f *fakeTxRunner) Ping(context.Context) error { return nil }

func (f *fakeTxRunner) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakeTopicClient struct{}

func (f *fakeTopicClient) Ping(context.Context) error { return nil }

func (f *fakeTopicClient) Publisher(name string) *gcppubsub.Publisher { return nil }

type fakeTopicPublisher struct {
	futures []publishFuture
}

func (f *fakeTopicPublisher) Publish(context.Context, *gcppubsub.Message) publishFuture {
	if len(f.futures) == 0 {
		return nil
	}
	future := f.futures[0]
	f.futures = f.futures[1:]
	return future
}

type fakeFuture struct {
	err error
}

func (f fakeFuture) Get(context.Context) (string, error) {
	return "", f.err
}

// fakeRoutes resolves every event to the lending topic unless overridden.
type fakeRoutes struct {
	topic   string
	payload any
	err     error
}

func (f *fakeRoutes) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	resolved := lendingRoute(event)
	if f.topic != "" {
		resolved.Descriptor.Topic = f.topic
	}
	if f.payload != nil {
		resolved.Payload = f.payload
	}
	return resolved, nil
}
