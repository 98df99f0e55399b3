package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/bookhaven/bookhaven-backend/pkg/enums"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
	"github.com/bookhaven/bookhaven-backend/pkg/outbox"
	"github.com/bookhaven/bookhaven-backend/pkg/outbox/idempotency"
)

const analyticsConsumerName = "analytics"

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

var _ idempotencyChecker = (*idempotency.Manager)(nil)

// handledEvents is the slice of the event stream the lending table ingests.
var handledEvents = map[enums.OutboxEventType]struct{}{
	enums.EventUserRegistered:   {},
	enums.EventBookBorrowed:     {},
	enums.EventBookReturned:     {},
	enums.EventBookReturnedLate: {},
}

// Consumer writes lending events to BigQuery while honoring Redis idempotency.
type Consumer struct {
	client       tableInserter
	table        string
	subscription *pubsub.Subscriber
	manager      idempotencyChecker
	logg         *logger.Logger
}

// NewConsumer builds a new analytics consumer.
func NewConsumer(client tableInserter, table string, subscription *pubsub.Subscriber, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if client == nil {
		return nil, fmt.Errorf("bigquery client required")
	}
	if strings.TrimSpace(table) == "" {
		return nil, fmt.Errorf("bigquery table name required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("analytics subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		client:       client,
		table:        strings.TrimSpace(table),
		subscription: subscription,
		manager:      manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		eventType := enums.OutboxEventType(msg.Attributes["event_type"])

		var envelope outbox.PayloadEnvelope
		if err := json.Unmarshal(msg.Data, &envelope); err != nil {
			c.logg.Error(ctx, "failed to decode analytics envelope", err)
			msg.Ack()
			return
		}

		if err := c.Process(ctx, eventType, envelope); err != nil {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// Process ingests the outbox envelope into BigQuery if the event is supported.
func (c *Consumer) Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": eventType,
	})

	if _, ok := handledEvents[eventType]; !ok {
		c.logg.Info(logCtx, "event not handled by analytics consumer")
		return nil
	}

	if envelope.EventID == "" {
		return fmt.Errorf("event id missing")
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		return fmt.Errorf("parse event id: %w", err)
	}

	already, err := c.manager.CheckAndMarkProcessed(ctx, analyticsConsumerName, eventID)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return nil
	}

	row, err := buildRow(eventType, envelope)
	if err != nil {
		c.logg.Error(logCtx, "failed to build lending row", err)
		_ = c.manager.Delete(ctx, analyticsConsumerName, eventID)
		return err
	}

	if err := c.client.InsertRows(ctx, c.table, []any{row}); err != nil {
		c.logg.Error(logCtx, "failed to insert lending row", err)
		_ = c.manager.Delete(ctx, analyticsConsumerName, eventID)
		return err
	}

	c.logg.Info(logCtx, "lending event ingested")
	return nil
}

type lendingEventRow struct {
	EventID    string             `bigquery:"event_id"`
	EventType  string             `bigquery:"event_type"`
	OccurredAt time.Time          `bigquery:"occurred_at"`
	UserID     *string            `bigquery:"user_id"`
	BookID     *string            `bigquery:"book_id"`
	RecordID   *string            `bigquery:"record_id"`
	DueDate    *string            `bigquery:"due_date"`
	Payload    cbigquery.NullJSON `bigquery:"payload"`
}

func buildRow(eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) (*lendingEventRow, error) {
	payload := map[string]any{}
	if len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		if payload == nil {
			payload = map[string]any{}
		}
	}

	payloadJSON := cbigquery.NullJSON{}
	if len(envelope.Data) > 0 {
		payloadJSON.Valid = true
		payloadJSON.JSONVal = string(envelope.Data)
	}

	row := &lendingEventRow{
		EventID:    envelope.EventID,
		EventType:  string(eventType),
		OccurredAt: envelope.OccurredAt,
		UserID:     stringValue(payload, "user_id"),
		BookID:     stringValue(payload, "book_id"),
		RecordID:   stringValue(payload, "record_id"),
		DueDate:    stringValue(payload, "due_date"),
		Payload:    payloadJSON,
	}
	if row.UserID == nil && envelope.Actor != nil && envelope.Actor.UserID != uuid.Nil {
		actorID := envelope.Actor.UserID.String()
		row.UserID = &actorID
	}
	return row, nil
}

func stringValue(payload map[string]any, key string) *string {
	if payload == nil {
		return nil
	}
	if raw, ok := payload[key]; ok {
		if str, ok := raw.(string); ok {
			trimmed := strings.TrimSpace(str)
			if trimmed != "" {
				return &trimmed
			}
		}
	}
	return nil
}
