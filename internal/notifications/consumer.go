package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
	"github.com/bookhaven/bookhaven-backend/pkg/email"
	"github.com/bookhaven/bookhaven-backend/pkg/enums"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
	"github.com/bookhaven/bookhaven-backend/pkg/outbox"
	"github.com/bookhaven/bookhaven-backend/pkg/outbox/idempotency"
	"github.com/bookhaven/bookhaven-backend/pkg/outbox/payloads"
)

const emailConsumer = "notification-worker"

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

var _ idempotencyChecker = (*idempotency.Manager)(nil)

type notificationCreator interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// Consumer watches the notification subscription and delivers queued emails.
type Consumer struct {
	repo         notificationCreator
	subscription *pubsub.Subscriber
	idempotency  idempotencyChecker
	sender       email.Sender
	logg         *logger.Logger
}

// NewConsumer builds the email delivery consumer.
func NewConsumer(repo notificationCreator, subscription *pubsub.Subscriber, manager idempotencyChecker, sender email.Sender, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("notification subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if sender == nil {
		return nil, fmt.Errorf("email sender required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  manager,
		sender:       sender,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	switch enums.OutboxEventType(eventType) {
	case enums.EventNotificationRequested, enums.EventDueDateReminder:
	default:
		c.logg.Info(logCtx, "skipping non-notification event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, emailConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	var handleErr error
	switch enums.OutboxEventType(eventType) {
	case enums.EventNotificationRequested:
		handleErr = c.handleEmailRequest(ctx, envelope.Data, logCtx)
	case enums.EventDueDateReminder:
		handleErr = c.handleDueReminder(ctx, envelope.Data, logCtx)
	}
	if handleErr != nil {
		c.logg.Error(logCtx, "notification delivery failed", handleErr)
		_ = c.idempotency.Delete(ctx, emailConsumer, eventID)
		return processResult{nack: true}
	}

	return processResult{ack: true}
}

func (c *Consumer) handleEmailRequest(ctx context.Context, data json.RawMessage, logCtx context.Context) error {
	var payload payloads.NotificationRequestedEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse payload: %w", err)
	}

	err := c.sender.Send(ctx, email.Message{
		To:      payload.Email,
		Subject: payload.Subject,
		Text:    payload.Message,
	})
	if err != nil {
		return err
	}

	c.logg.Info(c.logg.WithUserID(logCtx, payload.UserID.String()), "email delivered")
	return nil
}

// handleDueReminder delivers the reminder and records the in-app
// notification; the cron job only enqueues the event.
func (c *Consumer) handleDueReminder(ctx context.Context, data json.RawMessage, logCtx context.Context) error {
	var payload payloads.DueDateReminderEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse payload: %w", err)
	}

	subject := "A book is due soon"
	message := fmt.Sprintf("Hi %s, %q is due on %s. Return it on time to avoid fines.",
		payload.FullName, payload.BookTitle, payload.DueDate.Format("January 2, 2006"))

	err := c.sender.Send(ctx, email.Message{
		To:      payload.Email,
		Subject: subject,
		Text:    message,
	})
	if err != nil {
		return err
	}

	notification := &models.Notification{
		UserID:  payload.UserID,
		Type:    enums.NotificationTypeDueReminder,
		Title:   subject,
		Message: message,
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}

	c.logg.Info(c.logg.WithUserID(logCtx, payload.UserID.String()), "due date reminder delivered")
	return nil
}
