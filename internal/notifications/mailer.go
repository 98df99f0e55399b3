package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
	"github.com/bookhaven/bookhaven-backend/pkg/enums"
	pkgerrors "github.com/bookhaven/bookhaven-backend/pkg/errors"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
	"github.com/bookhaven/bookhaven-backend/pkg/outbox"
	"github.com/bookhaven/bookhaven-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// SendEmailInput describes one transactional email to enqueue.
type SendEmailInput struct {
	UserID   uuid.UUID
	Email    string
	FullName string
	Type     enums.NotificationType
	Subject  string
	Message  string
}

// Mailer enqueues email requests through the outbox. Delivery happens out of
// band in the notification worker, so callers get fire-and-forget semantics
// with at-least-once delivery.
type Mailer struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	logger *logger.Logger
}

// NewMailer wires the mailer to its persistence and outbox dependencies.
func NewMailer(repo Repository, tx txRunner, ob outboxPublisher, logg *logger.Logger) (*Mailer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ob == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &Mailer{repo: repo, tx: tx, outbox: ob, logger: logg}, nil
}

// Send records the notification and queues its email for delivery. Subject
// and message fall back to the per-type template when left empty.
func (m *Mailer) Send(ctx context.Context, input SendEmailInput) error {
	if input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if strings.TrimSpace(input.Email) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email required")
	}
	if !input.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown notification type")
	}

	subject, message := templateFor(input.Type, input.FullName)
	if strings.TrimSpace(input.Subject) != "" {
		subject = input.Subject
	}
	if strings.TrimSpace(input.Message) != "" {
		message = input.Message
	}

	return m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		notification := &models.Notification{
			UserID:  input.UserID,
			Type:    input.Type,
			Title:   subject,
			Message: message,
		}
		if err := m.repo.WithTx(tx).Create(ctx, notification); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventNotificationRequested,
			AggregateType: enums.AggregateNotification,
			AggregateID:   notification.ID,
			Version:       1,
			Data: payloads.NotificationRequestedEvent{
				UserID:   input.UserID,
				Email:    input.Email,
				FullName: input.FullName,
				Type:     input.Type,
				Subject:  subject,
				Message:  message,
			},
		}
		if err := m.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}

		if m.logger != nil {
			logCtx := m.logger.WithFields(ctx, map[string]any{
				"user_id": input.UserID.String(),
				"type":    input.Type,
			})
			m.logger.Info(logCtx, "email queued")
		}
		return nil
	})
}

func templateFor(kind enums.NotificationType, fullName string) (string, string) {
	name := strings.TrimSpace(fullName)
	if name == "" {
		name = "there"
	}

	switch kind {
	case enums.NotificationTypeWelcome:
		return "Welcome to BookHaven",
			fmt.Sprintf("Hi %s, welcome to BookHaven! Browse the catalog and borrow your first book.", name)
	case enums.NotificationTypeReengagement:
		return "We miss you at BookHaven",
			fmt.Sprintf("Hi %s, it has been a while. New titles are waiting for you.", name)
	case enums.NotificationTypeWelcomeBack:
		return "Good to see you again",
			fmt.Sprintf("Hi %s, thanks for staying active. Keep the streak going!", name)
	case enums.NotificationTypeDueReminder:
		return "A book is due soon",
			fmt.Sprintf("Hi %s, one of your loans is due within 24 hours. Return or renew it to avoid fines.", name)
	case enums.NotificationTypeBorrowReceipt:
		return "Borrow confirmed",
			fmt.Sprintf("Hi %s, your checkout went through. Enjoy the read!", name)
	case enums.NotificationTypeReturnReceipt:
		return "Return confirmed",
			fmt.Sprintf("Hi %s, thanks for returning your book.", name)
	default:
		return "BookHaven update", fmt.Sprintf("Hi %s, there is news on your account.", name)
	}
}
