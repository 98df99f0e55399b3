package notifications

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bookhaven/bookhaven-backend/pkg/enums"
	pkgerrors "github.com/bookhaven/bookhaven-backend/pkg/errors"
	"github.com/bookhaven/bookhaven-backend/pkg/outbox"
	"github.com/bookhaven/bookhaven-backend/pkg/outbox/payloads"
)

type mailerTxRunner struct{}

func (mailerTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type captureOutbox struct {
	events []outbox.DomainEvent
}

func (c *captureOutbox) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	c.events = append(c.events, event)
	return nil
}

func TestMailerSendQueuesEmail(t *testing.T) {
	repo := &fakeRepository{}
	ob := &captureOutbox{}
	mailer, err := NewMailer(repo, mailerTxRunner{}, ob, nil)
	if err != nil {
		t.Fatalf("build mailer: %v", err)
	}

	userID := uuid.New()
	err = mailer.Send(context.Background(), SendEmailInput{
		UserID:   userID,
		Email:    "reader@example.com",
		FullName: "Ada Reader",
		Type:     enums.NotificationTypeWelcome,
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if len(repo.created) != 1 {
		t.Fatalf("expected 1 notification row, got %d", len(repo.created))
	}
	row := repo.created[0]
	if row.Type != enums.NotificationTypeWelcome {
		t.Fatalf("unexpected type %s", row.Type)
	}
	if row.Title != "Welcome to BookHaven" {
		t.Fatalf("unexpected title %q", row.Title)
	}

	if len(ob.events) != 1 {
		t.Fatalf("expected 1 outbox event, got %d", len(ob.events))
	}
	event := ob.events[0]
	if event.EventType != enums.EventNotificationRequested {
		t.Fatalf("unexpected event type %s", event.EventType)
	}
	if event.AggregateType != enums.AggregateNotification {
		t.Fatalf("unexpected aggregate type %s", event.AggregateType)
	}

	encoded, err := json.Marshal(event.Data)
	if err != nil {
		t.Fatalf("marshal event data: %v", err)
	}
	var payload payloads.NotificationRequestedEvent
	if err := json.Unmarshal(encoded, &payload); err != nil {
		t.Fatalf("decode event data: %v", err)
	}
	if payload.Email != "reader@example.com" {
		t.Fatalf("unexpected email %q", payload.Email)
	}
	if payload.UserID != userID {
		t.Fatalf("unexpected user id %s", payload.UserID)
	}
}

func TestMailerSendCustomSubjectWins(t *testing.T) {
	repo := &fakeRepository{}
	ob := &captureOutbox{}
	mailer, _ := NewMailer(repo, mailerTxRunner{}, ob, nil)

	err := mailer.Send(context.Background(), SendEmailInput{
		UserID:  uuid.New(),
		Email:   "reader@example.com",
		Type:    enums.NotificationTypeAccountUpdate,
		Subject: "Your card was approved",
		Message: "You can now borrow books.",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if repo.created[0].Title != "Your card was approved" {
		t.Fatalf("expected custom subject, got %q", repo.created[0].Title)
	}
	if repo.created[0].Message != "You can now borrow books." {
		t.Fatalf("expected custom message, got %q", repo.created[0].Message)
	}
}

func TestMailerSendValidation(t *testing.T) {
	mailer, _ := NewMailer(&fakeRepository{}, mailerTxRunner{}, &captureOutbox{}, nil)

	cases := []struct {
		name  string
		input SendEmailInput
	}{
		{"missing user", SendEmailInput{Email: "a@b.c", Type: enums.NotificationTypeWelcome}},
		{"missing email", SendEmailInput{UserID: uuid.New(), Type: enums.NotificationTypeWelcome}},
		{"unknown type", SendEmailInput{UserID: uuid.New(), Email: "a@b.c", Type: enums.NotificationType("bogus")}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := mailer.Send(context.Background(), tc.input)
			if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
