package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bookhaven/bookhaven-backend/internal/borrowing"
	"github.com/bookhaven/bookhaven-backend/pkg/enums"
	"github.com/bookhaven/bookhaven-backend/pkg/outbox"
	"github.com/bookhaven/bookhaven-backend/pkg/outbox/payloads"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeDueLoans struct {
	rows []borrowing.DueReminderRow
	err  error
	from time.Time
	to   time.Time
}

func (f *fakeDueLoans) DueForReminder(_ context.Context, from, to time.Time) ([]borrowing.DueReminderRow, error) {
	f.from = from
	f.to = to
	return f.rows, f.err
}

type fakeEmitter struct {
	events []outbox.DomainEvent
	err    error
}

func (f *fakeEmitter) EmitIfNotExists(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func newReminderJob(t *testing.T, loans *fakeDueLoans, emitter *fakeEmitter) *dueDateReminderJob {
	t.Helper()
	jobIface, err := NewDueDateReminderJob(DueDateReminderJobParams{
		Logger: cronTestLogger(),
		DB:     fakeTxRunner{},
		Loans:  loans,
		Outbox: emitter,
	})
	if err != nil {
		t.Fatalf("NewDueDateReminderJob: %v", err)
	}
	job, ok := jobIface.(*dueDateReminderJob)
	if !ok {
		t.Fatalf("expected dueDateReminderJob, got %T", jobIface)
	}
	return job
}

func TestDueDateReminderJobQueuesEvents(t *testing.T) {
	now := time.Date(2025, time.April, 7, 15, 30, 0, 0, time.UTC)
	row := borrowing.DueReminderRow{
		RecordID:  uuid.New(),
		UserID:    uuid.New(),
		BookID:    uuid.New(),
		BookTitle: "The Go Programming Language",
		DueDate:   time.Date(2025, time.April, 8, 0, 0, 0, 0, time.UTC),
		Email:     "ada@example.com",
		FullName:  "Ada Lovelace",
	}
	loans := &fakeDueLoans{rows: []borrowing.DueReminderRow{row}}
	emitter := &fakeEmitter{}
	job := newReminderJob(t, loans, emitter)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantFrom := time.Date(2025, time.April, 7, 0, 0, 0, 0, time.UTC)
	if !loans.from.Equal(wantFrom) {
		t.Fatalf("expected window start %s, got %s", wantFrom, loans.from)
	}
	if !loans.to.Equal(wantFrom.AddDate(0, 0, reminderWindowDays)) {
		t.Fatalf("unexpected window end %s", loans.to)
	}

	if len(emitter.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(emitter.events))
	}
	event := emitter.events[0]
	if event.EventType != enums.EventDueDateReminder {
		t.Fatalf("unexpected event type %s", event.EventType)
	}
	if event.AggregateType != enums.AggregateBorrowRecord || event.AggregateID != row.RecordID {
		t.Fatalf("event should aggregate on the borrow record")
	}
	payload, ok := event.Data.(payloads.DueDateReminderEvent)
	if !ok {
		t.Fatalf("expected DueDateReminderEvent payload, got %T", event.Data)
	}
	if payload.Email != row.Email || payload.BookTitle != row.BookTitle {
		t.Fatalf("payload should carry delivery details")
	}
}

func TestDueDateReminderJobNoLoansIsQuiet(t *testing.T) {
	loans := &fakeDueLoans{}
	emitter := &fakeEmitter{}
	job := newReminderJob(t, loans, emitter)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(emitter.events) != 0 {
		t.Fatalf("expected no events, got %d", len(emitter.events))
	}
}

func TestDueDateReminderJobPropagatesErrors(t *testing.T) {
	loans := &fakeDueLoans{err: errors.New("db down")}
	job := newReminderJob(t, loans, &fakeEmitter{})
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error from loan listing")
	}

	loans = &fakeDueLoans{rows: []borrowing.DueReminderRow{{RecordID: uuid.New()}}}
	job = newReminderJob(t, loans, &fakeEmitter{err: errors.New("insert failed")})
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error from event emission")
	}
}
