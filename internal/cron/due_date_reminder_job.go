package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/bookhaven/bookhaven-backend/internal/activity"
	"github.com/bookhaven/bookhaven-backend/internal/borrowing"
	"github.com/bookhaven/bookhaven-backend/pkg/enums"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
	"github.com/bookhaven/bookhaven-backend/pkg/outbox"
	"github.com/bookhaven/bookhaven-backend/pkg/outbox/payloads"
)

// reminderWindowDays covers loans due today or tomorrow, so a cycle missed
// by an outage still reminds before the due date passes.
const reminderWindowDays = 2

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type dueLoanLister interface {
	DueForReminder(ctx context.Context, from, to time.Time) ([]borrowing.DueReminderRow, error)
}

type reminderEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// DueDateReminderJobParams configure the reminder job.
type DueDateReminderJobParams struct {
	Logger *logger.Logger
	DB     txRunner
	Loans  dueLoanLister
	Outbox reminderEmitter
}

// NewDueDateReminderJob builds the job that queues due date reminder events.
func NewDueDateReminderJob(params DueDateReminderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Loans == nil {
		return nil, fmt.Errorf("loan repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	return &dueDateReminderJob{
		logg:   params.Logger,
		db:     params.DB,
		loans:  params.Loans,
		outbox: params.Outbox,
		now:    time.Now,
	}, nil
}

type dueDateReminderJob struct {
	logg   *logger.Logger
	db     txRunner
	loans  dueLoanLister
	outbox reminderEmitter
	now    func() time.Time
}

func (j *dueDateReminderJob) Name() string { return "due-date-reminder" }

// Run queues one due_date_reminder event per loan entering the reminder
// window. The unique (event, aggregate) constraint on the outbox keeps the
// daily cycle from reminding the same loan twice.
func (j *dueDateReminderJob) Run(ctx context.Context) error {
	from := activity.Day(j.now())
	to := from.AddDate(0, 0, reminderWindowDays)

	rows, err := j.loans.DueForReminder(ctx, from, to)
	if err != nil {
		return fmt.Errorf("list due loans: %w", err)
	}
	if len(rows) == 0 {
		j.logg.Info(ctx, "no loans entering the reminder window")
		return nil
	}

	queued := 0
	err = j.db.WithTx(ctx, func(tx *gorm.DB) error {
		for _, row := range rows {
			event := outbox.DomainEvent{
				EventType:     enums.EventDueDateReminder,
				AggregateType: enums.AggregateBorrowRecord,
				AggregateID:   row.RecordID,
				Data: payloads.DueDateReminderEvent{
					RecordID:  row.RecordID,
					UserID:    row.UserID,
					BookID:    row.BookID,
					BookTitle: row.BookTitle,
					DueDate:   row.DueDate,
					Email:     row.Email,
					FullName:  row.FullName,
				},
				Version: 1,
			}
			if err := j.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
				return fmt.Errorf("queue reminder for record %s: %w", row.RecordID, err)
			}
			queued++
		}
		return nil
	})
	if err != nil {
		return err
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"window_from": from.Format("2006-01-02"),
		"window_to":   to.Format("2006-01-02"),
		"loans_due":   len(rows),
		"queued":      queued,
	})
	j.logg.Info(logCtx, "due date reminders queued")
	return nil
}
