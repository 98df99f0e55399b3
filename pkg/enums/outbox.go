package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateUser         OutboxAggregateType = "user"
	AggregateBook         OutboxAggregateType = "book"
	AggregateBorrowRecord OutboxAggregateType = "borrow_record"
	AggregateNotification OutboxAggregateType = "notification"
	AggregateWorkflowRun  OutboxAggregateType = "workflow_run"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateUser,
	AggregateBook,
	AggregateBorrowRecord,
	AggregateNotification,
	AggregateWorkflowRun,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventUserRegistered        OutboxEventType = "user_registered"
	EventBookBorrowed          OutboxEventType = "book_borrowed"
	EventBookReturned          OutboxEventType = "book_returned"
	EventBookReturnedLate      OutboxEventType = "book_returned_late"
	EventNotificationRequested OutboxEventType = "notification_requested"
	EventDueDateReminder       OutboxEventType = "due_date_reminder"
)

var validOutboxEventTypes = []OutboxEventType{
	EventUserRegistered,
	EventBookBorrowed,
	EventBookReturned,
	EventBookReturnedLate,
	EventNotificationRequested,
	EventDueDateReminder,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
