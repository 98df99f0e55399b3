package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/bookhaven/bookhaven-backend/pkg/enums"
)

// UserRegisteredEvent signals a new account so analytics can count signups.
type UserRegisteredEvent struct {
	UserID       uuid.UUID `json:"user_id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	UniversityID int64     `json:"university_id"`
	RegisteredAt time.Time `json:"registered_at"`
}

// BookBorrowedEvent is emitted when a copy is successfully checked out.
type BookBorrowedEvent struct {
	RecordID   uuid.UUID `json:"record_id"`
	UserID     uuid.UUID `json:"user_id"`
	BookID     uuid.UUID `json:"book_id"`
	BorrowDate time.Time `json:"borrow_date"`
	DueDate    time.Time `json:"due_date"`
}

// BookReturnedEvent is emitted when a copy comes back, on time or late.
type BookReturnedEvent struct {
	RecordID   uuid.UUID          `json:"record_id"`
	UserID     uuid.UUID          `json:"user_id"`
	BookID     uuid.UUID          `json:"book_id"`
	ReturnDate time.Time          `json:"return_date"`
	Status     enums.BorrowStatus `json:"status"`
}

// NotificationRequestedEvent tells the notification worker to deliver an email.
type NotificationRequestedEvent struct {
	UserID   uuid.UUID              `json:"user_id"`
	Email    string                 `json:"email"`
	FullName string                 `json:"full_name"`
	Type     enums.NotificationType `json:"type"`
	Subject  string                 `json:"subject"`
	Message  string                 `json:"message"`
}

// DueDateReminderEvent carries the payload for upcoming due date nudges.
// Email and full name ride along so the worker can deliver without a
// database lookup.
type DueDateReminderEvent struct {
	RecordID  uuid.UUID `json:"record_id"`
	UserID    uuid.UUID `json:"user_id"`
	BookID    uuid.UUID `json:"book_id"`
	BookTitle string    `json:"book_title"`
	DueDate   time.Time `json:"due_date"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
}
