package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bookhaven/bookhaven-backend/pkg/enums"
)

// BorrowRecord ties a user to a borrowed copy and its lending window.
type BorrowRecord struct {
	ID         uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID     uuid.UUID          `gorm:"column:user_id;type:uuid;not null;index"`
	BookID     uuid.UUID          `gorm:"column:book_id;type:uuid;not null;index"`
	BorrowDate time.Time          `gorm:"column:borrow_date;type:timestamptz;not null;default:now()"`
	DueDate    time.Time          `gorm:"column:due_date;type:date;not null"`
	ReturnDate *time.Time         `gorm:"column:return_date;type:date"`
	Status     enums.BorrowStatus `gorm:"column:status;type:borrow_status;not null;default:BORROWED"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
}
