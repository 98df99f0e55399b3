package borrowing

import (
	"time"

	"github.com/google/uuid"

	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
	"github.com/bookhaven/bookhaven-backend/pkg/enums"
	"github.com/bookhaven/bookhaven-backend/pkg/pagination"
)

// BorrowRecordDTO is the transport shape for a loan.
type BorrowRecordDTO struct {
	ID         uuid.UUID          `json:"id"`
	UserID     uuid.UUID          `json:"user_id"`
	BookID     uuid.UUID          `json:"book_id"`
	BorrowDate time.Time          `json:"borrow_date"`
	DueDate    time.Time          `json:"due_date"`
	ReturnDate *time.Time         `json:"return_date,omitempty"`
	Status     enums.BorrowStatus `json:"status"`
	CreatedAt  time.Time          `json:"created_at"`
}

// LoanDTO joins a loan with its catalog title for the profile view.
type LoanDTO struct {
	BorrowRecordDTO
	BookTitle  string `json:"book_title"`
	BookAuthor string `json:"book_author"`
	CoverURL   string `json:"cover_url"`
}

// BorrowInput captures a checkout request.
type BorrowInput struct {
	UserID uuid.UUID
	BookID uuid.UUID
	Role   enums.UserRole
}

// ReturnInput captures a return request.
type ReturnInput struct {
	UserID   uuid.UUID
	RecordID uuid.UUID
	Role     enums.UserRole
}

// ListLoansInput paginates a member's loan history.
type ListLoansInput struct {
	UserID     uuid.UUID
	Pagination pagination.Params
}

// LoanListResult bundles one page of loans with the follow-up cursor.
type LoanListResult struct {
	Loans      []LoanDTO `json:"loans"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

func recordFromModel(r *models.BorrowRecord) *BorrowRecordDTO {
	if r == nil {
		return nil
	}

	return &BorrowRecordDTO{
		ID:         r.ID,
		UserID:     r.UserID,
		BookID:     r.BookID,
		BorrowDate: r.BorrowDate,
		DueDate:    r.DueDate,
		ReturnDate: r.ReturnDate,
		Status:     r.Status,
		CreatedAt:  r.CreatedAt,
	}
}
