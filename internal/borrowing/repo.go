package borrowing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
	"github.com/bookhaven/bookhaven-backend/pkg/enums"
	"github.com/bookhaven/bookhaven-backend/pkg/pagination"
)

// Repository exposes loan persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a borrowing repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateTx inserts a loan inside an existing transaction.
func (r *Repository) CreateTx(ctx context.Context, tx *gorm.DB, record *models.BorrowRecord) error {
	return tx.WithContext(ctx).Create(record).Error
}

// FindByID loads a loan by its UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.BorrowRecord, error) {
	var record models.BorrowRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByIDTx loads a loan inside an existing transaction.
func (r *Repository) FindByIDTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.BorrowRecord, error) {
	var record models.BorrowRecord
	if err := tx.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// CountOpenByUserTx counts a member's loans that are still out, inside an
// existing transaction so the orchestrator's eligibility check and insert
// see the same snapshot.
func (r *Repository) CountOpenByUserTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int, error) {
	var count int64
	err := tx.WithContext(ctx).
		Model(&models.BorrowRecord{}).
		Where("user_id = ?", userID).
		Where("status = ?", enums.BorrowStatusBorrowed).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// CloseTx transitions a BORROWED loan to its terminal status. The status
// guard makes double returns a detectable no-op: zero rows affected.
func (r *Repository) CloseTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, status enums.BorrowStatus, returnedAt time.Time) (bool, error) {
	result := tx.WithContext(ctx).
		Model(&models.BorrowRecord{}).
		Where("id = ?", id).
		Where("status = ?", enums.BorrowStatusBorrowed).
		Updates(map[string]any{
			"status":      status,
			"return_date": returnedAt.Format("2006-01-02"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListByUser returns one page of a member's loans, newest first.
func (r *Repository) ListByUser(ctx context.Context, input ListLoansInput) (*LoanListResult, error) {
	pageSize := pagination.NormalizeLimit(input.Pagination.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(input.Pagination.Limit)

	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, err
	}

	qb := r.db.WithContext(ctx).
		Table("borrow_records br").
		Select("br.*, b.title AS book_title, b.author AS book_author, b.cover_url").
		Joins("JOIN books b ON b.id = br.book_id").
		Where("br.user_id = ?", input.UserID)

	if cursor != nil {
		qb = qb.Where("(br.created_at < ?) OR (br.created_at = ? AND br.id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var records []loanRecord
	if err := qb.Order("br.created_at DESC").Order("br.id DESC").Limit(limitWithBuffer).Scan(&records).Error; err != nil {
		return nil, err
	}

	rows, hasMore := pagination.TrimPage(records, pageSize)

	nextCursor := ""
	if hasMore && len(rows) > 0 {
		last := rows[len(rows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	loans := make([]LoanDTO, 0, len(rows))
	for _, record := range rows {
		loans = append(loans, record.toDTO())
	}

	return &LoanListResult{
		Loans:      loans,
		NextCursor: nextCursor,
	}, nil
}

// DueReminderRow carries everything a due date reminder event needs, so the
// worker can deliver without further lookups.
type DueReminderRow struct {
	RecordID  uuid.UUID
	UserID    uuid.UUID
	BookID    uuid.UUID
	BookTitle string
	DueDate   time.Time
	Email     string
	FullName  string
}

// DueForReminder returns open loans whose due date falls inside [from, to),
// joined with the member and book details the reminder needs.
func (r *Repository) DueForReminder(ctx context.Context, from, to time.Time) ([]DueReminderRow, error) {
	var rows []DueReminderRow
	err := r.db.WithContext(ctx).
		Table("borrow_records br").
		Select("br.id AS record_id, br.user_id, br.book_id, b.title AS book_title, br.due_date, u.email, u.full_name").
		Joins("JOIN books b ON b.id = br.book_id").
		Joins("JOIN users u ON u.id = br.user_id").
		Where("br.status = ?", enums.BorrowStatusBorrowed).
		Where("br.due_date >= ? AND br.due_date < ?", from.Format("2006-01-02"), to.Format("2006-01-02")).
		Order("br.due_date ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

type loanRecord struct {
	models.BorrowRecord
	BookTitle  string
	BookAuthor string
	CoverURL   string
}

func (l loanRecord) toDTO() LoanDTO {
	return LoanDTO{
		BorrowRecordDTO: *recordFromModel(&l.BorrowRecord),
		BookTitle:       l.BookTitle,
		BookAuthor:      l.BookAuthor,
		CoverURL:        l.CoverURL,
	}
}
