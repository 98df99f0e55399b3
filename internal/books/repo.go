package books

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
	"github.com/bookhaven/bookhaven-backend/pkg/pagination"
)

// Repository exposes catalog persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a books repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new title and returns the persisted model.
func (r *Repository) Create(ctx context.Context, dto CreateBookDTO) (*models.Book, error) {
	book := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(book).Error; err != nil {
		return nil, err
	}
	return book, nil
}

// FindByID loads a title by its UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	var book models.Book
	if err := r.db.WithContext(ctx).First(&book, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

// FindByIDTx loads a title inside an existing transaction.
func (r *Repository) FindByIDTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Book, error) {
	var book models.Book
	if err := tx.WithContext(ctx).First(&book, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

// Update applies partial changes to a title.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, dto UpdateBookDTO) error {
	updates := dto.changes()
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Book{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// Delete removes a title from the catalog.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.Book{}).
		Error
}

// ClaimCopyTx decrements available_copies when stock remains. The guard in
// the WHERE clause makes concurrent claims on the last copy race-safe: the
// loser sees zero rows affected.
func (r *Repository) ClaimCopyTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error) {
	result := tx.WithContext(ctx).Exec(`
		UPDATE books
		SET available_copies = available_copies - 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND available_copies > 0
	`, id)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ReleaseCopyTx returns a copy to circulation, capped at total_copies.
func (r *Repository) ReleaseCopyTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return tx.WithContext(ctx).Exec(`
		UPDATE books
		SET available_copies = available_copies + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND available_copies < total_copies
	`, id).Error
}

// List returns one page of titles ordered newest-first with a lookahead cursor.
func (r *Repository) List(ctx context.Context, input ListBooksInput) (*BookListResult, error) {
	pageSize := pagination.NormalizeLimit(input.Pagination.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(input.Pagination.Limit)

	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, err
	}

	qb := r.db.WithContext(ctx).Model(&models.Book{})

	filter := input.Filters
	if genre := strings.TrimSpace(filter.Genre); genre != "" {
		qb = qb.Where("LOWER(genre) = ?", strings.ToLower(genre))
	}
	if filter.AvailableOnly {
		qb = qb.Where("available_copies > 0")
	}
	if search := strings.TrimSpace(filter.Query); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		qb = qb.Where("(LOWER(title) LIKE ? OR LOWER(author) LIKE ?)", pattern, pattern)
	}

	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var records []models.Book
	if err := qb.Order("created_at DESC").Order("id DESC").Limit(limitWithBuffer).Find(&records).Error; err != nil {
		return nil, err
	}

	rows, hasMore := pagination.TrimPage(records, pageSize)

	nextCursor := ""
	if hasMore && len(rows) > 0 {
		last := rows[len(rows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	dtos := make([]BookDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, *FromModel(&rows[i]))
	}

	return &BookListResult{
		Books:      dtos,
		NextCursor: nextCursor,
	}, nil
}
