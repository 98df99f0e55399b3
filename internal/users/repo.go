package users

import (
	"context"
	"time"

	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new user and returns the persisted model.
func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// CreateTx inserts a new user inside an existing transaction.
func (r *Repository) CreateTx(ctx context.Context, tx *gorm.DB, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := tx.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByEmail retrieves the user matching the provided email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmailTx retrieves the user matching the email inside an existing
// transaction.
func (r *Repository) FindByEmailTx(ctx context.Context, tx *gorm.DB, email string) (*models.User, error) {
	var user models.User
	if err := tx.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByIDTx loads a user inside an existing transaction.
func (r *Repository) FindByIDTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := tx.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateLastLogin refreshes the user's last_login_at timestamp.
func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}

// StampActivity moves last_activity_date forward to the provided calendar day.
// The guard keeps repeat requests on the same day from issuing redundant writes.
func (r *Repository) StampActivity(ctx context.Context, id uuid.UUID, day time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Where("last_activity_date IS NULL OR last_activity_date < ?", day.Format("2006-01-02")).
		UpdateColumn("last_activity_date", day.Format("2006-01-02"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
