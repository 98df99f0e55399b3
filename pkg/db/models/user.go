package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bookhaven/bookhaven-backend/pkg/enums"
)

// User represents the canonical library member entity.
type User struct {
	ID               uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	FullName         string              `gorm:"column:full_name;type:varchar(255);not null"`
	Email            string              `gorm:"type:text;not null;uniqueIndex"`
	UniversityID     int64               `gorm:"column:university_id;not null;uniqueIndex"`
	PasswordHash     string              `gorm:"column:password_hash;not null"`
	UniversityCard   string              `gorm:"column:university_card;type:text;not null"`
	Status           enums.AccountStatus `gorm:"column:status;type:status;default:PENDING"`
	Role             enums.UserRole      `gorm:"column:role;type:role;default:USER"`
	FinesDue         decimal.Decimal     `gorm:"column:fines_due;type:numeric(10,2);not null;default:0"`
	IsRestricted     bool                `gorm:"column:is_restricted;not null;default:false"`
	LastActivityDate *time.Time          `gorm:"column:last_activity_date;type:date"`
	LastLoginAt      *time.Time          `gorm:"column:last_login_at"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
