package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Book represents a title in the catalog along with its copy counts.
type Book struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Title           string          `gorm:"type:varchar(255);not null"`
	Author          string          `gorm:"type:varchar(255);not null"`
	Genre           string          `gorm:"type:text;not null"`
	Rating          decimal.Decimal `gorm:"type:numeric(3,1);not null;default:0"`
	CoverURL        string          `gorm:"column:cover_url;type:text;not null"`
	CoverColor      string          `gorm:"column:cover_color;type:varchar(7);not null"`
	Description     string          `gorm:"type:text;not null"`
	TotalCopies     int             `gorm:"column:total_copies;not null;default:1"`
	AvailableCopies int             `gorm:"column:available_copies;not null;default:0"`
	VideoURL        *string         `gorm:"column:video_url;type:text"`
	Summary         string          `gorm:"type:text;not null"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
