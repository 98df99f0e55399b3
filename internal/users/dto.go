package users

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
	"github.com/bookhaven/bookhaven-backend/pkg/enums"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID               uuid.UUID           `json:"id"`
	FullName         string              `json:"full_name"`
	Email            string              `json:"email"`
	UniversityID     int64               `json:"university_id"`
	UniversityCard   string              `json:"university_card"`
	Status           enums.AccountStatus `json:"status"`
	Role             enums.UserRole      `json:"role"`
	FinesDue         decimal.Decimal     `json:"fines_due"`
	IsRestricted     bool                `json:"is_restricted"`
	LastActivityDate *time.Time          `json:"last_activity_date,omitempty"`
	LastLoginAt      *time.Time          `json:"last_login_at,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new member.
type CreateUserDTO struct {
	FullName       string
	Email          string
	UniversityID   int64
	PasswordHash   string
	UniversityCard string
	Status         *enums.AccountStatus
	Role           *enums.UserRole
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}

	return &UserDTO{
		ID:               u.ID,
		FullName:         u.FullName,
		Email:            u.Email,
		UniversityID:     u.UniversityID,
		UniversityCard:   u.UniversityCard,
		Status:           u.Status,
		Role:             u.Role,
		FinesDue:         u.FinesDue,
		IsRestricted:     u.IsRestricted,
		LastActivityDate: u.LastActivityDate,
		LastLoginAt:      u.LastLoginAt,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	status := enums.StatusPending
	if c.Status != nil {
		status = *c.Status
	}
	role := enums.RoleUser
	if c.Role != nil {
		role = *c.Role
	}

	return &models.User{
		FullName:       c.FullName,
		Email:          c.Email,
		UniversityID:   c.UniversityID,
		PasswordHash:   c.PasswordHash,
		UniversityCard: c.UniversityCard,
		Status:         status,
		Role:           role,
		FinesDue:       decimal.Zero,
	}
}
