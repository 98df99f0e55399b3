package auth

import (
	"github.com/bookhaven/bookhaven-backend/internal/users"
)

// LoginRequest captures the member credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest contains the payload required to open a library account.
type RegisterRequest struct {
	FullName       string `json:"full_name" validate:"required,min=2,max=120"`
	Email          string `json:"email" validate:"required,email"`
	UniversityID   int64  `json:"university_id" validate:"required,gt=0"`
	Password       string `json:"password" validate:"required,min=8,max=128"`
	UniversityCard string `json:"university_card" validate:"required,url"`
}

// RefreshRequest carries the expired access token plus the refresh token to rotate.
type RefreshRequest struct {
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LoginResponse contains the token pair and user produced by a successful
// login or registration.
type LoginResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	User         *users.UserDTO `json:"user"`
}

// RefreshResponse carries the rotated token pair.
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
