package books

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
	"github.com/bookhaven/bookhaven-backend/pkg/pagination"
)

// BookDTO is the transport shape for catalog titles.
type BookDTO struct {
	ID              uuid.UUID       `json:"id"`
	Title           string          `json:"title"`
	Author          string          `json:"author"`
	Genre           string          `json:"genre"`
	Rating          decimal.Decimal `json:"rating"`
	CoverURL        string          `json:"cover_url"`
	CoverColor      string          `json:"cover_color"`
	Description     string          `json:"description"`
	TotalCopies     int             `json:"total_copies"`
	AvailableCopies int             `json:"available_copies"`
	VideoURL        *string         `json:"video_url,omitempty"`
	Summary         string          `json:"summary"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// CreateBookDTO holds the fields required to add a title to the catalog.
type CreateBookDTO struct {
	Title           string          `json:"title" validate:"required,max=255"`
	Author          string          `json:"author" validate:"required,max=255"`
	Genre           string          `json:"genre" validate:"required"`
	Rating          decimal.Decimal `json:"rating"`
	CoverURL        string          `json:"cover_url" validate:"required,url"`
	CoverColor      string          `json:"cover_color" validate:"required,hexcolor"`
	Description     string          `json:"description" validate:"required"`
	TotalCopies     int             `json:"total_copies" validate:"required,min=1"`
	AvailableCopies *int            `json:"available_copies,omitempty" validate:"omitempty,min=0"`
	VideoURL        *string         `json:"video_url,omitempty" validate:"omitempty,url"`
	Summary         string          `json:"summary" validate:"required"`
}

// UpdateBookDTO carries partial catalog updates. Nil fields are left untouched.
type UpdateBookDTO struct {
	Title       *string          `json:"title,omitempty" validate:"omitempty,max=255"`
	Author      *string          `json:"author,omitempty" validate:"omitempty,max=255"`
	Genre       *string          `json:"genre,omitempty"`
	Rating      *decimal.Decimal `json:"rating,omitempty"`
	CoverURL    *string          `json:"cover_url,omitempty" validate:"omitempty,url"`
	CoverColor  *string          `json:"cover_color,omitempty" validate:"omitempty,hexcolor"`
	Description *string          `json:"description,omitempty"`
	VideoURL    *string          `json:"video_url,omitempty" validate:"omitempty,url"`
	Summary     *string          `json:"summary,omitempty"`
}

// ListBooksFilters describe the supported filter knobs for the catalog endpoint.
type ListBooksFilters struct {
	Genre         string `json:"genre,omitempty"`
	Query         string `json:"q,omitempty"`
	AvailableOnly bool   `json:"available_only,omitempty"`
}

// ListBooksInput captures the inputs needed to paginate/filter the catalog.
type ListBooksInput struct {
	Filters    ListBooksFilters
	Pagination pagination.Params
}

// BookListResult bundles one page of titles with the follow-up cursor.
type BookListResult struct {
	Books      []BookDTO `json:"books"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

func FromModel(b *models.Book) *BookDTO {
	if b == nil {
		return nil
	}

	return &BookDTO{
		ID:              b.ID,
		Title:           b.Title,
		Author:          b.Author,
		Genre:           b.Genre,
		Rating:          b.Rating,
		CoverURL:        b.CoverURL,
		CoverColor:      b.CoverColor,
		Description:     b.Description,
		TotalCopies:     b.TotalCopies,
		AvailableCopies: b.AvailableCopies,
		VideoURL:        b.VideoURL,
		Summary:         b.Summary,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

func (c CreateBookDTO) ToModel() *models.Book {
	available := c.TotalCopies
	if c.AvailableCopies != nil {
		available = *c.AvailableCopies
	}

	return &models.Book{
		Title:           c.Title,
		Author:          c.Author,
		Genre:           c.Genre,
		Rating:          c.Rating,
		CoverURL:        c.CoverURL,
		CoverColor:      c.CoverColor,
		Description:     c.Description,
		TotalCopies:     c.TotalCopies,
		AvailableCopies: available,
		VideoURL:        c.VideoURL,
		Summary:         c.Summary,
	}
}

func (u UpdateBookDTO) changes() map[string]any {
	updates := map[string]any{}
	if u.Title != nil {
		updates["title"] = *u.Title
	}
	if u.Author != nil {
		updates["author"] = *u.Author
	}
	if u.Genre != nil {
		updates["genre"] = *u.Genre
	}
	if u.Rating != nil {
		updates["rating"] = *u.Rating
	}
	if u.CoverURL != nil {
		updates["cover_url"] = *u.CoverURL
	}
	if u.CoverColor != nil {
		updates["cover_color"] = *u.CoverColor
	}
	if u.Description != nil {
		updates["description"] = *u.Description
	}
	if u.VideoURL != nil {
		updates["video_url"] = *u.VideoURL
	}
	if u.Summary != nil {
		updates["summary"] = *u.Summary
	}
	return updates
}
