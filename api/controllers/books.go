package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bookhaven/bookhaven-backend/api/middleware"
	"github.com/bookhaven/bookhaven-backend/api/responses"
	"github.com/bookhaven/bookhaven-backend/api/validators"
	bookssvc "github.com/bookhaven/bookhaven-backend/internal/books"
	borrowsvc "github.com/bookhaven/bookhaven-backend/internal/borrowing"
	pkgerrors "github.com/bookhaven/bookhaven-backend/pkg/errors"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
	"github.com/bookhaven/bookhaven-backend/pkg/pagination"
)

const maxSearchQueryLen = 255

// ListBooks returns one page of the catalog with optional filters.
func ListBooks(svc bookssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "books service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		availableOnly, err := validators.ParseQueryBool(r, "available")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := bookssvc.ListBooksInput{
			Filters: bookssvc.ListBooksFilters{
				Genre:         validators.SanitizeString(r.URL.Query().Get("genre"), maxSearchQueryLen),
				Query:         validators.SanitizeString(r.URL.Query().Get("q"), maxSearchQueryLen),
				AvailableOnly: availableOnly,
			},
			Pagination: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			},
		}

		result, err := svc.List(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type bookDetailResponse struct {
	Book        *bookssvc.BookDTO   `json:"book"`
	Eligibility *borrowsvc.Decision `json:"eligibility,omitempty"`
}

// GetBook returns one title plus the caller's borrow eligibility. The
// eligibility block is advisory; the borrow endpoint re-checks it.
func GetBook(books bookssvc.Service, lending borrowsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if books == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "books service unavailable"))
			return
		}

		bookID, err := parseIDParam(r, "bookId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		book, err := books.Get(r.Context(), bookID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := bookDetailResponse{Book: book}
		if lending != nil {
			if userID, err := uuid.Parse(middleware.UserIDFromContext(r.Context())); err == nil {
				decision, err := lending.EligibilityFor(r.Context(), userID, bookID)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, err)
					return
				}
				resp.Eligibility = &decision
			}
		}

		responses.WriteSuccess(w, resp)
	}
}

// CreateBook adds a title to the catalog. Admin only.
func CreateBook(svc bookssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "books service unavailable"))
			return
		}

		var payload bookssvc.CreateBookDTO
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		book, err := svc.Create(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, book)
	}
}

// UpdateBook applies a partial update to a title. Admin only.
func UpdateBook(svc bookssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "books service unavailable"))
			return
		}

		bookID, err := parseIDParam(r, "bookId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload bookssvc.UpdateBookDTO
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		book, err := svc.Update(r.Context(), bookID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, book)
	}
}

// DeleteBook removes a title from the catalog. Admin only.
func DeleteBook(svc bookssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "books service unavailable"))
			return
		}

		bookID, err := parseIDParam(r, "bookId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), bookID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

func parseIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "missing "+name)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return id, nil
}
