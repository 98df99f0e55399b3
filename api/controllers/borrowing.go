package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/bookhaven/bookhaven-backend/api/middleware"
	"github.com/bookhaven/bookhaven-backend/api/responses"
	"github.com/bookhaven/bookhaven-backend/api/validators"
	borrowsvc "github.com/bookhaven/bookhaven-backend/internal/borrowing"
	"github.com/bookhaven/bookhaven-backend/pkg/enums"
	pkgerrors "github.com/bookhaven/bookhaven-backend/pkg/errors"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
	"github.com/bookhaven/bookhaven-backend/pkg/pagination"
)

// BorrowBook checks out one copy of a title for the caller.
func BorrowBook(svc borrowsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "lending service unavailable"))
			return
		}

		userID, role, err := callerIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bookID, err := parseIDParam(r, "bookId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.Borrow(r.Context(), borrowsvc.BorrowInput{
			UserID: userID,
			BookID: bookID,
			Role:   role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, record)
	}
}

// ReturnLoan closes an open loan and restores the copy.
func ReturnLoan(svc borrowsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "lending service unavailable"))
			return
		}

		userID, role, err := callerIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		recordID, err := parseIDParam(r, "recordId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.Return(r.Context(), borrowsvc.ReturnInput{
			UserID:   userID,
			RecordID: recordID,
			Role:     role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

// ListMyLoans returns the caller's borrow history, newest first.
func ListMyLoans(svc borrowsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "lending service unavailable"))
			return
		}

		userID, _, err := callerIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListLoans(r.Context(), borrowsvc.ListLoansInput{
			UserID: userID,
			Pagination: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func callerIdentity(r *http.Request) (uuid.UUID, enums.UserRole, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, "", pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	role := enums.UserRole(middleware.RoleFromContext(r.Context()))
	return userID, role, nil
}
