package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/bookhaven/bookhaven-backend/api/middleware"
	borrowsvc "github.com/bookhaven/bookhaven-backend/internal/borrowing"
	"github.com/bookhaven/bookhaven-backend/pkg/enums"
	pkgerrors "github.com/bookhaven/bookhaven-backend/pkg/errors"
)

func TestBorrowBookSuccess(t *testing.T) {
	bookID := uuid.New()
	userID := uuid.New()
	svc := &testLendingService{
		borrowFn: func(ctx context.Context, input borrowsvc.BorrowInput) (*borrowsvc.BorrowRecordDTO, error) {
			if input.UserID != userID || input.BookID != bookID {
				t.Fatalf("unexpected input %+v", input)
			}
			if input.Role != enums.RoleUser {
				t.Fatalf("unexpected role %s", input.Role)
			}
			return &borrowsvc.BorrowRecordDTO{ID: uuid.New(), UserID: userID, BookID: bookID}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/books/"+bookID.String()+"/borrow", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	req = req.WithContext(middleware.WithRole(req.Context(), string(enums.RoleUser)))
	req = addRouteParam(req, "bookId", bookID.String())
	resp := httptest.NewRecorder()
	BorrowBook(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestBorrowBookRequiresAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/books/"+uuid.NewString()+"/borrow", nil)
	req = addRouteParam(req, "bookId", uuid.NewString())
	resp := httptest.NewRecorder()
	BorrowBook(&testLendingService{}, testLogger())(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestBorrowBookIneligibleReturns422(t *testing.T) {
	decision := borrowsvc.Decision{Eligible: false, Reason: "library card is not approved"}
	svc := &testLendingService{
		borrowFn: func(ctx context.Context, input borrowsvc.BorrowInput) (*borrowsvc.BorrowRecordDTO, error) {
			return nil, pkgerrors.New(pkgerrors.CodeIneligible, decision.Reason).WithDetails(decision)
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/books/"+uuid.NewString()+"/borrow", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	req = addRouteParam(req, "bookId", uuid.NewString())
	resp := httptest.NewRecorder()
	BorrowBook(svc, testLogger())(resp, req)
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
}

func TestReturnLoanSuccess(t *testing.T) {
	recordID := uuid.New()
	userID := uuid.New()
	svc := &testLendingService{
		returnFn: func(ctx context.Context, input borrowsvc.ReturnInput) (*borrowsvc.BorrowRecordDTO, error) {
			if input.RecordID != recordID || input.UserID != userID {
				t.Fatalf("unexpected input %+v", input)
			}
			return &borrowsvc.BorrowRecordDTO{ID: recordID, Status: enums.BorrowStatusReturned}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/loans/"+recordID.String()+"/return", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	req = addRouteParam(req, "recordId", recordID.String())
	resp := httptest.NewRecorder()
	ReturnLoan(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
}

func TestListMyLoansPassesPagination(t *testing.T) {
	userID := uuid.New()
	var captured borrowsvc.ListLoansInput
	svc := &testLendingService{
		listLoansFn: func(ctx context.Context, input borrowsvc.ListLoansInput) (*borrowsvc.LoanListResult, error) {
			captured = input
			return &borrowsvc.LoanListResult{}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/loans?limit=5&cursor=xyz", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	resp := httptest.NewRecorder()
	ListMyLoans(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if captured.UserID != userID {
		t.Fatalf("unexpected user %s", captured.UserID)
	}
	if captured.Pagination.Limit != 5 || captured.Pagination.Cursor != "xyz" {
		t.Fatalf("unexpected pagination %+v", captured.Pagination)
	}
}
