package borrowing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
	"github.com/bookhaven/bookhaven-backend/pkg/enums"
	pkgerrors "github.com/bookhaven/bookhaven-backend/pkg/errors"
	"github.com/bookhaven/bookhaven-backend/pkg/outbox"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeOutbox struct {
	events []outbox.DomainEvent
}

func (f *fakeOutbox) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

type fakeUsers struct {
	user *models.User
}

func (f *fakeUsers) FindByIDTx(_ context.Context, _ *gorm.DB, id uuid.UUID) (*models.User, error) {
	if f.user == nil || f.user.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return f.user, nil
}

type fakeBooks struct {
	book     *models.Book
	claimOK  bool
	claims   int
	releases int
}

func (f *fakeBooks) FindByIDTx(_ context.Context, _ *gorm.DB, id uuid.UUID) (*models.Book, error) {
	if f.book == nil || f.book.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return f.book, nil
}

func (f *fakeBooks) ClaimCopyTx(_ context.Context, _ *gorm.DB, _ uuid.UUID) (bool, error) {
	f.claims++
	return f.claimOK, nil
}

func (f *fakeBooks) ReleaseCopyTx(_ context.Context, _ *gorm.DB, _ uuid.UUID) error {
	f.releases++
	return nil
}

type fakeLoans struct {
	record    *models.BorrowRecord
	openCount int
	created   []*models.BorrowRecord
	closedAs  enums.BorrowStatus
	closeOK   bool
}

func (f *fakeLoans) CreateTx(_ context.Context, _ *gorm.DB, record *models.BorrowRecord) error {
	record.ID = uuid.New()
	f.created = append(f.created, record)
	return nil
}

func (f *fakeLoans) FindByIDTx(_ context.Context, _ *gorm.DB, id uuid.UUID) (*models.BorrowRecord, error) {
	if f.record == nil || f.record.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *f.record
	return &clone, nil
}

func (f *fakeLoans) CountOpenByUserTx(_ context.Context, _ *gorm.DB, _ uuid.UUID) (int, error) {
	return f.openCount, nil
}

func (f *fakeLoans) CloseTx(_ context.Context, _ *gorm.DB, _ uuid.UUID, status enums.BorrowStatus, _ time.Time) (bool, error) {
	if !f.closeOK {
		return false, nil
	}
	f.closedAs = status
	return true, nil
}

func (f *fakeLoans) ListByUser(_ context.Context, _ ListLoansInput) (*LoanListResult, error) {
	return &LoanListResult{}, nil
}

func eligibleFixture() (*fakeUsers, *fakeBooks, *fakeLoans, *fakeOutbox) {
	user := &models.User{
		ID:       uuid.New(),
		Status:   enums.StatusApproved,
		FinesDue: decimal.Zero,
	}
	book := &models.Book{
		ID:              uuid.New(),
		TotalCopies:     3,
		AvailableCopies: 2,
	}
	return &fakeUsers{user: user}, &fakeBooks{book: book, claimOK: true}, &fakeLoans{closeOK: true}, &fakeOutbox{}
}

func newTestService(t *testing.T, users *fakeUsers, books *fakeBooks, loans *fakeLoans, ob *fakeOutbox, now time.Time) *service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Users:      users,
		Books:      books,
		Loans:      loans,
		Tx:         fakeTxRunner{},
		Outbox:     ob,
		Policy:     Policy{MaxConcurrentLoans: 5},
		LoanPeriod: 7 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	impl := svc.(*service)
	impl.now = func() time.Time { return now }
	return impl
}

func TestBorrowSuccess(t *testing.T) {
	t.Parallel()

	users, books, loans, ob := eligibleFixture()
	now := time.Date(2025, time.April, 1, 10, 0, 0, 0, time.UTC)
	svc := newTestService(t, users, books, loans, ob, now)

	dto, err := svc.Borrow(context.Background(), BorrowInput{
		UserID: users.user.ID,
		BookID: books.book.ID,
		Role:   enums.RoleUser,
	})
	if err != nil {
		t.Fatalf("Borrow: %v", err)
	}

	if dto.Status != enums.BorrowStatusBorrowed {
		t.Fatalf("expected BORROWED, got %s", dto.Status)
	}
	wantDue := time.Date(2025, time.April, 8, 0, 0, 0, 0, time.UTC)
	if !dto.DueDate.Equal(wantDue) {
		t.Fatalf("expected due %v, got %v", wantDue, dto.DueDate)
	}
	if books.claims != 1 {
		t.Fatalf("expected 1 claim, got %d", books.claims)
	}
	if len(ob.events) != 1 || ob.events[0].EventType != enums.EventBookBorrowed {
		t.Fatalf("expected one book_borrowed event, got %v", ob.events)
	}
}

func TestBorrowIneligibleSkipsClaim(t *testing.T) {
	t.Parallel()

	users, books, loans, ob := eligibleFixture()
	users.user.IsRestricted = true
	svc := newTestService(t, users, books, loans, ob, time.Now())

	_, err := svc.Borrow(context.Background(), BorrowInput{UserID: users.user.ID, BookID: books.book.ID})
	if !pkgerrors.Is(err, pkgerrors.CodeIneligible) {
		t.Fatalf("expected INELIGIBLE, got %v", err)
	}
	if books.claims != 0 {
		t.Fatalf("expected no claim attempts, got %d", books.claims)
	}
	if len(loans.created) != 0 {
		t.Fatal("expected no loan rows")
	}
	if len(ob.events) != 0 {
		t.Fatal("expected no outbox events")
	}
}

func TestBorrowConflictWhenLastCopyLost(t *testing.T) {
	t.Parallel()

	users, books, loans, ob := eligibleFixture()
	// Stock looked positive at read time but another borrower claimed it.
	books.claimOK = false
	svc := newTestService(t, users, books, loans, ob, time.Now())

	_, err := svc.Borrow(context.Background(), BorrowInput{UserID: users.user.ID, BookID: books.book.ID})
	if !pkgerrors.Is(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
	if len(loans.created) != 0 {
		t.Fatal("expected no loan rows after losing the race")
	}
}

func TestBorrowAtLoanLimit(t *testing.T) {
	t.Parallel()

	users, books, loans, ob := eligibleFixture()
	loans.openCount = 5
	svc := newTestService(t, users, books, loans, ob, time.Now())

	_, err := svc.Borrow(context.Background(), BorrowInput{UserID: users.user.ID, BookID: books.book.ID})
	if !pkgerrors.Is(err, pkgerrors.CodeIneligible) {
		t.Fatalf("expected INELIGIBLE, got %v", err)
	}
}

func TestReturnOnTime(t *testing.T) {
	t.Parallel()

	users, books, loans, ob := eligibleFixture()
	now := time.Date(2025, time.April, 5, 9, 0, 0, 0, time.UTC)
	loans.record = &models.BorrowRecord{
		ID:      uuid.New(),
		UserID:  users.user.ID,
		BookID:  books.book.ID,
		DueDate: time.Date(2025, time.April, 8, 0, 0, 0, 0, time.UTC),
		Status:  enums.BorrowStatusBorrowed,
	}
	svc := newTestService(t, users, books, loans, ob, now)

	dto, err := svc.Return(context.Background(), ReturnInput{
		UserID:   users.user.ID,
		RecordID: loans.record.ID,
		Role:     enums.RoleUser,
	})
	if err != nil {
		t.Fatalf("Return: %v", err)
	}

	if dto.Status != enums.BorrowStatusReturned {
		t.Fatalf("expected RETURNED, got %s", dto.Status)
	}
	if books.releases != 1 {
		t.Fatalf("expected 1 release, got %d", books.releases)
	}
	if len(ob.events) != 1 || ob.events[0].EventType != enums.EventBookReturned {
		t.Fatalf("expected one book_returned event, got %v", ob.events)
	}
}

func TestReturnPastDueClosesLate(t *testing.T) {
	t.Parallel()

	users, books, loans, ob := eligibleFixture()
	now := time.Date(2025, time.April, 12, 9, 0, 0, 0, time.UTC)
	loans.record = &models.BorrowRecord{
		ID:      uuid.New(),
		UserID:  users.user.ID,
		BookID:  books.book.ID,
		DueDate: time.Date(2025, time.April, 8, 0, 0, 0, 0, time.UTC),
		Status:  enums.BorrowStatusBorrowed,
	}
	svc := newTestService(t, users, books, loans, ob, now)

	dto, err := svc.Return(context.Background(), ReturnInput{
		UserID:   users.user.ID,
		RecordID: loans.record.ID,
	})
	if err != nil {
		t.Fatalf("Return: %v", err)
	}

	if dto.Status != enums.BorrowStatusLateReturn {
		t.Fatalf("expected LATE_RETURN, got %s", dto.Status)
	}
	if loans.closedAs != enums.BorrowStatusLateReturn {
		t.Fatalf("expected close as LATE_RETURN, got %s", loans.closedAs)
	}
	if len(ob.events) != 1 || ob.events[0].EventType != enums.EventBookReturnedLate {
		t.Fatalf("expected one book_returned_late event, got %v", ob.events)
	}
}

func TestReturnAlreadyClosedConflicts(t *testing.T) {
	t.Parallel()

	users, books, loans, ob := eligibleFixture()
	loans.closeOK = false
	loans.record = &models.BorrowRecord{
		ID:      uuid.New(),
		UserID:  users.user.ID,
		BookID:  books.book.ID,
		DueDate: time.Now().AddDate(0, 0, 3),
		Status:  enums.BorrowStatusReturned,
	}
	svc := newTestService(t, users, books, loans, ob, time.Now())

	_, err := svc.Return(context.Background(), ReturnInput{UserID: users.user.ID, RecordID: loans.record.ID})
	if !pkgerrors.Is(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
	if books.releases != 0 {
		t.Fatal("expected no release after failed close")
	}
}

func TestReturnForeignLoanForbidden(t *testing.T) {
	t.Parallel()

	users, books, loans, ob := eligibleFixture()
	loans.record = &models.BorrowRecord{
		ID:      uuid.New(),
		UserID:  uuid.New(),
		BookID:  books.book.ID,
		DueDate: time.Now().AddDate(0, 0, 3),
		Status:  enums.BorrowStatusBorrowed,
	}
	svc := newTestService(t, users, books, loans, ob, time.Now())

	_, err := svc.Return(context.Background(), ReturnInput{
		UserID:   users.user.ID,
		RecordID: loans.record.ID,
		Role:     enums.RoleUser,
	})
	if !pkgerrors.Is(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}
}

func TestEligibilityForAdvisoryDecision(t *testing.T) {
	t.Parallel()

	users, books, loans, ob := eligibleFixture()
	books.book.AvailableCopies = 0
	svc := newTestService(t, users, books, loans, ob, time.Now())

	decision, err := svc.EligibilityFor(context.Background(), users.user.ID, books.book.ID)
	if err != nil {
		t.Fatalf("EligibilityFor: %v", err)
	}
	if decision.Eligible {
		t.Fatal("expected ineligible")
	}
	if decision.Reason != reasonNoCopies {
		t.Fatalf("expected %q, got %q", reasonNoCopies, decision.Reason)
	}
}
