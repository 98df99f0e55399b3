package borrowing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bookhaven/bookhaven-backend/internal/activity"
	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
	"github.com/bookhaven/bookhaven-backend/pkg/enums"
	pkgerrors "github.com/bookhaven/bookhaven-backend/pkg/errors"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
	"github.com/bookhaven/bookhaven-backend/pkg/outbox"
	"github.com/bookhaven/bookhaven-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type userLoader interface {
	FindByIDTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.User, error)
}

type bookStore interface {
	FindByIDTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Book, error)
	ClaimCopyTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error)
	ReleaseCopyTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type loanStore interface {
	CreateTx(ctx context.Context, tx *gorm.DB, record *models.BorrowRecord) error
	FindByIDTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.BorrowRecord, error)
	CountOpenByUserTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int, error)
	CloseTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, status enums.BorrowStatus, returnedAt time.Time) (bool, error)
	ListByUser(ctx context.Context, input ListLoansInput) (*LoanListResult, error)
}

// Service defines the lending operations.
type Service interface {
	Borrow(ctx context.Context, input BorrowInput) (*BorrowRecordDTO, error)
	Return(ctx context.Context, input ReturnInput) (*BorrowRecordDTO, error)
	ListLoans(ctx context.Context, input ListLoansInput) (*LoanListResult, error)
	EligibilityFor(ctx context.Context, userID, bookID uuid.UUID) (Decision, error)
}

type service struct {
	users  userLoader
	books  bookStore
	loans  loanStore
	tx     txRunner
	outbox outboxPublisher
	policy Policy
	period time.Duration
	logger *logger.Logger
	now    func() time.Time
}

// ServiceParams bundles the orchestrator's dependencies.
type ServiceParams struct {
	Users      userLoader
	Books      bookStore
	Loans      loanStore
	Tx         txRunner
	Outbox     outboxPublisher
	Policy     Policy
	LoanPeriod time.Duration
	Logger     *logger.Logger
}

// NewService builds the lending orchestrator with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Users == nil {
		return nil, fmt.Errorf("users loader required")
	}
	if params.Books == nil {
		return nil, fmt.Errorf("books store required")
	}
	if params.Loans == nil {
		return nil, fmt.Errorf("loans store required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	period := params.LoanPeriod
	if period <= 0 {
		period = 7 * 24 * time.Hour
	}
	return &service{
		users:  params.Users,
		books:  params.Books,
		loans:  params.Loans,
		tx:     params.Tx,
		outbox: params.Outbox,
		policy: params.Policy,
		period: period,
		logger: params.Logger,
		now:    time.Now,
	}, nil
}

// Borrow checks out one copy for the member. Eligibility is re-evaluated
// inside the transaction; the atomic copy claim settles races on the last
// copy. Any failure after the claim rolls the decrement back.
func (s *service) Borrow(ctx context.Context, input BorrowInput) (*BorrowRecordDTO, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.BookID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "book id required")
	}

	var dto *BorrowRecordDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		user, err := s.users.FindByIDTx(ctx, tx, input.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeUnauthorized, "account not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
		}

		book, err := s.books.FindByIDTx(ctx, tx, input.BookID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load book")
		}

		openLoans, err := s.loans.CountOpenByUserTx(ctx, tx, input.UserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count open loans")
		}

		decision := Evaluate(user, book, openLoans, s.policy)
		if !decision.Eligible {
			return pkgerrors.New(pkgerrors.CodeIneligible, decision.Reason).WithDetails(decision)
		}

		claimed, err := s.books.ClaimCopyTx(ctx, tx, book.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim copy")
		}
		if !claimed {
			return pkgerrors.New(pkgerrors.CodeConflict, "no copies available")
		}

		now := s.now().UTC()
		record := &models.BorrowRecord{
			UserID:     user.ID,
			BookID:     book.ID,
			BorrowDate: now,
			DueDate:    activity.Day(now.Add(s.period)),
			Status:     enums.BorrowStatusBorrowed,
		}
		if err := s.loans.CreateTx(ctx, tx, record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create borrow record")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventBookBorrowed,
			AggregateType: enums.AggregateBorrowRecord,
			AggregateID:   record.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: user.ID, Role: string(input.Role)},
			Data: payloads.BookBorrowedEvent{
				RecordID:   record.ID,
				UserID:     user.ID,
				BookID:     book.ID,
				BorrowDate: record.BorrowDate,
				DueDate:    record.DueDate,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}

		dto = recordFromModel(record)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		logCtx := s.logger.WithFields(ctx, map[string]any{
			"user_id": input.UserID.String(),
			"book_id": input.BookID.String(),
		})
		s.logger.Info(logCtx, "book borrowed")
	}
	return dto, nil
}

// Return closes the loan and restores the copy to circulation. A loan past
// its due date closes as LATE_RETURN.
func (s *service) Return(ctx context.Context, input ReturnInput) (*BorrowRecordDTO, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.RecordID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "record id required")
	}

	var dto *BorrowRecordDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		record, err := s.loans.FindByIDTx(ctx, tx, input.RecordID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "loan not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load loan")
		}
		if record.UserID != input.UserID && input.Role != enums.RoleAdmin {
			return pkgerrors.New(pkgerrors.CodeForbidden, "loan does not belong to member")
		}

		now := s.now().UTC()
		today := activity.Day(now)
		status := enums.BorrowStatusReturned
		if today.After(activity.Day(record.DueDate)) {
			status = enums.BorrowStatusLateReturn
		}

		closed, err := s.loans.CloseTx(ctx, tx, record.ID, status, today)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close loan")
		}
		if !closed {
			return pkgerrors.New(pkgerrors.CodeConflict, "loan already returned")
		}

		if err := s.books.ReleaseCopyTx(ctx, tx, record.BookID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release copy")
		}

		eventType := enums.EventBookReturned
		if status == enums.BorrowStatusLateReturn {
			eventType = enums.EventBookReturnedLate
		}
		event := outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateBorrowRecord,
			AggregateID:   record.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.UserID, Role: string(input.Role)},
			Data: payloads.BookReturnedEvent{
				RecordID:   record.ID,
				UserID:     record.UserID,
				BookID:     record.BookID,
				ReturnDate: today,
				Status:     status,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}

		record.Status = status
		record.ReturnDate = &today
		dto = recordFromModel(record)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		logCtx := s.logger.WithFields(ctx, map[string]any{
			"record_id": input.RecordID.String(),
			"status":    dto.Status,
		})
		s.logger.Info(logCtx, "book returned")
	}
	return dto, nil
}

func (s *service) ListLoans(ctx context.Context, input ListLoansInput) (*LoanListResult, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	result, err := s.loans.ListByUser(ctx, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list loans")
	}
	return result, nil
}

// EligibilityFor computes the advisory decision shown on the book detail
// page. The borrow path never trusts it; Borrow re-evaluates in its own
// transaction.
func (s *service) EligibilityFor(ctx context.Context, userID, bookID uuid.UUID) (Decision, error) {
	var decision Decision
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		user, err := s.users.FindByIDTx(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeUnauthorized, "account not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
		}
		book, err := s.books.FindByIDTx(ctx, tx, bookID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load book")
		}
		openLoans, err := s.loans.CountOpenByUserTx(ctx, tx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count open loans")
		}
		decision = Evaluate(user, book, openLoans, s.policy)
		return nil
	})
	if err != nil {
		return Decision{}, err
	}
	return decision, nil
}
