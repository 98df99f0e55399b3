package books

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/bookhaven/bookhaven-backend/pkg/errors"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
)

// Reader covers the catalog read paths used by controllers.
type Reader interface {
	Get(ctx context.Context, id uuid.UUID) (*BookDTO, error)
	List(ctx context.Context, input ListBooksInput) (*BookListResult, error)
}

// Service defines catalog operations beyond raw repository access.
type Service interface {
	Reader
	Create(ctx context.Context, dto CreateBookDTO) (*BookDTO, error)
	Update(ctx context.Context, id uuid.UUID, dto UpdateBookDTO) (*BookDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo   *Repository
	logger *logger.Logger
}

// NewService builds the catalog service with the required dependencies.
func NewService(repo *Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("books repository required")
	}
	return &service{repo: repo, logger: logg}, nil
}

func (s *service) Create(ctx context.Context, dto CreateBookDTO) (*BookDTO, error) {
	if dto.AvailableCopies != nil && *dto.AvailableCopies > dto.TotalCopies {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "available copies cannot exceed total copies")
	}

	book, err := s.repo.Create(ctx, dto)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create book")
	}

	if s.logger != nil {
		s.logger.Info(s.logger.WithBookID(ctx, book.ID.String()), "book added to catalog")
	}
	return FromModel(book), nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*BookDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "book id required")
	}

	book, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load book")
	}
	return FromModel(book), nil
}

func (s *service) List(ctx context.Context, input ListBooksInput) (*BookListResult, error) {
	result, err := s.repo.List(ctx, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list books")
	}
	return result, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, dto UpdateBookDTO) (*BookDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "book id required")
	}

	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load book")
	}

	if err := s.repo.Update(ctx, id, dto); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update book")
	}

	book, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload book")
	}
	return FromModel(book), nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "book id required")
	}

	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load book")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete book")
	}

	if s.logger != nil {
		s.logger.Info(s.logger.WithBookID(ctx, id.String()), "book removed from catalog")
	}
	return nil
}
