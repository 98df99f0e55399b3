package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/bookhaven/bookhaven-backend/internal/users"
	"github.com/bookhaven/bookhaven-backend/pkg/config"
	dbpkg "github.com/bookhaven/bookhaven-backend/pkg/db"
	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
	"github.com/bookhaven/bookhaven-backend/pkg/enums"
	pkgerrors "github.com/bookhaven/bookhaven-backend/pkg/errors"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
	"github.com/bookhaven/bookhaven-backend/pkg/outbox"
	"github.com/bookhaven/bookhaven-backend/pkg/outbox/payloads"
	"github.com/bookhaven/bookhaven-backend/pkg/security"
)

// RegisterService handles the signup transaction plus the post-commit
// onboarding trigger and auto-login.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) (*LoginResponse, error)
}

type registerTxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type registerUserStore interface {
	FindByEmailTx(ctx context.Context, tx *gorm.DB, email string) (*models.User, error)
	CreateTx(ctx context.Context, tx *gorm.DB, dto users.CreateUserDTO) (*models.User, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type onboardingStarter interface {
	StartOnboarding(ctx context.Context, user *models.User) error
}

// RegisterServiceParams packages the dependencies for the registration flow.
type RegisterServiceParams struct {
	DB             registerTxRunner
	Users          registerUserStore
	Outbox         outboxPublisher
	Onboarding     onboardingStarter
	SessionManager sessionManager
	PasswordConfig config.PasswordConfig
	JWTConfig      config.JWTConfig
	Logger         *logger.Logger
}

type registerService struct {
	db          registerTxRunner
	users       registerUserStore
	outbox      outboxPublisher
	onboarding  onboardingStarter
	session     sessionManager
	passwordCfg config.PasswordConfig
	jwtCfg      config.JWTConfig
	logg        *logger.Logger
	now         func() time.Time
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database client required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if params.Onboarding == nil {
		return nil, fmt.Errorf("onboarding service required")
	}
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &registerService{
		db:          params.DB,
		users:       params.Users,
		outbox:      params.Outbox,
		onboarding:  params.Onboarding,
		session:     params.SessionManager,
		passwordCfg: params.PasswordConfig,
		jwtCfg:      params.JWTConfig,
		logg:        params.Logger,
		now:         time.Now,
	}, nil
}

func (s *registerService) Register(ctx context.Context, req RegisterRequest) (*LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	now := s.now().UTC()
	var user *models.User
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.users.FindByEmailTx(ctx, tx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}

		created, err := s.users.CreateTx(ctx, tx, users.CreateUserDTO{
			FullName:       strings.TrimSpace(req.FullName),
			Email:          email,
			UniversityID:   req.UniversityID,
			PasswordHash:   passwordHash,
			UniversityCard: strings.TrimSpace(req.UniversityCard),
		})
		if err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_users_email") {
				return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}
		user = created

		event := outbox.DomainEvent{
			EventType:     enums.EventUserRegistered,
			AggregateType: enums.AggregateUser,
			AggregateID:   user.ID,
			Actor:         &outbox.ActorRef{UserID: user.ID, Role: string(user.Role)},
			Data: payloads.UserRegisteredEvent{
				UserID:       user.ID,
				Email:        user.Email,
				FullName:     user.FullName,
				UniversityID: user.UniversityID,
				RegisteredAt: now,
			},
			Version:    1,
			OccurredAt: now,
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue registration event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The trigger is idempotent on the member's email, so a retried signup
	// after a crash here still ends with exactly one timeline.
	if err := s.onboarding.StartOnboarding(ctx, user); err != nil {
		s.logg.Error(s.logg.WithUserID(ctx, user.ID.String()), "failed to start onboarding workflow", err)
	}

	accessToken, refreshToken, err := issueTokens(ctx, s.session, s.jwtCfg, now, user)
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "member registered")
	return &LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         users.FromModel(user),
	}, nil
}
