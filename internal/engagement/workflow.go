package engagement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/bookhaven/bookhaven-backend/internal/notifications"
	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
	"github.com/bookhaven/bookhaven-backend/pkg/enums"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
	"github.com/bookhaven/bookhaven-backend/pkg/workflow"
)

// WorkflowName identifies the per-member onboarding/engagement timeline.
const WorkflowName = "onboarding"

const (
	stepSendWelcome      = "send-welcome-email"
	stepCheckUserState   = "check-user-state"
	stepSendReengagement = "send-reengagement-email"
	stepSendWelcomeBack  = "send-welcome-back-email"
)

// OnboardingPayload is the trigger payload persisted with the run.
type OnboardingPayload struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

type userFinder interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

type mailer interface {
	Send(ctx context.Context, input notifications.SendEmailInput) error
}

// Workflows holds the dependencies shared by engagement handlers.
type Workflows struct {
	users         userFinder
	mailer        mailer
	welcomeDelay  time.Duration
	checkInterval time.Duration
	logger        *logger.Logger
	now           func() time.Time
}

// WorkflowsParams bundles handler dependencies.
type WorkflowsParams struct {
	Users         userFinder
	Mailer        mailer
	WelcomeDelay  time.Duration
	CheckInterval time.Duration
	Logger        *logger.Logger
}

// NewWorkflows builds the engagement handlers.
func NewWorkflows(params WorkflowsParams) (*Workflows, error) {
	if params.Users == nil {
		return nil, fmt.Errorf("users finder required")
	}
	if params.Mailer == nil {
		return nil, fmt.Errorf("mailer required")
	}
	welcomeDelay := params.WelcomeDelay
	if welcomeDelay <= 0 {
		welcomeDelay = 3 * 24 * time.Hour
	}
	checkInterval := params.CheckInterval
	if checkInterval <= 0 {
		checkInterval = 30 * 24 * time.Hour
	}
	return &Workflows{
		users:         params.Users,
		mailer:        params.Mailer,
		welcomeDelay:  welcomeDelay,
		checkInterval: checkInterval,
		logger:        params.Logger,
		now:           time.Now,
	}, nil
}

// Register binds the engagement handlers onto the engine.
func (w *Workflows) Register(engine *workflow.Engine) {
	engine.Register(WorkflowName, w.Onboarding)
}

// Onboarding is the durable per-member timeline: welcome email, a three-day
// pause, then a monthly loop that nudges members who have gone quiet. The
// handler replays from the top on every wake-up; all side effects go through
// RunStep so they execute at most once per occurrence.
func (w *Workflows) Onboarding(ctx context.Context, ex *workflow.Execution) error {
	var payload OnboardingPayload
	if err := ex.DecodePayload(&payload); err != nil {
		return fmt.Errorf("decode onboarding payload: %w", err)
	}

	if _, err := ex.RunStep(ctx, stepSendWelcome, func(ctx context.Context) (any, error) {
		return nil, w.sendEmail(ctx, payload, enums.NotificationTypeWelcome)
	}); err != nil {
		return err
	}

	if err := ex.Sleep(ctx, w.welcomeDelay); err != nil {
		return err
	}

	for {
		stateRaw, err := ex.RunStep(ctx, stepCheckUserState, func(ctx context.Context) (any, error) {
			return w.classifyBySubject(ctx, payload.Email), nil
		})
		if err != nil {
			return err
		}

		state := enums.EngagementNonActive
		if len(stateRaw) > 0 {
			if err := json.Unmarshal(stateRaw, &state); err != nil {
				return fmt.Errorf("decode engagement state: %w", err)
			}
		}

		stepName := stepSendWelcomeBack
		emailType := enums.NotificationTypeWelcomeBack
		if state == enums.EngagementNonActive {
			stepName = stepSendReengagement
			emailType = enums.NotificationTypeReengagement
		}

		if _, err := ex.RunStep(ctx, stepName, func(ctx context.Context) (any, error) {
			return nil, w.sendEmail(ctx, payload, emailType)
		}); err != nil {
			return err
		}

		if err := ex.Sleep(ctx, w.checkInterval); err != nil {
			return err
		}
	}
}

func (w *Workflows) classifyBySubject(ctx context.Context, email string) enums.EngagementState {
	user, err := w.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) && w.logger != nil {
			w.logger.Error(ctx, "loading user for engagement check", err)
		}
		return enums.EngagementNonActive
	}
	return Classify(user.LastActivityDate, w.now())
}

func (w *Workflows) sendEmail(ctx context.Context, payload OnboardingPayload, kind enums.NotificationType) error {
	user, err := w.users.FindByEmail(ctx, payload.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Deleted account: nothing to email, the step completes empty.
			return nil
		}
		return err
	}
	return w.mailer.Send(ctx, notifications.SendEmailInput{
		UserID:   user.ID,
		Email:    payload.Email,
		FullName: payload.FullName,
		Type:     kind,
	})
}
