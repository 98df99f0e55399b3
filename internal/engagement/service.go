package engagement

import (
	"context"
	"fmt"

	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
	"github.com/bookhaven/bookhaven-backend/pkg/workflow"
)

type workflowTrigger interface {
	Trigger(ctx context.Context, name, subjectKey string, payload any) error
	Cancel(ctx context.Context, name, subjectKey string) error
}

var _ workflowTrigger = (*workflow.Engine)(nil)

// Service starts and stops engagement timelines for members.
type Service struct {
	engine workflowTrigger
}

// NewService wires the engagement service to the workflow engine.
func NewService(engine workflowTrigger) (*Service, error) {
	if engine == nil {
		return nil, fmt.Errorf("workflow engine required")
	}
	return &Service{engine: engine}, nil
}

// StartOnboarding creates the member's durable timeline. Repeat calls for
// the same member are no-ops.
func (s *Service) StartOnboarding(ctx context.Context, user *models.User) error {
	if user == nil {
		return fmt.Errorf("user required")
	}
	return s.engine.Trigger(ctx, WorkflowName, user.Email, OnboardingPayload{
		Email:    user.Email,
		FullName: user.FullName,
	})
}

// StopOnboarding cancels the member's timeline, typically on account closure.
func (s *Service) StopOnboarding(ctx context.Context, email string) error {
	return s.engine.Cancel(ctx, WorkflowName, email)
}
