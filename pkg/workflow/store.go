package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
	"github.com/bookhaven/bookhaven-backend/pkg/enums"
)

// Store is the persistence surface the engine needs. The GORM-backed
// Repository is the production implementation.
type Store interface {
	// CreateRun inserts a new run. ErrRunExists is returned when the
	// (workflow, subject) pair already has a run.
	CreateRun(ctx context.Context, run *models.WorkflowRun) error

	// DueRuns returns active runs whose wake_at is at or before now.
	DueRuns(ctx context.Context, now time.Time, limit int) ([]models.WorkflowRun, error)

	// ClaimRun atomically pushes a due run's wake_at to until so no other
	// poller picks it up. It returns false when the run is no longer due,
	// meaning a concurrent poller claimed it first.
	ClaimRun(ctx context.Context, runID uuid.UUID, now, until time.Time) (bool, error)

	// StepResult fetches the persisted step row, or nil when the step has
	// not executed yet.
	StepResult(ctx context.Context, runID uuid.UUID, name string, occurrence int) (*models.WorkflowStep, error)

	// RecordStep persists a completed or permanently failed step.
	RecordStep(ctx context.Context, step models.WorkflowStep) error

	// Reschedule sets the next wake time and attempt counter for a run.
	Reschedule(ctx context.Context, runID uuid.UUID, wakeAt time.Time, attempts int, lastError *string) error

	// SetStatus transitions the run to a terminal or cancelled state.
	SetStatus(ctx context.Context, runID uuid.UUID, status enums.WorkflowRunStatus, lastError *string) error

	// CancelBySubject cancels the active run for the given workflow/subject.
	CancelBySubject(ctx context.Context, workflowName, subjectKey string) error
}
