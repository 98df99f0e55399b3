package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/bookhaven/bookhaven-backend/pkg/db"
	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
	"github.com/bookhaven/bookhaven-backend/pkg/enums"
)

// ErrRunExists signals the (workflow, subject) pair already has a run.
var ErrRunExists = errors.New("workflow run already exists")

// Repository is the GORM-backed workflow store.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateRun(ctx context.Context, run *models.WorkflowRun) error {
	if run == nil {
		return errors.New("run is required")
	}
	err := r.db.WithContext(ctx).Create(run).Error
	if err != nil && dbpkg.IsUniqueViolation(err, "ux_workflow_runs_name_subject") {
		return ErrRunExists
	}
	return err
}

func (r *Repository) DueRuns(ctx context.Context, now time.Time, limit int) ([]models.WorkflowRun, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.WorkflowRun
	err := r.db.WithContext(ctx).
		Where("status = ? AND wake_at IS NOT NULL AND wake_at <= ?", enums.WorkflowRunActive, now).
		Order("wake_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ClaimRun is the poller's mutual exclusion: the guarded UPDATE only
// succeeds while the run is still due, so of N concurrent pollers exactly
// one sees a row affected. A poller that dies mid-run forfeits the claim
// once until passes and the run wakes again.
func (r *Repository) ClaimRun(ctx context.Context, runID uuid.UUID, now, until time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.WorkflowRun{}).
		Where("id = ? AND status = ? AND wake_at IS NOT NULL AND wake_at <= ?", runID, enums.WorkflowRunActive, now).
		Update("wake_at", until)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *Repository) StepResult(ctx context.Context, runID uuid.UUID, name string, occurrence int) (*models.WorkflowStep, error) {
	var step models.WorkflowStep
	err := r.db.WithContext(ctx).
		Where("run_id = ? AND name = ? AND occurrence = ?", runID, name, occurrence).
		First(&step).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &step, nil
}

func (r *Repository) RecordStep(ctx context.Context, step models.WorkflowStep) error {
	err := r.db.WithContext(ctx).Create(&step).Error
	// A crash between recording the step and rescheduling the run can
	// replay the insert; the unique index makes that a no-op.
	if err != nil && dbpkg.IsUniqueViolation(err, "ux_workflow_steps_run_name_occurrence") {
		return nil
	}
	return err
}

func (r *Repository) Reschedule(ctx context.Context, runID uuid.UUID, wakeAt time.Time, attempts int, lastError *string) error {
	updates := map[string]any{
		"wake_at":    wakeAt,
		"attempts":   attempts,
		"last_error": lastError,
	}
	return r.db.WithContext(ctx).
		Model(&models.WorkflowRun{}).
		Where("id = ?", runID).
		Updates(updates).Error
}

func (r *Repository) SetStatus(ctx context.Context, runID uuid.UUID, status enums.WorkflowRunStatus, lastError *string) error {
	updates := map[string]any{
		"status":     status,
		"last_error": lastError,
	}
	if status != enums.WorkflowRunActive {
		updates["wake_at"] = nil
	}
	return r.db.WithContext(ctx).
		Model(&models.WorkflowRun{}).
		Where("id = ?", runID).
		Updates(updates).Error
}

func (r *Repository) CancelBySubject(ctx context.Context, workflowName, subjectKey string) error {
	return r.db.WithContext(ctx).
		Model(&models.WorkflowRun{}).
		Where("workflow_name = ? AND subject_key = ? AND status = ?", workflowName, subjectKey, enums.WorkflowRunActive).
		Updates(map[string]any{
			"status":  enums.WorkflowRunCancelled,
			"wake_at": nil,
		}).Error
}
