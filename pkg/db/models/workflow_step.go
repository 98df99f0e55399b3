package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/bookhaven/bookhaven-backend/pkg/enums"
)

// WorkflowStep records the durable result of a single step execution.
// A run may revisit the same step name in a loop, so rows are keyed by
// (run_id, name, occurrence).
type WorkflowStep struct {
	ID          uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	RunID       uuid.UUID                `gorm:"column:run_id;type:uuid;not null;uniqueIndex:ux_workflow_steps_run_name_occurrence"`
	Name        string                   `gorm:"column:name;type:text;not null;uniqueIndex:ux_workflow_steps_run_name_occurrence"`
	Occurrence  int                      `gorm:"column:occurrence;not null;uniqueIndex:ux_workflow_steps_run_name_occurrence"`
	Status      enums.WorkflowStepStatus `gorm:"column:status;type:workflow_step_status;not null"`
	Result      json.RawMessage          `gorm:"column:result;type:jsonb"`
	CompletedAt time.Time                `gorm:"column:completed_at;autoCreateTime"`
}
