package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/bookhaven/bookhaven-backend/pkg/enums"
)

// WorkflowRun is one durable execution of a named workflow for a subject.
type WorkflowRun struct {
	ID           uuid.UUID               `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	WorkflowName string                  `gorm:"column:workflow_name;type:text;not null;uniqueIndex:ux_workflow_runs_name_subject"`
	SubjectKey   string                  `gorm:"column:subject_key;type:text;not null;uniqueIndex:ux_workflow_runs_name_subject"`
	Payload      json.RawMessage         `gorm:"column:payload;type:jsonb;not null"`
	Status       enums.WorkflowRunStatus `gorm:"column:status;type:workflow_run_status;not null;default:active"`
	WakeAt       *time.Time              `gorm:"column:wake_at;type:timestamptz;index"`
	Attempts     int                     `gorm:"column:attempts;not null;default:0"`
	LastError    *string                 `gorm:"column:last_error"`
	CreatedAt    time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
