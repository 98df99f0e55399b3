package enums

// WorkflowRunStatus maps to the workflow_run_status enum in Postgres.
type WorkflowRunStatus string

const (
	WorkflowRunActive    WorkflowRunStatus = "active"
	WorkflowRunCompleted WorkflowRunStatus = "completed"
	WorkflowRunCancelled WorkflowRunStatus = "cancelled"
	WorkflowRunFailed    WorkflowRunStatus = "failed"
)

var validWorkflowRunStatuses = []WorkflowRunStatus{
	WorkflowRunActive,
	WorkflowRunCompleted,
	WorkflowRunCancelled,
	WorkflowRunFailed,
}

// IsValid reports whether the value matches the canonical workflow_run_status enum.
func (s WorkflowRunStatus) IsValid() bool {
	for _, candidate := range validWorkflowRunStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// WorkflowStepStatus maps to the workflow_step_status enum in Postgres.
type WorkflowStepStatus string

const (
	WorkflowStepCompleted WorkflowStepStatus = "completed"
	WorkflowStepFailed    WorkflowStepStatus = "failed"
)

// IsValid reports whether the value matches the canonical workflow_step_status enum.
func (s WorkflowStepStatus) IsValid() bool {
	return s == WorkflowStepCompleted || s == WorkflowStepFailed
}
