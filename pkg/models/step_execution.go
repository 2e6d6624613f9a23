package models

import "time"

// StepExecutionStatus is the state of one step attempt.
type StepExecutionStatus string

const (
	StepExecutionPending   StepExecutionStatus = "pending"
	StepExecutionRunning   StepExecutionStatus = "running"
	StepExecutionSucceeded StepExecutionStatus = "succeeded"
	StepExecutionFailed    StepExecutionStatus = "failed"
	StepExecutionSkipped   StepExecutionStatus = "skipped"
)

// IsTerminal reports whether the attempt reached a final status.
func (s StepExecutionStatus) IsTerminal() bool {
	return s == StepExecutionSucceeded || s == StepExecutionFailed || s == StepExecutionSkipped
}

// StepExecution is the append-only record of one step attempt for one
// execution. A retry creates a new row with attempt+1; succeeded and failed
// rows are never mutated. (ExecutionID, StepID, Attempt) is the idempotency
// key that collapses duplicate command delivery.
type StepExecution struct {
	ID          string              `json:"id"`
	ExecutionID string              `json:"execution_id"`
	StepID      string              `json:"step_id"`
	Attempt     int                 `json:"attempt"`
	Status      StepExecutionStatus `json:"status"`
	Result      map[string]any      `json:"result,omitempty"`
	Error       string              `json:"error,omitempty"`
	StartedAt   time.Time           `json:"started_at"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
}
