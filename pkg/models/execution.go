package models

import "time"

// ExecutionStatus is the lifecycle state of one contact's run through a
// journey version.
type ExecutionStatus string

const (
	ExecutionStatusActive    ExecutionStatus = "active"
	ExecutionStatusPaused    ExecutionStatus = "paused"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusExited    ExecutionStatus = "exited"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusExited || s == ExecutionStatusFailed
}

// JourneyExecution is one contact's run through one pinned journey version.
// VersionID is set at creation and never changes; executions are never
// deleted, they are the history the entry guard evaluates. TriggerData is
// the payload of the admitting trigger, snapshotted so every step of the
// run sees the same trigger context.
type JourneyExecution struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organization_id"`
	JourneyID      string          `json:"journey_id"`
	VersionID      string          `json:"version_id"`
	ContactID      string          `json:"contact_id"`
	TriggerData    map[string]any  `json:"trigger_data,omitempty"`
	Status         ExecutionStatus `json:"status"`
	CurrentStepID  string          `json:"current_step_id"`
	GoalMet        bool            `json:"goal_met"`
	FailureReason  string          `json:"failure_reason,omitempty"`
	EnteredAt      time.Time       `json:"entered_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}

// TerminalAt returns when the execution reached a terminal status, if it has.
func (e *JourneyExecution) TerminalAt() (time.Time, bool) {
	if !e.Status.IsTerminal() || e.CompletedAt == nil {
		return time.Time{}, false
	}

	return *e.CompletedAt, true
}

// ExecutionContext carries the runtime data an action sees when it executes:
// resolved contact attributes, the trigger payload that admitted the contact,
// and the outputs of previously completed steps keyed by step ID.
type ExecutionContext struct {
	ExecutionID    string                    `json:"execution_id"`
	OrganizationID string                    `json:"organization_id"`
	JourneyID      string                    `json:"journey_id"`
	ContactID      string                    `json:"contact_id"`
	Attributes     map[string]any            `json:"attributes,omitempty"`
	TriggerData    map[string]any            `json:"trigger_data,omitempty"`
	StepResults    map[string]map[string]any `json:"step_results,omitempty"`
}
