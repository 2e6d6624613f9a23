// Package models defines the core domain models for journey automation.
package models

import "time"

// JourneyStatus represents the lifecycle state of a journey.
type JourneyStatus string

const (
	JourneyStatusDraft     JourneyStatus = "draft"     // Editable, not enrollable
	JourneyStatusPublished JourneyStatus = "published" // Accepting new enrollments
	JourneyStatusPaused    JourneyStatus = "paused"    // Dispatch suppressed, enrollments denied
	JourneyStatusArchived  JourneyStatus = "archived"  // Historical, read-only
)

// Journey is a tenant-owned automation definition. The draft graph lives on
// the journey itself; publishing snapshots it into an immutable JourneyVersion.
type Journey struct {
	ID             string            `json:"id"`
	OrganizationID string            `json:"organization_id" validate:"required"`
	Name           string            `json:"name"            validate:"required,min=3"`
	Description    string            `json:"description"`
	Status         JourneyStatus     `json:"status"          validate:"required"`
	Settings       JourneySettings   `json:"settings"`
	Steps          []*JourneyStep    `json:"steps"`
	EntryStepID    string            `json:"entry_step_id"`
	Triggers       []*JourneyTrigger `json:"triggers"`
	// CurrentVersionID points at the latest published version. Enrollment pins
	// this version; in-flight executions keep reading their own pinned version.
	CurrentVersionID string     `json:"current_version_id,omitempty"`
	Owner            string     `json:"owner"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	PublishedAt      *time.Time `json:"published_at,omitempty"`
}

// IsEnrollable reports whether the journey may accept new enrollments.
func (j *Journey) IsEnrollable() bool {
	return j.Status == JourneyStatusPublished && j.CurrentVersionID != ""
}

// StepByID finds a draft step by its identifier.
func (j *Journey) StepByID(stepID string) (*JourneyStep, bool) {
	for _, step := range j.Steps {
		if step.ID == stepID {
			return step, true
		}
	}

	return nil, false
}
