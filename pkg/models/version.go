package models

import "time"

// JourneyVersion is an immutable snapshot of a journey's step graph, taken at
// publish time. Version numbers are a strictly increasing integer per journey,
// starting at 1. Versions are never mutated or deleted; executions created
// under a version keep reading it for their whole lifetime.
type JourneyVersion struct {
	ID             string          `json:"id"`
	JourneyID      string          `json:"journey_id"`
	OrganizationID string          `json:"organization_id"`
	Number         int             `json:"number"`
	EntryStepID    string          `json:"entry_step_id"`
	Steps          []*JourneyStep  `json:"steps"`
	Settings       JourneySettings `json:"settings"`
	CreatedAt      time.Time       `json:"created_at"`
}

// StepByID finds a step inside the version's graph.
func (v *JourneyVersion) StepByID(stepID string) (*JourneyStep, bool) {
	for _, step := range v.Steps {
		if step.ID == stepID {
			return step, true
		}
	}

	return nil, false
}
