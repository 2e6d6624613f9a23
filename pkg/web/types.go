// Package web provides HTTP request and response types for the journey API.
package web

import "github.com/campaignkit/journey/pkg/models"

// CreateJourneyRequest represents the request body for creating a new journey.
// The graph may be supplied up front or edited later; it is only validated
// when the journey is published.
type CreateJourneyRequest struct {
	OrganizationID string                   `json:"organization_id" validate:"required"`
	Name           string                   `json:"name"            validate:"required,min=3"`
	Description    string                   `json:"description"`
	Owner          string                   `json:"owner"`
	Settings       models.JourneySettings   `json:"settings"`
	Steps          []*models.JourneyStep    `json:"steps"`
	EntryStepID    string                   `json:"entry_step_id"`
	Triggers       []*models.JourneyTrigger `json:"triggers"`
}

// UpdateJourneyRequest represents the request body for updating a journey
// draft. All fields are optional to support partial updates; a nil slice
// leaves the stored graph untouched. Lifecycle fields cannot be changed here.
type UpdateJourneyRequest struct {
	Name        *string                  `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description *string                  `json:"description,omitempty"`
	Owner       *string                  `json:"owner,omitempty"`
	Settings    *models.JourneySettings  `json:"settings,omitempty"`
	Steps       []*models.JourneyStep    `json:"steps,omitempty"`
	EntryStepID *string                  `json:"entry_step_id,omitempty"`
	Triggers    []*models.JourneyTrigger `json:"triggers,omitempty"`
}

// PublishJourneyResponse returns the version a publish produced.
type PublishJourneyResponse struct {
	VersionID     string `json:"version_id"`
	VersionNumber int    `json:"version_number"`
	JourneyID     string `json:"journey_id"`
}
