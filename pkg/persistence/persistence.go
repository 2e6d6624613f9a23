// Package persistence defines the storage contracts the journey engine
// consumes. Implementations live in the subpackages; the engine only ever
// sees these interfaces.
package persistence

import (
	"context"
	"time"

	"github.com/campaignkit/journey/pkg/models"
)

// Persistence aggregates the repositories backing the engine.
type Persistence interface {
	JourneyRepository() JourneyRepository
	VersionRepository() VersionRepository
	ExecutionRepository() ExecutionRepository
	StepExecutionRepository() StepExecutionRepository
	TriggerRepository() TriggerRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// JourneyRepository stores journey definitions (drafts and their lifecycle
// state). The published graph itself lives in VersionRepository.
type JourneyRepository interface {
	GetByID(ctx context.Context, id string) (*models.Journey, error)
	ListByOrganization(ctx context.Context, organizationID string) ([]*models.Journey, error)
	Save(ctx context.Context, journey *models.Journey) error
	Delete(ctx context.Context, id string) error
}

// VersionRepository stores immutable published snapshots. Versions are never
// updated or deleted.
type VersionRepository interface {
	Save(ctx context.Context, version *models.JourneyVersion) error
	GetByID(ctx context.Context, id string) (*models.JourneyVersion, error)
	LatestByJourney(ctx context.Context, journeyID string) (*models.JourneyVersion, error)
	ListByJourney(ctx context.Context, journeyID string) ([]*models.JourneyVersion, error)
}

// ExecutionRepository stores execution records. AdvanceStep is the
// single-writer guard: it moves CurrentStepID only if it still equals
// fromStepID, returning ErrStepConflict when another writer won.
type ExecutionRepository interface {
	GetByID(ctx context.Context, id string) (*models.JourneyExecution, error)
	FindByJourneyAndContact(ctx context.Context, journeyID, contactID string) ([]*models.JourneyExecution, error)
	ListByJourney(ctx context.Context, journeyID string) ([]*models.JourneyExecution, error)
	Save(ctx context.Context, execution *models.JourneyExecution) error
	AdvanceStep(ctx context.Context, executionID, fromStepID, toStepID string) error
	UpdateStatus(ctx context.Context, executionID string, status models.ExecutionStatus, reason string, completedAt *time.Time) error
	SetGoalMet(ctx context.Context, executionID string) error
}

// StepExecutionRepository stores the append-only step attempt history.
type StepExecutionRepository interface {
	FindByExecution(ctx context.Context, executionID string) ([]*models.StepExecution, error)
	Find(ctx context.Context, executionID, stepID string, attempt int) (*models.StepExecution, error)
	Save(ctx context.Context, stepExecution *models.StepExecution) error
	UpdateStatus(ctx context.Context, id string, status models.StepExecutionStatus, result map[string]any, errMessage string, completedAt *time.Time) error
}

// TriggerRepository resolves which journeys an external signal may enroll
// contacts into.
type TriggerRepository interface {
	FindByEventType(ctx context.Context, organizationID, eventType string) ([]*models.JourneyTrigger, error)
	FindSchedules(ctx context.Context) ([]*models.JourneyTrigger, error)
}
