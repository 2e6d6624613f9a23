// Package journey implements the engine core: publishing immutable graph
// versions, enrolling contacts and driving executions step by step.
package journey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/campaignkit/journey/pkg/dispatch"
	"github.com/campaignkit/journey/pkg/eventbus"
	"github.com/campaignkit/journey/pkg/events"
	"github.com/campaignkit/journey/pkg/models"
	"github.com/campaignkit/journey/pkg/persistence"
)

// PublishingService snapshots a journey's draft graph into an immutable
// version. Executions pin the version they started under, so edits after
// publish never touch contacts already in flight.
type PublishingService struct {
	persistence persistence.Persistence
	registry    *dispatch.Registry
}

func NewPublishingService(persistence persistence.Persistence, registry *dispatch.Registry) *PublishingService {
	return &PublishingService{
		persistence: persistence,
		registry:    registry,
	}
}

// Publish validates the draft graph, stores it as the next numbered version
// and points the journey at it. Returns the new version together with the
// lifecycle event to put on the bus.
func (s *PublishingService) Publish(ctx context.Context, journeyID string) (*models.JourneyVersion, []eventbus.Event, error) {
	journey, err := s.persistence.JourneyRepository().GetByID(ctx, journeyID)
	if err != nil {
		return nil, nil, fmt.Errorf("get journey for publishing: %w", err)
	}

	if err := s.validateForPublishing(journey); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	number, err := s.nextVersionNumber(ctx, journeyID)
	if err != nil {
		return nil, nil, err
	}

	version := s.snapshot(journey, number)

	if err := s.persistence.VersionRepository().Save(ctx, version); err != nil {
		return nil, nil, fmt.Errorf("save version: %w", err)
	}

	now := time.Now().UTC()
	journey.Status = models.JourneyStatusPublished
	journey.CurrentVersionID = version.ID
	journey.PublishedAt = &now
	journey.UpdatedAt = now

	if err := s.persistence.JourneyRepository().Save(ctx, journey); err != nil {
		return nil, nil, fmt.Errorf("update journey after publishing: %w", err)
	}

	published := events.JourneyPublished{
		BaseEvent:     events.NewBaseEvent(events.JourneyPublishedEvent, journey.OrganizationID, journey.ID),
		VersionID:     version.ID,
		VersionNumber: version.Number,
	}

	return version, []eventbus.Event{published}, nil
}

func (s *PublishingService) nextVersionNumber(ctx context.Context, journeyID string) (int, error) {
	latest, err := s.persistence.VersionRepository().LatestByJourney(ctx, journeyID)
	if err != nil {
		if errors.Is(err, persistence.ErrNoPublishedVersion) {
			return 1, nil
		}

		return 0, fmt.Errorf("resolve latest version: %w", err)
	}

	return latest.Number + 1, nil
}

// validateForPublishing rejects graphs that could strand or misroute an
// execution at runtime.
func (s *PublishingService) validateForPublishing(journey *models.Journey) error {
	if journey.Status == models.JourneyStatusArchived {
		return errors.New("cannot publish an archived journey")
	}

	if len(journey.Steps) == 0 {
		return errors.New("cannot publish a journey with no steps")
	}

	if len(journey.Triggers) == 0 {
		return errors.New("cannot publish a journey with no triggers")
	}

	stepIDs := make(map[string]bool, len(journey.Steps))

	for _, step := range journey.Steps {
		if step.ID == "" {
			return errors.New("found step with empty ID")
		}

		if stepIDs[step.ID] {
			return fmt.Errorf("duplicate step ID: %s", step.ID)
		}

		stepIDs[step.ID] = true
	}

	if journey.EntryStepID == "" {
		return errors.New("journey has no entry step")
	}

	if !stepIDs[journey.EntryStepID] {
		return fmt.Errorf("entry step %s does not exist", journey.EntryStepID)
	}

	for _, step := range journey.Steps {
		if err := s.validateStep(step, stepIDs); err != nil {
			return err
		}
	}

	return nil
}

func (s *PublishingService) validateStep(step *models.JourneyStep, stepIDs map[string]bool) error {
	for _, edge := range step.Edges {
		if !stepIDs[edge.TargetStepID] {
			return fmt.Errorf("step %s: edge %s references non-existent step %s", step.ID, edge.ID, edge.TargetStepID)
		}
	}

	switch step.Type {
	case models.StepTypeAction:
		if step.Action == nil {
			return fmt.Errorf("action step %s has no action configuration", step.ID)
		}

		if len(step.Edges) > 1 {
			return fmt.Errorf("action step %s must have at most one outgoing edge", step.ID)
		}

		if err := s.registry.ValidateParameters(step.Action.ActionType, step.Action.Parameters); err != nil {
			return fmt.Errorf("action step %s: %w", step.ID, err)
		}
	case models.StepTypeWait:
		if step.Wait == nil || step.Wait.DelaySeconds < 1 {
			return fmt.Errorf("wait step %s needs a positive delay", step.ID)
		}

		if len(step.Edges) > 1 {
			return fmt.Errorf("wait step %s must have at most one outgoing edge", step.ID)
		}
	case models.StepTypeConditionSplit:
		if len(step.Edges) == 0 {
			return fmt.Errorf("condition-split step %s has no edges", step.ID)
		}

		hasDefault := false

		for _, edge := range step.Edges {
			if edge.Default {
				hasDefault = true

				continue
			}

			if edge.Predicate == nil {
				return fmt.Errorf("condition-split step %s: edge %s has no predicate", step.ID, edge.ID)
			}
		}

		if !hasDefault {
			return fmt.Errorf("condition-split step %s has no default edge", step.ID)
		}
	case models.StepTypeRandomSplit:
		if len(step.Edges) < 2 {
			return fmt.Errorf("random-split step %s needs at least two edges", step.ID)
		}

		for _, edge := range step.Edges {
			if edge.Weight <= 0 {
				return fmt.Errorf("random-split step %s: edge %s has non-positive weight", step.ID, edge.ID)
			}
		}
	case models.StepTypeExit:
		if len(step.Edges) > 0 {
			return fmt.Errorf("exit step %s must not have outgoing edges", step.ID)
		}
	default:
		return fmt.Errorf("step %s has unknown type %q", step.ID, step.Type)
	}

	return nil
}

// snapshot deep-copies the draft graph into a version. Step IDs are kept so
// diagnostics line up between draft and published graphs.
func (s *PublishingService) snapshot(journey *models.Journey, number int) *models.JourneyVersion {
	version := &models.JourneyVersion{
		ID:             uuid.New().String(),
		JourneyID:      journey.ID,
		OrganizationID: journey.OrganizationID,
		Number:         number,
		EntryStepID:    journey.EntryStepID,
		Settings:       copySettings(journey.Settings),
		CreatedAt:      time.Now().UTC(),
	}

	version.Steps = make([]*models.JourneyStep, len(journey.Steps))
	for i, step := range journey.Steps {
		version.Steps[i] = copyStep(step)
	}

	return version
}

func copyStep(step *models.JourneyStep) *models.JourneyStep {
	copied := &models.JourneyStep{
		ID:   step.ID,
		Type: step.Type,
		Name: step.Name,
	}

	if step.Action != nil {
		copied.Action = &models.ActionSpec{
			ActionType: step.Action.ActionType,
			Parameters: copyMap(step.Action.Parameters),
		}
	}

	if step.Wait != nil {
		waitCopy := *step.Wait
		copied.Wait = &waitCopy
	}

	copied.Edges = make([]*models.StepEdge, len(step.Edges))
	for i, edge := range step.Edges {
		copied.Edges[i] = copyEdge(edge)
	}

	return copied
}

func copyEdge(edge *models.StepEdge) *models.StepEdge {
	copied := &models.StepEdge{
		ID:           edge.ID,
		TargetStepID: edge.TargetStepID,
		Default:      edge.Default,
		Weight:       edge.Weight,
	}

	if edge.Predicate != nil {
		predicateCopy := *edge.Predicate
		copied.Predicate = &predicateCopy
	}

	return copied
}

func copySettings(settings models.JourneySettings) models.JourneySettings {
	copied := models.JourneySettings{ReEntry: settings.ReEntry}

	if settings.FrequencyCap != nil {
		capCopy := *settings.FrequencyCap
		copied.FrequencyCap = &capCopy
	}

	if settings.Goal != nil {
		goalCopy := models.Goal{ExitOnComplete: settings.Goal.ExitOnComplete}
		if settings.Goal.Predicate != nil {
			predicateCopy := *settings.Goal.Predicate
			goalCopy.Predicate = &predicateCopy
		}

		copied.Goal = &goalCopy
	}

	return copied
}

// copyMap shallow-copies parameter maps; values are treated as immutable.
func copyMap(original map[string]any) map[string]any {
	if original == nil {
		return nil
	}

	result := make(map[string]any, len(original))
	for k, v := range original {
		result[k] = v
	}

	return result
}
