package journey

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/campaignkit/journey/pkg/eventbus"
	"github.com/campaignkit/journey/pkg/events"
	"github.com/campaignkit/journey/pkg/models"
	"github.com/campaignkit/journey/pkg/persistence"
)

// Service handles journey definition lifecycle operations. Graph edits only
// touch the draft; running executions read their pinned version and never see
// them.
type Service struct {
	persistence persistence.Persistence
}

func NewService(persistence persistence.Persistence) *Service {
	return &Service{persistence: persistence}
}

func (s *Service) Create(ctx context.Context, journey *models.Journey) (*models.Journey, error) {
	if journey.ID == "" {
		journey.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	journey.CreatedAt = now
	journey.UpdatedAt = now

	if journey.Status == "" {
		journey.Status = models.JourneyStatusDraft
	}

	if journey.Settings.ReEntry.Type == "" {
		journey.Settings.ReEntry.Type = models.ReEntryOnce
	}

	if err := s.persistence.JourneyRepository().Save(ctx, journey); err != nil {
		return nil, fmt.Errorf("save journey: %w", err)
	}

	return journey, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Journey, error) {
	return s.persistence.JourneyRepository().GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, organizationID string) ([]*models.Journey, error) {
	return s.persistence.JourneyRepository().ListByOrganization(ctx, organizationID)
}

func (s *Service) Update(ctx context.Context, id string, journey *models.Journey) (*models.Journey, error) {
	existing, err := s.persistence.JourneyRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if existing.Status == models.JourneyStatusArchived {
		return nil, fmt.Errorf("%w: cannot update an archived journey", ErrConflict)
	}

	journey.ID = id
	journey.OrganizationID = existing.OrganizationID
	journey.Status = existing.Status
	journey.CurrentVersionID = existing.CurrentVersionID
	journey.CreatedAt = existing.CreatedAt
	journey.PublishedAt = existing.PublishedAt
	journey.UpdatedAt = time.Now().UTC()

	if journey.Settings.ReEntry.Type == "" {
		journey.Settings.ReEntry.Type = models.ReEntryOnce
	}

	if err := s.persistence.JourneyRepository().Save(ctx, journey); err != nil {
		return nil, fmt.Errorf("save journey: %w", err)
	}

	return journey, nil
}

// Delete removes a journey definition. Only drafts can be deleted; anything
// that ever published has versions and execution history to retain, archive
// it instead.
func (s *Service) Delete(ctx context.Context, id string) error {
	existing, err := s.persistence.JourneyRepository().GetByID(ctx, id)
	if err != nil {
		return err
	}

	if existing.Status != models.JourneyStatusDraft {
		return fmt.Errorf("%w: cannot delete a %s journey", ErrConflict, existing.Status)
	}

	return s.persistence.JourneyRepository().Delete(ctx, id)
}

func (s *Service) Archive(ctx context.Context, id string) (*models.Journey, error) {
	journey, err := s.persistence.JourneyRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	journey.Status = models.JourneyStatusArchived
	journey.UpdatedAt = time.Now().UTC()

	if err := s.persistence.JourneyRepository().Save(ctx, journey); err != nil {
		return nil, fmt.Errorf("save journey: %w", err)
	}

	return journey, nil
}

// Pause stops a published journey: new enrollments are denied and every
// active execution is parked until Resume.
func (s *Service) Pause(ctx context.Context, id string) ([]eventbus.Event, error) {
	journey, err := s.persistence.JourneyRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if journey.Status != models.JourneyStatusPublished {
		return nil, fmt.Errorf("%w: cannot pause a %s journey", ErrConflict, journey.Status)
	}

	journey.Status = models.JourneyStatusPaused
	journey.UpdatedAt = time.Now().UTC()

	if err := s.persistence.JourneyRepository().Save(ctx, journey); err != nil {
		return nil, fmt.Errorf("save journey: %w", err)
	}

	executions, err := s.persistence.ExecutionRepository().ListByJourney(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}

	for _, execution := range executions {
		if execution.Status != models.ExecutionStatusActive {
			continue
		}

		err := s.persistence.ExecutionRepository().UpdateStatus(ctx, execution.ID, models.ExecutionStatusPaused, "", nil)
		if err != nil {
			return nil, fmt.Errorf("pause execution %s: %w", execution.ID, err)
		}
	}

	paused := events.JourneyPaused{
		BaseEvent: events.NewBaseEvent(events.JourneyPausedEvent, journey.OrganizationID, journey.ID),
	}

	return []eventbus.Event{paused}, nil
}

// Resume reactivates a paused journey and re-issues the advance command for
// every parked execution's current step. Duplicate commands are harmless, the
// executor's idempotency key absorbs them.
func (s *Service) Resume(ctx context.Context, id string) ([]eventbus.Event, error) {
	journey, err := s.persistence.JourneyRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if journey.Status != models.JourneyStatusPaused {
		return nil, fmt.Errorf("%w: cannot resume a %s journey", ErrConflict, journey.Status)
	}

	journey.Status = models.JourneyStatusPublished
	journey.UpdatedAt = time.Now().UTC()

	if err := s.persistence.JourneyRepository().Save(ctx, journey); err != nil {
		return nil, fmt.Errorf("save journey: %w", err)
	}

	executions, err := s.persistence.ExecutionRepository().ListByJourney(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}

	resumed := events.JourneyResumed{
		BaseEvent: events.NewBaseEvent(events.JourneyResumedEvent, journey.OrganizationID, journey.ID),
	}
	eventsToPublish := []eventbus.Event{resumed}

	for _, execution := range executions {
		if execution.Status != models.ExecutionStatusPaused {
			continue
		}

		err := s.persistence.ExecutionRepository().UpdateStatus(ctx, execution.ID, models.ExecutionStatusActive, "", nil)
		if err != nil {
			return nil, fmt.Errorf("resume execution %s: %w", execution.ID, err)
		}

		stepID, attempt, err := s.resumeTarget(ctx, execution)
		if err != nil {
			return nil, fmt.Errorf("resolve resume target for execution %s: %w", execution.ID, err)
		}

		if stepID == "" {
			// The parked step finished the path; nothing left to dispatch.
			now := time.Now().UTC()

			err := s.persistence.ExecutionRepository().UpdateStatus(ctx, execution.ID, models.ExecutionStatusCompleted, "", &now)
			if err != nil {
				return nil, fmt.Errorf("complete execution %s: %w", execution.ID, err)
			}

			eventsToPublish = append(eventsToPublish, events.ExecutionCompleted{
				BaseEvent:   events.NewBaseEvent(events.ExecutionCompletedEvent, journey.OrganizationID, journey.ID),
				ExecutionID: execution.ID,
				LastStepID:  execution.CurrentStepID,
			})

			continue
		}

		command := events.ExecuteStep{
			BaseEvent:   events.NewBaseEvent(events.ExecuteStepEvent, journey.OrganizationID, journey.ID),
			ExecutionID: execution.ID,
			StepID:      stepID,
			Attempt:     attempt,
		}
		eventsToPublish = append(eventsToPublish, command)
	}

	return eventsToPublish, nil
}

// resumeTarget picks the step and attempt for re-dispatching a parked
// execution: continue an unfinished attempt, follow a failed one with the
// next number, start fresh otherwise. A succeeded record for the current
// step means the pause landed between finishing the step and moving the
// cursor, so the outgoing edge is re-derived and the cursor advanced past
// it; re-issuing the finished attempt would only be absorbed by the
// executor's idempotency key. An empty step ID means the path ended.
func (s *Service) resumeTarget(ctx context.Context, execution *models.JourneyExecution) (string, int, error) {
	records, err := s.persistence.StepExecutionRepository().FindByExecution(ctx, execution.ID)
	if err != nil {
		return "", 0, err
	}

	var latest *models.StepExecution

	for _, record := range records {
		if record.StepID != execution.CurrentStepID {
			continue
		}

		if latest == nil || record.Attempt > latest.Attempt {
			latest = record
		}
	}

	switch {
	case latest == nil:
		return execution.CurrentStepID, 1, nil
	case latest.Status == models.StepExecutionFailed:
		return execution.CurrentStepID, latest.Attempt + 1, nil
	case latest.Status == models.StepExecutionSucceeded:
		next, err := s.stepAfter(ctx, execution, latest)
		if err != nil {
			return "", 0, err
		}

		if next == "" {
			return "", 0, nil
		}

		err = s.persistence.ExecutionRepository().AdvanceStep(ctx, execution.ID, execution.CurrentStepID, next)
		if err != nil && !persistence.IsStepConflict(err) {
			return "", 0, err
		}

		return next, 1, nil
	default:
		return execution.CurrentStepID, latest.Attempt, nil
	}
}

// stepAfter resolves the step following a finished one. Splits record the
// chosen edge in their result; every other step type follows its single
// outgoing edge.
func (s *Service) stepAfter(ctx context.Context, execution *models.JourneyExecution, record *models.StepExecution) (string, error) {
	if target, ok := record.Result["target_step"].(string); ok && target != "" {
		return target, nil
	}

	version, err := s.persistence.VersionRepository().GetByID(ctx, execution.VersionID)
	if err != nil {
		return "", fmt.Errorf("resolve pinned version: %w", err)
	}

	step, found := version.StepByID(execution.CurrentStepID)
	if !found {
		return "", fmt.Errorf("step %s not in version %s", execution.CurrentStepID, version.ID)
	}

	return singleEdgeTarget(step), nil
}

// ListExecutions returns the execution history of a journey.
func (s *Service) ListExecutions(ctx context.Context, journeyID string) ([]*models.JourneyExecution, error) {
	return s.persistence.ExecutionRepository().ListByJourney(ctx, journeyID)
}
