// Package memory provides in-memory persistence with the same conditional
// update semantics as the database implementations. Used by tests and local
// development; nothing survives a restart.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/campaignkit/journey/pkg/models"
	"github.com/campaignkit/journey/pkg/persistence"
)

// Persistence implements persistence.Persistence on process-local maps. All
// repositories share one mutex, so AdvanceStep is a real compare-and-swap
// within the process.
type Persistence struct {
	mu sync.Mutex

	journeys       map[string]*models.Journey
	versions       map[string]*models.JourneyVersion
	executions     map[string]*models.JourneyExecution
	stepExecutions map[string]*models.StepExecution

	journeyRepo       *JourneyRepository
	versionRepo       *VersionRepository
	executionRepo     *ExecutionRepository
	stepExecutionRepo *StepExecutionRepository
	triggerRepo       *TriggerRepository
}

func NewPersistence() *Persistence {
	p := &Persistence{
		journeys:       make(map[string]*models.Journey),
		versions:       make(map[string]*models.JourneyVersion),
		executions:     make(map[string]*models.JourneyExecution),
		stepExecutions: make(map[string]*models.StepExecution),
	}

	p.journeyRepo = &JourneyRepository{p: p}
	p.versionRepo = &VersionRepository{p: p}
	p.executionRepo = &ExecutionRepository{p: p}
	p.stepExecutionRepo = &StepExecutionRepository{p: p}
	p.triggerRepo = &TriggerRepository{p: p}

	return p
}

func (p *Persistence) JourneyRepository() persistence.JourneyRepository {
	return p.journeyRepo
}

func (p *Persistence) VersionRepository() persistence.VersionRepository {
	return p.versionRepo
}

func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return p.executionRepo
}

func (p *Persistence) StepExecutionRepository() persistence.StepExecutionRepository {
	return p.stepExecutionRepo
}

func (p *Persistence) TriggerRepository() persistence.TriggerRepository {
	return p.triggerRepo
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// clone isolates stored state from caller mutations, the way a database or
// JSON file naturally would.
func clone[T any](entity *T) *T {
	data, err := json.Marshal(entity)
	if err != nil {
		panic(fmt.Errorf("failed to clone entity: %w", err))
	}

	var copied T
	if err := json.Unmarshal(data, &copied); err != nil {
		panic(fmt.Errorf("failed to clone entity: %w", err))
	}

	return &copied
}

// JourneyRepository stores journeys keyed by id.
type JourneyRepository struct {
	p *Persistence
}

func (jr *JourneyRepository) GetByID(_ context.Context, id string) (*models.Journey, error) {
	jr.p.mu.Lock()
	defer jr.p.mu.Unlock()

	journey, ok := jr.p.journeys[id]
	if !ok {
		return nil, persistence.NewJourneyError("GetByID", id, persistence.ErrJourneyNotFound)
	}

	return clone(journey), nil
}

func (jr *JourneyRepository) ListByOrganization(_ context.Context, organizationID string) ([]*models.Journey, error) {
	jr.p.mu.Lock()
	defer jr.p.mu.Unlock()

	journeys := make([]*models.Journey, 0)

	for _, journey := range jr.p.journeys {
		if organizationID == "" || journey.OrganizationID == organizationID {
			journeys = append(journeys, clone(journey))
		}
	}

	sort.Slice(journeys, func(i, j int) bool {
		return journeys[i].CreatedAt.Before(journeys[j].CreatedAt)
	})

	return journeys, nil
}

func (jr *JourneyRepository) Save(_ context.Context, journey *models.Journey) error {
	jr.p.mu.Lock()
	defer jr.p.mu.Unlock()

	jr.p.journeys[journey.ID] = clone(journey)

	return nil
}

func (jr *JourneyRepository) Delete(_ context.Context, id string) error {
	jr.p.mu.Lock()
	defer jr.p.mu.Unlock()

	delete(jr.p.journeys, id)

	return nil
}

// VersionRepository stores published versions keyed by id. Versions are
// write-once.
type VersionRepository struct {
	p *Persistence
}

func (vr *VersionRepository) Save(_ context.Context, version *models.JourneyVersion) error {
	vr.p.mu.Lock()
	defer vr.p.mu.Unlock()

	vr.p.versions[version.ID] = clone(version)

	return nil
}

func (vr *VersionRepository) GetByID(_ context.Context, id string) (*models.JourneyVersion, error) {
	vr.p.mu.Lock()
	defer vr.p.mu.Unlock()

	version, ok := vr.p.versions[id]
	if !ok {
		return nil, persistence.ErrVersionNotFound
	}

	return clone(version), nil
}

func (vr *VersionRepository) LatestByJourney(ctx context.Context, journeyID string) (*models.JourneyVersion, error) {
	versions, err := vr.ListByJourney(ctx, journeyID)
	if err != nil {
		return nil, err
	}

	if len(versions) == 0 {
		return nil, persistence.ErrNoPublishedVersion
	}

	return versions[len(versions)-1], nil
}

// ListByJourney returns the journey's versions ordered by number ascending.
func (vr *VersionRepository) ListByJourney(_ context.Context, journeyID string) ([]*models.JourneyVersion, error) {
	vr.p.mu.Lock()
	defer vr.p.mu.Unlock()

	versions := make([]*models.JourneyVersion, 0)

	for _, version := range vr.p.versions {
		if version.JourneyID == journeyID {
			versions = append(versions, clone(version))
		}
	}

	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Number < versions[j].Number
	})

	return versions, nil
}

// ExecutionRepository stores executions keyed by id.
type ExecutionRepository struct {
	p *Persistence
}

func (er *ExecutionRepository) GetByID(_ context.Context, id string) (*models.JourneyExecution, error) {
	er.p.mu.Lock()
	defer er.p.mu.Unlock()

	return er.get(id)
}

func (er *ExecutionRepository) get(id string) (*models.JourneyExecution, error) {
	execution, ok := er.p.executions[id]
	if !ok {
		return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
	}

	return clone(execution), nil
}

func (er *ExecutionRepository) list(filter func(*models.JourneyExecution) bool) []*models.JourneyExecution {
	executions := make([]*models.JourneyExecution, 0)

	for _, execution := range er.p.executions {
		if filter(execution) {
			executions = append(executions, clone(execution))
		}
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].EnteredAt.Before(executions[j].EnteredAt)
	})

	return executions
}

func (er *ExecutionRepository) FindByJourneyAndContact(_ context.Context, journeyID, contactID string) ([]*models.JourneyExecution, error) {
	er.p.mu.Lock()
	defer er.p.mu.Unlock()

	return er.list(func(e *models.JourneyExecution) bool {
		return e.JourneyID == journeyID && e.ContactID == contactID
	}), nil
}

func (er *ExecutionRepository) ListByJourney(_ context.Context, journeyID string) ([]*models.JourneyExecution, error) {
	er.p.mu.Lock()
	defer er.p.mu.Unlock()

	return er.list(func(e *models.JourneyExecution) bool {
		return e.JourneyID == journeyID
	}), nil
}

func (er *ExecutionRepository) Save(_ context.Context, execution *models.JourneyExecution) error {
	er.p.mu.Lock()
	defer er.p.mu.Unlock()

	if _, ok := er.p.executions[execution.ID]; ok {
		return persistence.NewExecutionError("Save", execution.ID, persistence.ErrExecutionExists)
	}

	er.p.executions[execution.ID] = clone(execution)

	return nil
}

// AdvanceStep moves the execution cursor only if no concurrent writer moved
// it first.
func (er *ExecutionRepository) AdvanceStep(_ context.Context, executionID, fromStepID, toStepID string) error {
	er.p.mu.Lock()
	defer er.p.mu.Unlock()

	execution, ok := er.p.executions[executionID]
	if !ok {
		return persistence.NewExecutionError("AdvanceStep", executionID, persistence.ErrExecutionNotFound)
	}

	if execution.CurrentStepID != fromStepID {
		return persistence.NewExecutionError("AdvanceStep", executionID, persistence.ErrStepConflict)
	}

	execution.CurrentStepID = toStepID

	return nil
}

func (er *ExecutionRepository) UpdateStatus(_ context.Context, executionID string, status models.ExecutionStatus, reason string, completedAt *time.Time) error {
	er.p.mu.Lock()
	defer er.p.mu.Unlock()

	execution, ok := er.p.executions[executionID]
	if !ok {
		return persistence.NewExecutionError("UpdateStatus", executionID, persistence.ErrExecutionNotFound)
	}

	execution.Status = status
	execution.FailureReason = reason

	if completedAt != nil {
		execution.CompletedAt = completedAt
	}

	return nil
}

func (er *ExecutionRepository) SetGoalMet(_ context.Context, executionID string) error {
	er.p.mu.Lock()
	defer er.p.mu.Unlock()

	execution, ok := er.p.executions[executionID]
	if !ok {
		return persistence.NewExecutionError("SetGoalMet", executionID, persistence.ErrExecutionNotFound)
	}

	execution.GoalMet = true

	return nil
}

// StepExecutionRepository stores step attempts keyed by the idempotency key.
type StepExecutionRepository struct {
	p *Persistence
}

func attemptKey(executionID, stepID string, attempt int) string {
	return fmt.Sprintf("%s/%s/%d", executionID, stepID, attempt)
}

func (sr *StepExecutionRepository) FindByExecution(_ context.Context, executionID string) ([]*models.StepExecution, error) {
	sr.p.mu.Lock()
	defer sr.p.mu.Unlock()

	stepExecutions := make([]*models.StepExecution, 0)

	for _, stepExecution := range sr.p.stepExecutions {
		if stepExecution.ExecutionID == executionID {
			stepExecutions = append(stepExecutions, clone(stepExecution))
		}
	}

	sort.Slice(stepExecutions, func(i, j int) bool {
		return stepExecutions[i].StartedAt.Before(stepExecutions[j].StartedAt)
	})

	return stepExecutions, nil
}

func (sr *StepExecutionRepository) Find(_ context.Context, executionID, stepID string, attempt int) (*models.StepExecution, error) {
	sr.p.mu.Lock()
	defer sr.p.mu.Unlock()

	stepExecution, ok := sr.p.stepExecutions[attemptKey(executionID, stepID, attempt)]
	if !ok {
		return nil, persistence.ErrStepExecutionNotFound
	}

	return clone(stepExecution), nil
}

func (sr *StepExecutionRepository) Save(_ context.Context, stepExecution *models.StepExecution) error {
	sr.p.mu.Lock()
	defer sr.p.mu.Unlock()

	sr.p.stepExecutions[attemptKey(stepExecution.ExecutionID, stepExecution.StepID, stepExecution.Attempt)] = clone(stepExecution)

	return nil
}

func (sr *StepExecutionRepository) UpdateStatus(_ context.Context, id string, status models.StepExecutionStatus, result map[string]any, errMessage string, completedAt *time.Time) error {
	sr.p.mu.Lock()
	defer sr.p.mu.Unlock()

	for _, stepExecution := range sr.p.stepExecutions {
		if stepExecution.ID != id {
			continue
		}

		stepExecution.Status = status
		if result != nil {
			stepExecution.Result = result
		}

		stepExecution.Error = errMessage

		if completedAt != nil {
			stepExecution.CompletedAt = completedAt
		}

		return nil
	}

	return persistence.ErrStepExecutionNotFound
}

// TriggerRepository answers trigger lookups by scanning the stored journeys.
// Triggers live on the journey, not on versions.
type TriggerRepository struct {
	p *Persistence
}

func (tr *TriggerRepository) FindByEventType(_ context.Context, organizationID, eventType string) ([]*models.JourneyTrigger, error) {
	tr.p.mu.Lock()
	defer tr.p.mu.Unlock()

	triggers := make([]*models.JourneyTrigger, 0)

	for _, journey := range tr.p.journeys {
		if journey.OrganizationID != organizationID {
			continue
		}

		for _, trigger := range journey.Triggers {
			if trigger.Enabled && trigger.Type == models.TriggerTypeEvent && trigger.EventType == eventType {
				copied := clone(trigger)
				copied.JourneyID = journey.ID
				triggers = append(triggers, copied)
			}
		}
	}

	return triggers, nil
}

func (tr *TriggerRepository) FindSchedules(_ context.Context) ([]*models.JourneyTrigger, error) {
	tr.p.mu.Lock()
	defer tr.p.mu.Unlock()

	triggers := make([]*models.JourneyTrigger, 0)

	for _, journey := range tr.p.journeys {
		for _, trigger := range journey.Triggers {
			if trigger.Enabled && trigger.Type == models.TriggerTypeSchedule {
				copied := clone(trigger)
				copied.JourneyID = journey.ID
				triggers = append(triggers, copied)
			}
		}
	}

	return triggers, nil
}
