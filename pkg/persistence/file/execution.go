package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/campaignkit/journey/pkg/models"
	"github.com/campaignkit/journey/pkg/persistence"
)

// ExecutionRepository stores one JSON document per execution under
// <root>/executions. The shared mutex makes AdvanceStep a real
// compare-and-swap within the process.
type ExecutionRepository struct {
	root string
	mu   *sync.Mutex
}

func (er *ExecutionRepository) dir() string {
	return path.Join(er.root, "executions")
}

func (er *ExecutionRepository) read(id string) (*models.JourneyExecution, error) {
	body, err := os.ReadFile(filepath.Clean(path.Join(er.dir(), id+".json")))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to read execution %s: %w", id, err)
	}

	var execution models.JourneyExecution

	err = json.Unmarshal(body, &execution)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution %s: %w", id, err)
	}

	return &execution, nil
}

func (er *ExecutionRepository) GetByID(_ context.Context, id string) (*models.JourneyExecution, error) {
	return er.read(id)
}

func (er *ExecutionRepository) list(filter func(*models.JourneyExecution) bool) ([]*models.JourneyExecution, error) {
	entries, err := os.ReadDir(er.dir())
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.JourneyExecution{}, nil
		}

		return nil, fmt.Errorf("failed to list executions: %w", err)
	}

	executions := make([]*models.JourneyExecution, 0)

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		execution, err := er.read(entry.Name()[:len(entry.Name())-len(".json")])
		if err != nil {
			return nil, err
		}

		if filter(execution) {
			executions = append(executions, execution)
		}
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].EnteredAt.Before(executions[j].EnteredAt)
	})

	return executions, nil
}

func (er *ExecutionRepository) FindByJourneyAndContact(_ context.Context, journeyID, contactID string) ([]*models.JourneyExecution, error) {
	return er.list(func(e *models.JourneyExecution) bool {
		return e.JourneyID == journeyID && e.ContactID == contactID
	})
}

func (er *ExecutionRepository) ListByJourney(_ context.Context, journeyID string) ([]*models.JourneyExecution, error) {
	return er.list(func(e *models.JourneyExecution) bool {
		return e.JourneyID == journeyID
	})
}

func (er *ExecutionRepository) Save(_ context.Context, execution *models.JourneyExecution) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	if _, err := er.read(execution.ID); err == nil {
		return persistence.NewExecutionError("Save", execution.ID, persistence.ErrExecutionExists)
	}

	return writeJSON(er.dir(), execution.ID, execution)
}

// AdvanceStep moves the execution cursor only if no concurrent writer moved
// it first.
func (er *ExecutionRepository) AdvanceStep(_ context.Context, executionID, fromStepID, toStepID string) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	execution, err := er.read(executionID)
	if err != nil {
		return err
	}

	if execution.CurrentStepID != fromStepID {
		return persistence.NewExecutionError("AdvanceStep", executionID, persistence.ErrStepConflict)
	}

	execution.CurrentStepID = toStepID

	return writeJSON(er.dir(), executionID, execution)
}

func (er *ExecutionRepository) UpdateStatus(_ context.Context, executionID string, status models.ExecutionStatus, reason string, completedAt *time.Time) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	execution, err := er.read(executionID)
	if err != nil {
		return err
	}

	execution.Status = status
	execution.FailureReason = reason

	if completedAt != nil {
		execution.CompletedAt = completedAt
	}

	return writeJSON(er.dir(), executionID, execution)
}

func (er *ExecutionRepository) SetGoalMet(_ context.Context, executionID string) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	execution, err := er.read(executionID)
	if err != nil {
		return err
	}

	execution.GoalMet = true

	return writeJSON(er.dir(), executionID, execution)
}

// StepExecutionRepository stores attempts under
// <root>/step_executions/<execution>/<step>-<attempt>.json so the idempotency
// key is a direct file lookup.
type StepExecutionRepository struct {
	root string
	mu   *sync.Mutex
}

func (sr *StepExecutionRepository) dir(executionID string) string {
	return path.Join(sr.root, "step_executions", executionID)
}

func attemptFile(stepID string, attempt int) string {
	return stepID + "-" + strconv.Itoa(attempt)
}

func (sr *StepExecutionRepository) FindByExecution(_ context.Context, executionID string) ([]*models.StepExecution, error) {
	entries, err := os.ReadDir(sr.dir(executionID))
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.StepExecution{}, nil
		}

		return nil, fmt.Errorf("failed to list step executions for %s: %w", executionID, err)
	}

	stepExecutions := make([]*models.StepExecution, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		stepExecution, err := sr.readFile(path.Join(sr.dir(executionID), entry.Name()))
		if err != nil {
			return nil, err
		}

		stepExecutions = append(stepExecutions, stepExecution)
	}

	sort.Slice(stepExecutions, func(i, j int) bool {
		return stepExecutions[i].StartedAt.Before(stepExecutions[j].StartedAt)
	})

	return stepExecutions, nil
}

func (sr *StepExecutionRepository) readFile(filePath string) (*models.StepExecution, error) {
	body, err := os.ReadFile(filepath.Clean(filePath))
	if err != nil {
		return nil, fmt.Errorf("failed to read step execution %s: %w", filePath, err)
	}

	var stepExecution models.StepExecution

	err = json.Unmarshal(body, &stepExecution)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal step execution %s: %w", filePath, err)
	}

	return &stepExecution, nil
}

func (sr *StepExecutionRepository) Find(_ context.Context, executionID, stepID string, attempt int) (*models.StepExecution, error) {
	filePath := path.Join(sr.dir(executionID), attemptFile(stepID, attempt)+".json")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, persistence.ErrStepExecutionNotFound
	}

	return sr.readFile(filePath)
}

func (sr *StepExecutionRepository) Save(_ context.Context, stepExecution *models.StepExecution) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	return writeJSON(sr.dir(stepExecution.ExecutionID), attemptFile(stepExecution.StepID, stepExecution.Attempt), stepExecution)
}

func (sr *StepExecutionRepository) UpdateStatus(ctx context.Context, id string, status models.StepExecutionStatus, result map[string]any, errMessage string, completedAt *time.Time) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	root := path.Join(sr.root, "step_executions")

	executions, err := os.ReadDir(root)
	if err != nil {
		return persistence.ErrStepExecutionNotFound
	}

	for _, executionDir := range executions {
		if !executionDir.IsDir() {
			continue
		}

		entries, err := os.ReadDir(path.Join(root, executionDir.Name()))
		if err != nil {
			continue
		}

		for _, entry := range entries {
			filePath := path.Join(root, executionDir.Name(), entry.Name())

			stepExecution, err := sr.readFile(filePath)
			if err != nil || stepExecution.ID != id {
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

			return writeJSON(path.Join(root, executionDir.Name()), attemptFile(stepExecution.StepID, stepExecution.Attempt), stepExecution)
		}
	}

	return persistence.ErrStepExecutionNotFound
}
