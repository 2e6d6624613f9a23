package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/campaignkit/journey/pkg/models"
	"github.com/campaignkit/journey/pkg/persistence"
)

// ExecutionRepository stores execution records. AdvanceStep uses a
// conditional UPDATE keyed on the expected cursor, so concurrent advances of
// the same execution resolve to exactly one winner.
type ExecutionRepository struct {
	db *sql.DB
}

const executionColumns = `id, organization_id, journey_id, version_id, contact_id, trigger_data, status, current_step_id, goal_met, failure_reason, entered_at, completed_at`

func scanExecution(row interface{ Scan(...any) error }) (*models.JourneyExecution, error) {
	var (
		execution      models.JourneyExecution
		triggerDataRaw []byte
		completedAt    sql.NullTime
	)

	err := row.Scan(
		&execution.ID, &execution.OrganizationID, &execution.JourneyID, &execution.VersionID,
		&execution.ContactID, &triggerDataRaw, &execution.Status, &execution.CurrentStepID,
		&execution.GoalMet, &execution.FailureReason, &execution.EnteredAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(triggerDataRaw) > 0 {
		if err := json.Unmarshal(triggerDataRaw, &execution.TriggerData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution trigger data: %w", err)
		}
	}

	if completedAt.Valid {
		execution.CompletedAt = &completedAt.Time
	}

	return &execution, nil
}

func (er *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.JourneyExecution, error) {
	row := er.db.QueryRowContext(ctx, `SELECT `+executionColumns+` FROM journey_executions WHERE id = $1`, id)

	execution, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get execution %s: %w", id, err)
	}

	return execution, nil
}

func (er *ExecutionRepository) query(ctx context.Context, where string, args ...any) ([]*models.JourneyExecution, error) {
	rows, err := er.db.QueryContext(ctx,
		`SELECT `+executionColumns+` FROM journey_executions WHERE `+where+` ORDER BY entered_at`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	executions := make([]*models.JourneyExecution, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}

		executions = append(executions, execution)
	}

	return executions, rows.Err()
}

func (er *ExecutionRepository) FindByJourneyAndContact(ctx context.Context, journeyID, contactID string) ([]*models.JourneyExecution, error) {
	return er.query(ctx, `journey_id = $1 AND contact_id = $2`, journeyID, contactID)
}

func (er *ExecutionRepository) ListByJourney(ctx context.Context, journeyID string) ([]*models.JourneyExecution, error) {
	return er.query(ctx, `journey_id = $1`, journeyID)
}

func (er *ExecutionRepository) Save(ctx context.Context, execution *models.JourneyExecution) error {
	var triggerDataRaw any

	if execution.TriggerData != nil {
		raw, err := json.Marshal(execution.TriggerData)
		if err != nil {
			return persistence.NewExecutionError("Save", execution.ID, err)
		}

		triggerDataRaw = raw
	}

	_, err := er.db.ExecContext(ctx, `
		INSERT INTO journey_executions (`+executionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		execution.ID, execution.OrganizationID, execution.JourneyID, execution.VersionID,
		execution.ContactID, triggerDataRaw, execution.Status, execution.CurrentStepID,
		execution.GoalMet, execution.FailureReason, execution.EnteredAt, execution.CompletedAt,
	)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	return nil
}

func (er *ExecutionRepository) AdvanceStep(ctx context.Context, executionID, fromStepID, toStepID string) error {
	result, err := er.db.ExecContext(ctx,
		`UPDATE journey_executions SET current_step_id = $1 WHERE id = $2 AND current_step_id = $3`,
		toStepID, executionID, fromStepID)
	if err != nil {
		return persistence.NewExecutionError("AdvanceStep", executionID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewExecutionError("AdvanceStep", executionID, err)
	}

	if affected == 0 {
		if _, err := er.GetByID(ctx, executionID); err != nil {
			return err
		}

		return persistence.NewExecutionError("AdvanceStep", executionID, persistence.ErrStepConflict)
	}

	return nil
}

func (er *ExecutionRepository) UpdateStatus(ctx context.Context, executionID string, status models.ExecutionStatus, reason string, completedAt *time.Time) error {
	result, err := er.db.ExecContext(ctx,
		`UPDATE journey_executions SET status = $1, failure_reason = $2, completed_at = COALESCE($3, completed_at) WHERE id = $4`,
		status, reason, completedAt, executionID)
	if err != nil {
		return persistence.NewExecutionError("UpdateStatus", executionID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewExecutionError("UpdateStatus", executionID, err)
	}

	if affected == 0 {
		return persistence.NewExecutionError("UpdateStatus", executionID, persistence.ErrExecutionNotFound)
	}

	return nil
}

func (er *ExecutionRepository) SetGoalMet(ctx context.Context, executionID string) error {
	_, err := er.db.ExecContext(ctx, `UPDATE journey_executions SET goal_met = TRUE WHERE id = $1`, executionID)
	if err != nil {
		return persistence.NewExecutionError("SetGoalMet", executionID, err)
	}

	return nil
}

// StepExecutionRepository stores the append-only step attempt history. The
// unique (execution_id, step_id, attempt) constraint is the idempotency key.
type StepExecutionRepository struct {
	db *sql.DB
}

const stepExecutionColumns = `id, execution_id, step_id, attempt, status, result, error, started_at, completed_at`

func scanStepExecution(row interface{ Scan(...any) error }) (*models.StepExecution, error) {
	var (
		stepExecution models.StepExecution
		resultRaw     []byte
		completedAt   sql.NullTime
	)

	err := row.Scan(
		&stepExecution.ID, &stepExecution.ExecutionID, &stepExecution.StepID, &stepExecution.Attempt,
		&stepExecution.Status, &resultRaw, &stepExecution.Error, &stepExecution.StartedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(resultRaw) > 0 {
		if err := json.Unmarshal(resultRaw, &stepExecution.Result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal step execution result: %w", err)
		}
	}

	if completedAt.Valid {
		stepExecution.CompletedAt = &completedAt.Time
	}

	return &stepExecution, nil
}

func (sr *StepExecutionRepository) FindByExecution(ctx context.Context, executionID string) ([]*models.StepExecution, error) {
	rows, err := sr.db.QueryContext(ctx,
		`SELECT `+stepExecutionColumns+` FROM step_executions WHERE execution_id = $1 ORDER BY started_at, attempt`, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list step executions for %s: %w", executionID, err)
	}
	defer rows.Close()

	stepExecutions := make([]*models.StepExecution, 0)

	for rows.Next() {
		stepExecution, err := scanStepExecution(rows)
		if err != nil {
			return nil, err
		}

		stepExecutions = append(stepExecutions, stepExecution)
	}

	return stepExecutions, rows.Err()
}

func (sr *StepExecutionRepository) Find(ctx context.Context, executionID, stepID string, attempt int) (*models.StepExecution, error) {
	row := sr.db.QueryRowContext(ctx,
		`SELECT `+stepExecutionColumns+` FROM step_executions WHERE execution_id = $1 AND step_id = $2 AND attempt = $3`,
		executionID, stepID, attempt)

	stepExecution, err := scanStepExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrStepExecutionNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to find step execution: %w", err)
	}

	return stepExecution, nil
}

func (sr *StepExecutionRepository) Save(ctx context.Context, stepExecution *models.StepExecution) error {
	var resultRaw any

	if stepExecution.Result != nil {
		raw, err := json.Marshal(stepExecution.Result)
		if err != nil {
			return fmt.Errorf("failed to marshal step execution result: %w", err)
		}

		resultRaw = raw
	}

	_, err := sr.db.ExecContext(ctx, `
		INSERT INTO step_executions (`+stepExecutionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		stepExecution.ID, stepExecution.ExecutionID, stepExecution.StepID, stepExecution.Attempt,
		stepExecution.Status, resultRaw, stepExecution.Error, stepExecution.StartedAt, stepExecution.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save step execution %s: %w", stepExecution.ID, err)
	}

	return nil
}

func (sr *StepExecutionRepository) UpdateStatus(ctx context.Context, id string, status models.StepExecutionStatus, result map[string]any, errMessage string, completedAt *time.Time) error {
	var resultRaw any

	if result != nil {
		raw, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to marshal step execution result: %w", err)
		}

		resultRaw = raw
	}

	res, err := sr.db.ExecContext(ctx,
		`UPDATE step_executions SET status = $1, result = COALESCE($2, result), error = $3, completed_at = COALESCE($4, completed_at) WHERE id = $5`,
		status, resultRaw, errMessage, completedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update step execution %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update step execution %s: %w", id, err)
	}

	if affected == 0 {
		return persistence.ErrStepExecutionNotFound
	}

	return nil
}
