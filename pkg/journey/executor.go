package journey

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/campaignkit/journey/pkg/dispatch"
	"github.com/campaignkit/journey/pkg/eventbus"
	"github.com/campaignkit/journey/pkg/events"
	"github.com/campaignkit/journey/pkg/guard"
	"github.com/campaignkit/journey/pkg/models"
	"github.com/campaignkit/journey/pkg/persistence"
	"github.com/campaignkit/journey/pkg/split"
)

// StepScheduler delivers an advance command at a future time. Wait steps and
// retry backoff both go through it.
type StepScheduler interface {
	ScheduleStep(ctx context.Context, at time.Time, command events.ExecuteStep) error
}

// Config bounds the retry behavior for transient dispatch failures.
type Config struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialBackoff: 30 * time.Second,
		MaxBackoff:     time.Hour,
	}
}

// Executor owns the execution state machine. It is stateless between calls;
// all state lives in persistence, so any worker may process any command.
type Executor struct {
	persistence persistence.Persistence
	registry    *dispatch.Registry
	contacts    dispatch.ContactDirectory
	scheduler   StepScheduler
	config      Config
}

func NewExecutor(
	persistence persistence.Persistence,
	registry *dispatch.Registry,
	contacts dispatch.ContactDirectory,
	scheduler StepScheduler,
	config Config,
) *Executor {
	if config.MaxAttempts < 1 {
		config = DefaultConfig()
	}

	return &Executor{
		persistence: persistence,
		registry:    registry,
		contacts:    contacts,
		scheduler:   scheduler,
		config:      config,
	}
}

// StartExecution runs the entry guard for a triggered contact. Denial is a
// normal outcome reported as an EntryDenied event, admission creates the
// execution at the version's entry step and emits the first advance command.
func (e *Executor) StartExecution(ctx context.Context, logger *slog.Logger, triggered *events.ContactTriggered) ([]eventbus.Event, error) {
	journey, err := e.persistence.JourneyRepository().GetByID(ctx, triggered.JourneyID)
	if err != nil {
		return nil, fmt.Errorf("get journey: %w", err)
	}

	if !journey.IsEnrollable() {
		logger.InfoContext(ctx, "Journey is not enrollable, discarding trigger", "status", journey.Status)

		return []eventbus.Event{e.denied(journey, triggered.ContactID, "journey_not_enrollable")}, nil
	}

	history, err := e.persistence.ExecutionRepository().FindByJourneyAndContact(ctx, journey.ID, triggered.ContactID)
	if err != nil {
		return nil, fmt.Errorf("load execution history: %w", err)
	}

	decision := guard.Evaluate(history, journey.Settings, time.Now().UTC())
	if !decision.Allowed {
		logger.InfoContext(ctx, "Entry denied", "contact_id", triggered.ContactID, "reason", decision.Reason)

		return []eventbus.Event{e.denied(journey, triggered.ContactID, decision.Reason)}, nil
	}

	version, err := e.persistence.VersionRepository().GetByID(ctx, journey.CurrentVersionID)
	if err != nil {
		return nil, fmt.Errorf("resolve published version: %w", err)
	}

	execution := &models.JourneyExecution{
		ID:             uuid.New().String(),
		OrganizationID: journey.OrganizationID,
		JourneyID:      journey.ID,
		VersionID:      version.ID,
		ContactID:      triggered.ContactID,
		TriggerData:    triggered.TriggerData,
		Status:         models.ExecutionStatusActive,
		CurrentStepID:  version.EntryStepID,
		EnteredAt:      time.Now().UTC(),
	}

	if err := e.persistence.ExecutionRepository().Save(ctx, execution); err != nil {
		return nil, persistence.NewExecutionError("start", execution.ID, err)
	}

	logger.InfoContext(ctx, "Execution started",
		"execution_id", execution.ID,
		"version_id", version.ID,
		"entry_step_id", version.EntryStepID,
	)

	started := events.ExecutionStarted{
		BaseEvent:   events.NewBaseEvent(events.ExecutionStartedEvent, journey.OrganizationID, journey.ID),
		ExecutionID: execution.ID,
		VersionID:   version.ID,
		ContactID:   triggered.ContactID,
		EntryStepID: version.EntryStepID,
	}

	return []eventbus.Event{started, e.command(execution, version.EntryStepID, 1)}, nil
}

// ExecuteStep processes one advance command. The (ExecutionID, StepID,
// Attempt) key makes it idempotent: a duplicate of an already finished
// attempt returns without side effects.
func (e *Executor) ExecuteStep(ctx context.Context, logger *slog.Logger, command *events.ExecuteStep) ([]eventbus.Event, error) {
	prior, err := e.persistence.StepExecutionRepository().Find(ctx, command.ExecutionID, command.StepID, command.Attempt)
	if err != nil && !errors.Is(err, persistence.ErrStepExecutionNotFound) {
		return nil, fmt.Errorf("check idempotency key: %w", err)
	}

	if prior != nil && prior.Status.IsTerminal() {
		logger.InfoContext(ctx, "Duplicate step command, already finished", "status", prior.Status)

		return nil, nil
	}

	execution, err := e.persistence.ExecutionRepository().GetByID(ctx, command.ExecutionID)
	if err != nil {
		return nil, fmt.Errorf("get execution: %w", err)
	}

	if execution.Status.IsTerminal() {
		logger.InfoContext(ctx, "Execution already terminal, discarding command", "status", execution.Status)

		return nil, nil
	}

	if execution.Status == models.ExecutionStatusPaused {
		logger.InfoContext(ctx, "Execution paused, suppressing dispatch")

		return nil, nil
	}

	version, err := e.persistence.VersionRepository().GetByID(ctx, execution.VersionID)
	if err != nil {
		return nil, fmt.Errorf("resolve pinned version: %w", err)
	}

	step, found := version.StepByID(command.StepID)
	if !found {
		return e.failExecution(ctx, logger, execution, command, fmt.Errorf("step %s not in version %s", command.StepID, version.ID), true)
	}

	attributes, err := e.contacts.Attributes(ctx, execution.OrganizationID, execution.ContactID)
	if err != nil {
		// No step record exists yet, so the bus redelivers and we retry
		// from scratch.
		return nil, fmt.Errorf("resolve contact attributes: %w", err)
	}

	// Goal exit pre-empts every dispatch, not only exit nodes.
	if metGoal(version.Settings.Goal, attributes) {
		return e.exitExecution(ctx, logger, execution, command.StepID, true)
	}

	record, err := e.ensureStepExecution(ctx, prior, command)
	if err != nil {
		return nil, err
	}

	execCtx := models.ExecutionContext{
		ExecutionID:    execution.ID,
		OrganizationID: execution.OrganizationID,
		JourneyID:      execution.JourneyID,
		ContactID:      execution.ContactID,
		Attributes:     attributes,
		TriggerData:    execution.TriggerData,
	}

	execCtx.StepResults, err = e.priorResults(ctx, execution.ID)
	if err != nil {
		return nil, err
	}

	switch step.Type {
	case models.StepTypeAction:
		return e.executeAction(ctx, logger, execution, step, record, command, execCtx)
	case models.StepTypeWait:
		return e.executeWait(ctx, logger, execution, step, record, command)
	case models.StepTypeConditionSplit:
		edge, splitErr := split.EvaluateCondition(step.Edges, attributes)

		return e.finishSplit(ctx, logger, execution, step, record, command, edge, splitErr)
	case models.StepTypeRandomSplit:
		edge, splitErr := split.EvaluateRandom(step.Edges, execution.ID, step.ID)

		return e.finishSplit(ctx, logger, execution, step, record, command, edge, splitErr)
	case models.StepTypeExit:
		if err := e.completeStepRecord(ctx, record, nil); err != nil {
			return nil, err
		}

		return e.exitExecution(ctx, logger, execution, step.ID, false)
	default:
		return e.failExecution(ctx, logger, execution, command, fmt.Errorf("unknown step type %q", step.Type), true)
	}
}

func (e *Executor) executeAction(
	ctx context.Context,
	logger *slog.Logger,
	execution *models.JourneyExecution,
	step *models.JourneyStep,
	record *models.StepExecution,
	command *events.ExecuteStep,
	execCtx models.ExecutionContext,
) ([]eventbus.Event, error) {
	result, dispatchErr := e.registry.Dispatch(ctx, step.Action, execCtx)
	if dispatchErr == nil {
		if err := e.completeStepRecord(ctx, record, result); err != nil {
			return nil, err
		}

		completed := e.stepCompleted(execution, record, models.StepExecutionSucceeded, result)
		advanceEvents, err := e.advance(ctx, logger, execution, step, singleEdgeTarget(step))
		if err != nil {
			return nil, err
		}

		return append([]eventbus.Event{completed}, advanceEvents...), nil
	}

	if err := e.failStepRecord(ctx, record, dispatchErr); err != nil {
		return nil, err
	}

	retryable := dispatch.IsTransient(dispatchErr)
	if retryable && command.Attempt < e.config.MaxAttempts {
		backoff := e.backoffFor(command.Attempt)
		logger.WarnContext(ctx, "Dispatch failed, scheduling retry",
			"error", dispatchErr,
			"attempt", command.Attempt,
			"backoff", backoff,
		)

		retry := e.command(execution, step.ID, command.Attempt+1)

		err := e.scheduler.ScheduleStep(ctx, time.Now().UTC().Add(backoff), retry)
		if err != nil {
			return nil, fmt.Errorf("schedule retry: %w", err)
		}

		return []eventbus.Event{e.stepCompleted(execution, record, models.StepExecutionFailed, nil)}, nil
	}

	return e.failExecution(ctx, logger, execution, command, dispatchErr, !retryable)
}

func (e *Executor) executeWait(
	ctx context.Context,
	logger *slog.Logger,
	execution *models.JourneyExecution,
	step *models.JourneyStep,
	record *models.StepExecution,
	command *events.ExecuteStep,
) ([]eventbus.Event, error) {
	if step.Wait == nil {
		return e.failExecution(ctx, logger, execution, command, fmt.Errorf("wait step %s has no delay configured", step.ID), true)
	}

	if err := e.completeStepRecord(ctx, record, nil); err != nil {
		return nil, err
	}

	completed := e.stepCompleted(execution, record, models.StepExecutionSucceeded, nil)

	next := singleEdgeTarget(step)
	if next == "" {
		finishEvents, err := e.completeExecution(ctx, logger, execution, step.ID)
		if err != nil {
			return nil, err
		}

		return append([]eventbus.Event{completed}, finishEvents...), nil
	}

	if err := e.advanceCursor(ctx, logger, execution, step.ID, next); err != nil {
		if persistence.IsStepConflict(err) {
			return []eventbus.Event{completed}, nil
		}

		return nil, err
	}

	wakeAt := time.Now().UTC().Add(step.Wait.Delay())

	err := e.scheduler.ScheduleStep(ctx, wakeAt, e.command(execution, next, 1))
	if err != nil {
		return nil, fmt.Errorf("schedule wait wake-up: %w", err)
	}

	logger.InfoContext(ctx, "Wait scheduled", "next_step_id", next, "wake_at", wakeAt)

	return []eventbus.Event{completed}, nil
}

func (e *Executor) finishSplit(
	ctx context.Context,
	logger *slog.Logger,
	execution *models.JourneyExecution,
	step *models.JourneyStep,
	record *models.StepExecution,
	command *events.ExecuteStep,
	edge *models.StepEdge,
	splitErr error,
) ([]eventbus.Event, error) {
	if splitErr != nil {
		// Split failures are graph configuration problems, never retried.
		if err := e.failStepRecord(ctx, record, splitErr); err != nil {
			return nil, err
		}

		return e.failExecution(ctx, logger, execution, command, splitErr, true)
	}

	result := map[string]any{
		"edge_id":     edge.ID,
		"target_step": edge.TargetStepID,
	}

	if err := e.completeStepRecord(ctx, record, result); err != nil {
		return nil, err
	}

	completed := e.stepCompleted(execution, record, models.StepExecutionSucceeded, result)

	advanceEvents, err := e.advance(ctx, logger, execution, step, edge.TargetStepID)
	if err != nil {
		return nil, err
	}

	return append([]eventbus.Event{completed}, advanceEvents...), nil
}

// advance moves the execution cursor to nextStepID and emits the next
// command, or completes the execution when the path ends. A CAS conflict
// means another delivery already advanced; the duplicate is discarded.
func (e *Executor) advance(
	ctx context.Context,
	logger *slog.Logger,
	execution *models.JourneyExecution,
	step *models.JourneyStep,
	nextStepID string,
) ([]eventbus.Event, error) {
	if nextStepID == "" {
		return e.completeExecution(ctx, logger, execution, step.ID)
	}

	if err := e.advanceCursor(ctx, logger, execution, step.ID, nextStepID); err != nil {
		if persistence.IsStepConflict(err) {
			return nil, nil
		}

		return nil, err
	}

	return []eventbus.Event{e.command(execution, nextStepID, 1)}, nil
}

func (e *Executor) advanceCursor(ctx context.Context, logger *slog.Logger, execution *models.JourneyExecution, fromStepID, toStepID string) error {
	err := e.persistence.ExecutionRepository().AdvanceStep(ctx, execution.ID, fromStepID, toStepID)
	if err != nil {
		if persistence.IsStepConflict(err) {
			logger.InfoContext(ctx, "Cursor already advanced by a concurrent delivery, discarding",
				"from_step_id", fromStepID,
				"to_step_id", toStepID,
			)
		}

		return err
	}

	return nil
}

func (e *Executor) completeExecution(ctx context.Context, logger *slog.Logger, execution *models.JourneyExecution, lastStepID string) ([]eventbus.Event, error) {
	now := time.Now().UTC()

	err := e.persistence.ExecutionRepository().UpdateStatus(ctx, execution.ID, models.ExecutionStatusCompleted, "", &now)
	if err != nil {
		return nil, persistence.NewExecutionError("complete", execution.ID, err)
	}

	logger.InfoContext(ctx, "Execution completed", "execution_id", execution.ID, "last_step_id", lastStepID)

	completed := events.ExecutionCompleted{
		BaseEvent:   events.NewBaseEvent(events.ExecutionCompletedEvent, execution.OrganizationID, execution.JourneyID),
		ExecutionID: execution.ID,
		LastStepID:  lastStepID,
	}

	return []eventbus.Event{completed}, nil
}

func (e *Executor) exitExecution(ctx context.Context, logger *slog.Logger, execution *models.JourneyExecution, stepID string, goalMet bool) ([]eventbus.Event, error) {
	now := time.Now().UTC()

	reason := ""
	if goalMet {
		reason = "goal_met"

		if err := e.persistence.ExecutionRepository().SetGoalMet(ctx, execution.ID); err != nil {
			return nil, persistence.NewExecutionError("exit", execution.ID, err)
		}
	}

	err := e.persistence.ExecutionRepository().UpdateStatus(ctx, execution.ID, models.ExecutionStatusExited, reason, &now)
	if err != nil {
		return nil, persistence.NewExecutionError("exit", execution.ID, err)
	}

	logger.InfoContext(ctx, "Execution exited", "execution_id", execution.ID, "step_id", stepID, "goal_met", goalMet)

	exited := events.ExecutionExited{
		BaseEvent:   events.NewBaseEvent(events.ExecutionExitedEvent, execution.OrganizationID, execution.JourneyID),
		ExecutionID: execution.ID,
		StepID:      stepID,
		GoalMet:     goalMet,
	}

	return []eventbus.Event{exited}, nil
}

func (e *Executor) failExecution(
	ctx context.Context,
	logger *slog.Logger,
	execution *models.JourneyExecution,
	command *events.ExecuteStep,
	cause error,
	permanent bool,
) ([]eventbus.Event, error) {
	now := time.Now().UTC()

	err := e.persistence.ExecutionRepository().UpdateStatus(ctx, execution.ID, models.ExecutionStatusFailed, cause.Error(), &now)
	if err != nil {
		return nil, persistence.NewExecutionError("fail", execution.ID, err)
	}

	logger.ErrorContext(ctx, "Execution failed",
		"execution_id", execution.ID,
		"step_id", command.StepID,
		"attempt", command.Attempt,
		"permanent", permanent,
		"error", cause,
	)

	failed := events.ExecutionFailed{
		BaseEvent:   events.NewBaseEvent(events.ExecutionFailedEvent, execution.OrganizationID, execution.JourneyID),
		ExecutionID: execution.ID,
		StepID:      command.StepID,
		Attempt:     command.Attempt,
		Error:       cause.Error(),
		Permanent:   permanent,
	}

	return []eventbus.Event{failed}, nil
}

// ensureStepExecution reuses an unfinished attempt record or creates a new
// running one.
func (e *Executor) ensureStepExecution(ctx context.Context, prior *models.StepExecution, command *events.ExecuteStep) (*models.StepExecution, error) {
	if prior != nil {
		prior.Status = models.StepExecutionRunning

		return prior, nil
	}

	record := &models.StepExecution{
		ID:          uuid.New().String(),
		ExecutionID: command.ExecutionID,
		StepID:      command.StepID,
		Attempt:     command.Attempt,
		Status:      models.StepExecutionRunning,
		StartedAt:   time.Now().UTC(),
	}

	if err := e.persistence.StepExecutionRepository().Save(ctx, record); err != nil {
		return nil, fmt.Errorf("save step execution: %w", err)
	}

	return record, nil
}

func (e *Executor) completeStepRecord(ctx context.Context, record *models.StepExecution, result map[string]any) error {
	now := time.Now().UTC()

	err := e.persistence.StepExecutionRepository().UpdateStatus(ctx, record.ID, models.StepExecutionSucceeded, result, "", &now)
	if err != nil {
		return fmt.Errorf("mark step succeeded: %w", err)
	}

	record.Status = models.StepExecutionSucceeded
	record.Result = result
	record.CompletedAt = &now

	return nil
}

func (e *Executor) failStepRecord(ctx context.Context, record *models.StepExecution, cause error) error {
	now := time.Now().UTC()

	err := e.persistence.StepExecutionRepository().UpdateStatus(ctx, record.ID, models.StepExecutionFailed, nil, cause.Error(), &now)
	if err != nil {
		return fmt.Errorf("mark step failed: %w", err)
	}

	record.Status = models.StepExecutionFailed
	record.Error = cause.Error()
	record.CompletedAt = &now

	return nil
}

func (e *Executor) priorResults(ctx context.Context, executionID string) (map[string]map[string]any, error) {
	records, err := e.persistence.StepExecutionRepository().FindByExecution(ctx, executionID)
	if err != nil {
		return nil, fmt.Errorf("load step history: %w", err)
	}

	results := make(map[string]map[string]any)

	for _, record := range records {
		if record.Status == models.StepExecutionSucceeded && record.Result != nil {
			results[record.StepID] = record.Result
		}
	}

	return results, nil
}

func (e *Executor) stepCompleted(execution *models.JourneyExecution, record *models.StepExecution, status models.StepExecutionStatus, result map[string]any) eventbus.Event {
	durationMs := int64(0)
	if record.CompletedAt != nil {
		durationMs = record.CompletedAt.Sub(record.StartedAt).Milliseconds()
	}

	return events.StepCompleted{
		BaseEvent:   events.NewBaseEvent(events.StepCompletedEvent, execution.OrganizationID, execution.JourneyID),
		ExecutionID: execution.ID,
		StepID:      record.StepID,
		Attempt:     record.Attempt,
		Status:      status,
		Result:      result,
		DurationMs:  durationMs,
	}
}

func (e *Executor) command(execution *models.JourneyExecution, stepID string, attempt int) events.ExecuteStep {
	return events.ExecuteStep{
		BaseEvent:   events.NewBaseEvent(events.ExecuteStepEvent, execution.OrganizationID, execution.JourneyID),
		ExecutionID: execution.ID,
		StepID:      stepID,
		Attempt:     attempt,
	}
}

func (e *Executor) denied(journey *models.Journey, contactID, reason string) eventbus.Event {
	return events.EntryDenied{
		BaseEvent: events.NewBaseEvent(events.EntryDeniedEvent, journey.OrganizationID, journey.ID),
		ContactID: contactID,
		Reason:    reason,
	}
}

func (e *Executor) backoffFor(attempt int) time.Duration {
	backoff := e.config.InitialBackoff

	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff >= e.config.MaxBackoff {
			return e.config.MaxBackoff
		}
	}

	return backoff
}

func singleEdgeTarget(step *models.JourneyStep) string {
	if len(step.Edges) == 0 {
		return ""
	}

	return step.Edges[0].TargetStepID
}

func metGoal(goal *models.Goal, attributes map[string]any) bool {
	if goal == nil || !goal.ExitOnComplete || goal.Predicate == nil {
		return false
	}

	matched, err := goal.Predicate.Matches(attributes)
	if err != nil {
		return false
	}

	return matched
}
