package file

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campaignkit/journey/pkg/models"
	"github.com/campaignkit/journey/pkg/persistence"
)

func newTestPersistence(t *testing.T) *Persistence {
	t.Helper()

	return NewPersistence(t.TempDir())
}

func TestJourneyRepository_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	p := newTestPersistence(t)

	journey := &models.Journey{
		ID:             uuid.New().String(),
		OrganizationID: "org-1",
		Name:           "Welcome Series",
		Status:         models.JourneyStatusDraft,
	}

	require.NoError(t, p.JourneyRepository().Save(ctx, journey))

	loaded, err := p.JourneyRepository().GetByID(ctx, journey.ID)
	require.NoError(t, err)
	assert.Equal(t, "Welcome Series", loaded.Name)
	assert.Equal(t, models.JourneyStatusDraft, loaded.Status)
}

func TestJourneyRepository_GetMissing(t *testing.T) {
	ctx := context.Background()
	p := newTestPersistence(t)

	_, err := p.JourneyRepository().GetByID(ctx, "missing")

	require.Error(t, err)
	assert.True(t, persistence.IsJourneyNotFound(err))
}

func TestJourneyRepository_ListByOrganization(t *testing.T) {
	ctx := context.Background()
	p := newTestPersistence(t)

	for _, org := range []string{"org-1", "org-1", "org-2"} {
		journey := &models.Journey{ID: uuid.New().String(), OrganizationID: org, Name: "Journey " + org}
		require.NoError(t, p.JourneyRepository().Save(ctx, journey))
	}

	journeys, err := p.JourneyRepository().ListByOrganization(ctx, "org-1")
	require.NoError(t, err)
	assert.Len(t, journeys, 2)
}

func TestVersionRepository_LatestByJourney(t *testing.T) {
	ctx := context.Background()
	p := newTestPersistence(t)

	for number := 1; number <= 3; number++ {
		version := &models.JourneyVersion{
			ID:        uuid.New().String(),
			JourneyID: "journey-1",
			Number:    number,
		}
		require.NoError(t, p.VersionRepository().Save(ctx, version))
	}

	latest, err := p.VersionRepository().LatestByJourney(ctx, "journey-1")
	require.NoError(t, err)
	assert.Equal(t, 3, latest.Number)

	_, err = p.VersionRepository().LatestByJourney(ctx, "journey-2")
	assert.ErrorIs(t, err, persistence.ErrNoPublishedVersion)
}

func TestExecutionRepository_SaveRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	p := newTestPersistence(t)

	execution := &models.JourneyExecution{
		ID:        "exec-1",
		JourneyID: "journey-1",
		ContactID: "contact-1",
		Status:    models.ExecutionStatusActive,
		EnteredAt: time.Now().UTC(),
	}

	require.NoError(t, p.ExecutionRepository().Save(ctx, execution))

	err := p.ExecutionRepository().Save(ctx, execution)
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrExecutionExists)
}

func TestExecutionRepository_AdvanceStep(t *testing.T) {
	ctx := context.Background()
	p := newTestPersistence(t)

	execution := &models.JourneyExecution{
		ID:            "exec-1",
		JourneyID:     "journey-1",
		ContactID:     "contact-1",
		Status:        models.ExecutionStatusActive,
		CurrentStepID: "step-a",
		EnteredAt:     time.Now().UTC(),
	}
	require.NoError(t, p.ExecutionRepository().Save(ctx, execution))

	require.NoError(t, p.ExecutionRepository().AdvanceStep(ctx, "exec-1", "step-a", "step-b"))

	loaded, err := p.ExecutionRepository().GetByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, "step-b", loaded.CurrentStepID)

	// A writer that still believes the cursor is at step-a must lose.
	err = p.ExecutionRepository().AdvanceStep(ctx, "exec-1", "step-a", "step-c")
	require.Error(t, err)
	assert.True(t, persistence.IsStepConflict(err))
}

func TestExecutionRepository_FindByJourneyAndContact(t *testing.T) {
	ctx := context.Background()
	p := newTestPersistence(t)

	entered := time.Now().UTC().Add(-time.Hour)

	for i, contact := range []string{"contact-1", "contact-1", "contact-2"} {
		execution := &models.JourneyExecution{
			ID:        uuid.New().String(),
			JourneyID: "journey-1",
			ContactID: contact,
			Status:    models.ExecutionStatusCompleted,
			EnteredAt: entered.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, p.ExecutionRepository().Save(ctx, execution))
	}

	history, err := p.ExecutionRepository().FindByJourneyAndContact(ctx, "journey-1", "contact-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].EnteredAt.Before(history[1].EnteredAt))
}

func TestStepExecutionRepository_IdempotencyKeyLookup(t *testing.T) {
	ctx := context.Background()
	p := newTestPersistence(t)

	stepExecution := &models.StepExecution{
		ID:          uuid.New().String(),
		ExecutionID: "exec-1",
		StepID:      "step-a",
		Attempt:     1,
		Status:      models.StepExecutionRunning,
		StartedAt:   time.Now().UTC(),
	}
	require.NoError(t, p.StepExecutionRepository().Save(ctx, stepExecution))

	found, err := p.StepExecutionRepository().Find(ctx, "exec-1", "step-a", 1)
	require.NoError(t, err)
	assert.Equal(t, stepExecution.ID, found.ID)

	_, err = p.StepExecutionRepository().Find(ctx, "exec-1", "step-a", 2)
	assert.ErrorIs(t, err, persistence.ErrStepExecutionNotFound)
}

func TestStepExecutionRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	p := newTestPersistence(t)

	stepExecution := &models.StepExecution{
		ID:          "se-1",
		ExecutionID: "exec-1",
		StepID:      "step-a",
		Attempt:     1,
		Status:      models.StepExecutionRunning,
		StartedAt:   time.Now().UTC(),
	}
	require.NoError(t, p.StepExecutionRepository().Save(ctx, stepExecution))

	completedAt := time.Now().UTC()
	err := p.StepExecutionRepository().UpdateStatus(ctx, "se-1", models.StepExecutionSucceeded, map[string]any{"sent": true}, "", &completedAt)
	require.NoError(t, err)

	found, err := p.StepExecutionRepository().Find(ctx, "exec-1", "step-a", 1)
	require.NoError(t, err)
	assert.Equal(t, models.StepExecutionSucceeded, found.Status)
	assert.Equal(t, true, found.Result["sent"])
	require.NotNil(t, found.CompletedAt)
}

func TestTriggerRepository_FindByEventType(t *testing.T) {
	ctx := context.Background()
	p := newTestPersistence(t)

	journey := &models.Journey{
		ID:             "journey-1",
		OrganizationID: "org-1",
		Name:           "Signup Journey",
		Triggers: []*models.JourneyTrigger{
			{ID: "t-1", Type: models.TriggerTypeEvent, EventType: "user.signup", Enabled: true},
			{ID: "t-2", Type: models.TriggerTypeEvent, EventType: "user.signup", Enabled: false},
			{ID: "t-3", Type: models.TriggerTypeSchedule, CronExpr: "0 9 * * *", Enabled: true},
		},
	}
	require.NoError(t, p.JourneyRepository().Save(ctx, journey))

	triggers, err := p.TriggerRepository().FindByEventType(ctx, "org-1", "user.signup")
	require.NoError(t, err)
	require.Len(t, triggers, 1)
	assert.Equal(t, "t-1", triggers[0].ID)
	assert.Equal(t, "journey-1", triggers[0].JourneyID)

	schedules, err := p.TriggerRepository().FindSchedules(ctx)
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	assert.Equal(t, "t-3", schedules[0].ID)
}
