package journey_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campaignkit/journey/pkg/dispatch"
	"github.com/campaignkit/journey/pkg/events"
	"github.com/campaignkit/journey/pkg/journey"
	"github.com/campaignkit/journey/pkg/models"
	"github.com/campaignkit/journey/pkg/persistence/file"
)

type schemaFactory struct{}

func (f *schemaFactory) Create(_ map[string]any) (dispatch.Action, error) {
	return nil, nil
}

func (f *schemaFactory) ActionType() string { return "send_email" }

func (f *schemaFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"template_id": map[string]any{"type": "string", "minLength": 1},
		},
		"required": []any{"template_id"},
	}
}

type publishingFixture struct {
	persistence *file.Persistence
	service     *journey.PublishingService
}

func newPublishingFixture(t *testing.T) *publishingFixture {
	t.Helper()

	p := file.NewPersistence(t.TempDir())

	registry := dispatch.NewRegistry(testLogger())
	registry.Register(&schemaFactory{})

	return &publishingFixture{
		persistence: p,
		service:     journey.NewPublishingService(p, registry),
	}
}

func draftJourney() *models.Journey {
	return &models.Journey{
		ID:             uuid.New().String(),
		OrganizationID: "org-1",
		Name:           "Onboarding",
		Status:         models.JourneyStatusDraft,
		Settings: models.JourneySettings{
			ReEntry: models.ReEntryRule{Type: models.ReEntryOnce},
		},
		Steps: []*models.JourneyStep{
			{
				ID:   "welcome",
				Type: models.StepTypeAction,
				Name: "Welcome email",
				Action: &models.ActionSpec{
					ActionType: "send_email",
					Parameters: map[string]any{"template_id": "welcome"},
				},
				Edges: []*models.StepEdge{{ID: "out", TargetStepID: "done"}},
			},
			{ID: "done", Type: models.StepTypeExit, Name: "Exit"},
		},
		EntryStepID: "welcome",
		Triggers: []*models.JourneyTrigger{
			{ID: "t-1", Type: models.TriggerTypeEvent, EventType: "user.signup", Enabled: true},
		},
	}
}

func TestPublish_NumbersVersionsSequentially(t *testing.T) {
	f := newPublishingFixture(t)
	ctx := context.Background()

	draft := draftJourney()
	require.NoError(t, f.persistence.JourneyRepository().Save(ctx, draft))

	first, emitted, err := f.service.Publish(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Number)

	require.Len(t, emitted, 1)
	published, ok := emitted[0].(events.JourneyPublished)
	require.True(t, ok)
	assert.Equal(t, first.ID, published.VersionID)
	assert.Equal(t, 1, published.VersionNumber)

	second, _, err := f.service.Publish(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Number)
	assert.NotEqual(t, first.ID, second.ID)

	updated, err := f.persistence.JourneyRepository().GetByID(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JourneyStatusPublished, updated.Status)
	assert.Equal(t, second.ID, updated.CurrentVersionID)
	assert.NotNil(t, updated.PublishedAt)
}

func TestPublish_SnapshotIsImmutable(t *testing.T) {
	f := newPublishingFixture(t)
	ctx := context.Background()

	draft := draftJourney()
	require.NoError(t, f.persistence.JourneyRepository().Save(ctx, draft))

	version, _, err := f.service.Publish(ctx, draft.ID)
	require.NoError(t, err)

	// Mutate the draft graph after publishing.
	draft.Steps[0].Action.Parameters["template_id"] = "changed"
	draft.Steps[0].Edges[0].TargetStepID = "welcome"
	require.NoError(t, f.persistence.JourneyRepository().Save(ctx, draft))

	stored, err := f.persistence.VersionRepository().GetByID(ctx, version.ID)
	require.NoError(t, err)

	step, found := stored.StepByID("welcome")
	require.True(t, found)
	assert.Equal(t, "welcome", step.Action.Parameters["template_id"])
	assert.Equal(t, "done", step.Edges[0].TargetStepID)
}

func TestPublish_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(j *models.Journey)
		wantMsg string
	}{
		{
			name:    "no steps",
			mutate:  func(j *models.Journey) { j.Steps = nil },
			wantMsg: "no steps",
		},
		{
			name:    "no triggers",
			mutate:  func(j *models.Journey) { j.Triggers = nil },
			wantMsg: "no triggers",
		},
		{
			name:    "missing entry step",
			mutate:  func(j *models.Journey) { j.EntryStepID = "ghost" },
			wantMsg: "does not exist",
		},
		{
			name: "edge to non-existent step",
			mutate: func(j *models.Journey) {
				j.Steps[0].Edges[0].TargetStepID = "ghost"
			},
			wantMsg: "non-existent step",
		},
		{
			name: "invalid action parameters",
			mutate: func(j *models.Journey) {
				j.Steps[0].Action.Parameters = map[string]any{}
			},
			wantMsg: "invalid parameters",
		},
		{
			name: "unregistered action type",
			mutate: func(j *models.Journey) {
				j.Steps[0].Action.ActionType = "teleport"
			},
			wantMsg: "not registered",
		},
		{
			name: "condition-split without default",
			mutate: func(j *models.Journey) {
				j.Steps[0] = &models.JourneyStep{
					ID:   "welcome",
					Type: models.StepTypeConditionSplit,
					Name: "split",
					Edges: []*models.StepEdge{
						{
							ID:           "a",
							TargetStepID: "done",
							Predicate:    &models.Predicate{Attribute: "x", Op: models.OpExists},
						},
					},
				}
			},
			wantMsg: "no default edge",
		},
		{
			name: "random-split with zero weight",
			mutate: func(j *models.Journey) {
				j.Steps[0] = &models.JourneyStep{
					ID:   "welcome",
					Type: models.StepTypeRandomSplit,
					Name: "ab",
					Edges: []*models.StepEdge{
						{ID: "a", TargetStepID: "done", Weight: 0},
						{ID: "b", TargetStepID: "done", Weight: 1},
					},
				}
			},
			wantMsg: "non-positive weight",
		},
		{
			name: "exit step with edges",
			mutate: func(j *models.Journey) {
				j.Steps[1].Edges = []*models.StepEdge{{ID: "loop", TargetStepID: "welcome"}}
			},
			wantMsg: "must not have outgoing edges",
		},
		{
			name: "wait step without delay",
			mutate: func(j *models.Journey) {
				j.Steps[0] = &models.JourneyStep{
					ID:    "welcome",
					Type:  models.StepTypeWait,
					Name:  "wait",
					Edges: []*models.StepEdge{{ID: "out", TargetStepID: "done"}},
				}
			},
			wantMsg: "positive delay",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPublishingFixture(t)
			ctx := context.Background()

			draft := draftJourney()
			tt.mutate(draft)
			require.NoError(t, f.persistence.JourneyRepository().Save(ctx, draft))

			_, _, err := f.service.Publish(ctx, draft.ID)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)

			// A failed publish leaves no version behind.
			versions, listErr := f.persistence.VersionRepository().ListByJourney(ctx, draft.ID)
			require.NoError(t, listErr)
			assert.Empty(t, versions)
		})
	}
}

func TestPublish_ArchivedJourneyRejected(t *testing.T) {
	f := newPublishingFixture(t)
	ctx := context.Background()

	draft := draftJourney()
	draft.Status = models.JourneyStatusArchived
	require.NoError(t, f.persistence.JourneyRepository().Save(ctx, draft))

	_, _, err := f.service.Publish(ctx, draft.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archived")
}

func TestPublish_ExecutionKeepsPinnedVersion(t *testing.T) {
	f := newPublishingFixture(t)
	ctx := context.Background()

	draft := draftJourney()
	require.NoError(t, f.persistence.JourneyRepository().Save(ctx, draft))

	first, _, err := f.service.Publish(ctx, draft.ID)
	require.NoError(t, err)

	execution := &models.JourneyExecution{
		ID:             uuid.New().String(),
		OrganizationID: draft.OrganizationID,
		JourneyID:      draft.ID,
		VersionID:      first.ID,
		ContactID:      "contact-1",
		Status:         models.ExecutionStatusActive,
		CurrentStepID:  first.EntryStepID,
	}
	require.NoError(t, f.persistence.ExecutionRepository().Save(ctx, execution))

	// Publish a second version; the running execution still reads the first.
	draft.Steps[0].Action.Parameters["template_id"] = "v2-template"
	require.NoError(t, f.persistence.JourneyRepository().Save(ctx, draft))

	second, _, err := f.service.Publish(ctx, draft.ID)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	stored, err := f.persistence.ExecutionRepository().GetByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, stored.VersionID)

	pinned, err := f.persistence.VersionRepository().GetByID(ctx, stored.VersionID)
	require.NoError(t, err)

	step, found := pinned.StepByID("welcome")
	require.True(t, found)
	assert.Equal(t, "welcome", step.Action.Parameters["template_id"])
}
