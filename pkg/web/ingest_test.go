package web_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campaignkit/journey/pkg/events"
	"github.com/campaignkit/journey/pkg/web"
)

func TestAPIHandlers_IngestEvent(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)

	steps, triggers := publishableGraph()
	created := createJourney(t, env, web.CreateJourneyRequest{
		OrganizationID: "org-1",
		Name:           "Welcome Series",
		Steps:          steps,
		EntryStepID:    "welcome",
		Triggers:       triggers,
	})

	// Draft journeys are not enrollable; the event matches no journey yet.
	resp := doRequest(t, env, http.MethodPost, "/events", web.IngestEventRequest{
		OrganizationID: "org-1",
		EventType:      "signup",
		ContactID:      "c-1",
	})
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, 0, env.publisher.count())

	publish := doRequest(t, env, http.MethodPost, "/journeys/"+created.ID+"/publish", nil)
	_ = publish.Body.Close()
	require.Equal(t, http.StatusOK, publish.StatusCode)

	before := env.publisher.count()

	resp = doRequest(t, env, http.MethodPost, "/events", web.IngestEventRequest{
		OrganizationID: "org-1",
		EventType:      "signup",
		ContactID:      "c-1",
		Data:           map[string]any{"source": "landing-page"},
	})
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, before+1, env.publisher.count())

	command, ok := env.publisher.published()[before].(events.ContactTriggered)
	require.True(t, ok)
	assert.Equal(t, created.ID, command.JourneyID)
	assert.Equal(t, "c-1", command.ContactID)
	assert.Equal(t, "t1", command.TriggerID)
	assert.Equal(t, "signup", command.TriggerData["event_type"])

	// An event type with no trigger matches nothing.
	resp = doRequest(t, env, http.MethodPost, "/events", web.IngestEventRequest{
		OrganizationID: "org-1",
		EventType:      "purchase",
		ContactID:      "c-1",
	})
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, before+1, env.publisher.count())

	// Invalid payloads are rejected.
	resp = doRequest(t, env, http.MethodPost, "/events", web.IngestEventRequest{
		EventType: "signup",
	})
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
