//go:build integration

package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/campaignkit/journey/pkg/dispatch"
	"github.com/campaignkit/journey/pkg/journey"
	"github.com/campaignkit/journey/pkg/models"
	"github.com/campaignkit/journey/pkg/persistence/postgres"
	"github.com/campaignkit/journey/pkg/web"
)

// Full HTTP lifecycle against the real PostgreSQL persistence: create a
// journey, publish it twice, pause and resume, and confirm the version
// history survives the round trips.
func TestAPILifecycle_Postgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("journey_test"),
		tcpostgres.WithUsername("journey"),
		tcpostgres.WithPassword("journey"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)

	t.Cleanup(func() { _ = container.Terminate(ctx) })

	databaseURL, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	persistence, err := postgres.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() { _ = persistence.Close(ctx) })

	registry := dispatch.NewRegistry(logger)
	registry.Register(&noopFactory{})

	handlers := web.NewAPIHandlers(
		logger,
		journey.NewService(persistence),
		journey.NewPublishingService(persistence, registry),
		persistence,
		validator.New(validator.WithRequiredStructEnabled()),
		registry,
		&capturePublisher{},
	)

	app := fiber.New()
	j := app.Group("/journeys")
	j.Post("/", handlers.CreateJourney)
	j.Get("/:id", handlers.GetJourney)
	j.Post("/:id/publish", handlers.PublishJourney)
	j.Post("/:id/pause", handlers.PauseJourney)
	j.Post("/:id/resume", handlers.ResumeJourney)
	j.Get("/:id/versions", handlers.GetJourneyVersions)

	steps, triggers := publishableGraph()
	createBody, err := json.Marshal(web.CreateJourneyRequest{
		OrganizationID: "org-1",
		Name:           "Welcome Series",
		Steps:          steps,
		EntryStepID:    "welcome",
		Triggers:       triggers,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/journeys/", bytes.NewBuffer(createBody))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.Journey

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))

	publish := func() web.PublishJourneyResponse {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/journeys/"+created.ID+"/publish", nil))
		require.NoError(t, err)

		defer func() { _ = resp.Body.Close() }()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		var published web.PublishJourneyResponse

		require.NoError(t, json.NewDecoder(resp.Body).Decode(&published))

		return published
	}

	first := publish()
	assert.Equal(t, 1, first.VersionNumber)

	second := publish()
	assert.Equal(t, 2, second.VersionNumber)
	assert.NotEqual(t, first.VersionID, second.VersionID)

	pauseResp, err := app.Test(httptest.NewRequest(http.MethodPost, "/journeys/"+created.ID+"/pause", nil))
	require.NoError(t, err)
	_ = pauseResp.Body.Close()
	require.Equal(t, http.StatusOK, pauseResp.StatusCode)

	resumeResp, err := app.Test(httptest.NewRequest(http.MethodPost, "/journeys/"+created.ID+"/resume", nil))
	require.NoError(t, err)
	_ = resumeResp.Body.Close()
	require.Equal(t, http.StatusOK, resumeResp.StatusCode)

	versionsResp, err := app.Test(httptest.NewRequest(http.MethodGet, "/journeys/"+created.ID+"/versions", nil))
	require.NoError(t, err)

	defer func() { _ = versionsResp.Body.Close() }()

	require.Equal(t, http.StatusOK, versionsResp.StatusCode)

	var listing struct {
		Versions   []*models.JourneyVersion `json:"versions"`
		TotalCount int                      `json:"total_count"`
	}

	require.NoError(t, json.NewDecoder(versionsResp.Body).Decode(&listing))
	assert.Equal(t, 2, listing.TotalCount)

	fetched, err := app.Test(httptest.NewRequest(http.MethodGet, "/journeys/"+created.ID, nil))
	require.NoError(t, err)

	defer func() { _ = fetched.Body.Close() }()

	var final models.Journey

	require.NoError(t, json.NewDecoder(fetched.Body).Decode(&final))
	assert.Equal(t, models.JourneyStatusPublished, final.Status)
	assert.Equal(t, second.VersionID, final.CurrentVersionID)
}
