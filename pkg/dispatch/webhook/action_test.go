package webhook_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campaignkit/journey/pkg/dispatch"
	"github.com/campaignkit/journey/pkg/dispatch/webhook"
	"github.com/campaignkit/journey/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func executionContext() models.ExecutionContext {
	return models.ExecutionContext{
		ExecutionID:    "exec-1",
		OrganizationID: "org-1",
		JourneyID:      "journey-1",
		ContactID:      "contact-1",
		Attributes:     map[string]any{"plan": "pro"},
	}
}

func TestWebhookAction_PostsExecutionPayload(t *testing.T) {
	var received map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &received))

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	action, err := webhook.NewWebhookAction(map[string]any{
		"url":     server.URL,
		"headers": map[string]any{"X-Api-Key": "secret"},
	})
	require.NoError(t, err)

	result, err := action.Execute(context.Background(), executionContext(), testLogger())
	require.NoError(t, err)

	assert.Equal(t, 200, result["status_code"])
	assert.Equal(t, "exec-1", received["execution_id"])
	assert.Equal(t, "contact-1", received["contact_id"])
}

func TestWebhookAction_ServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	action, err := webhook.NewWebhookAction(map[string]any{"url": server.URL})
	require.NoError(t, err)

	_, err = action.Execute(context.Background(), executionContext(), testLogger())
	require.Error(t, err)
	assert.True(t, dispatch.IsTransient(err))
}

func TestWebhookAction_ClientErrorIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	action, err := webhook.NewWebhookAction(map[string]any{"url": server.URL})
	require.NoError(t, err)

	_, err = action.Execute(context.Background(), executionContext(), testLogger())
	require.Error(t, err)
	assert.False(t, dispatch.IsTransient(err))
}

func TestWebhookAction_ConnectionFailureIsTransient(t *testing.T) {
	action, err := webhook.NewWebhookAction(map[string]any{"url": "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, err = action.Execute(context.Background(), executionContext(), testLogger())
	require.Error(t, err)
	assert.True(t, dispatch.IsTransient(err))
}

func TestNewWebhookAction_RequiresURL(t *testing.T) {
	_, err := webhook.NewWebhookAction(map[string]any{})
	assert.Error(t, err)
}
