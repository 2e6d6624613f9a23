package clients_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campaignkit/journey/pkg/clients"
)

func TestPlatformClient_Attributes(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/orgs/org-1/contacts/c-1/attributes", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode(map[string]any{"plan": "pro", "score": 42})
	}))
	defer server.Close()

	client := clients.NewPlatformClient(server.URL, "secret")

	attrs, err := client.Attributes(context.Background(), "org-1", "c-1")
	require.NoError(t, err)
	assert.Equal(t, "pro", attrs["plan"])
	assert.InDelta(t, 42, attrs["score"], 0.001)
}

func TestPlatformClient_SendEmail(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orgs/org-1/messages/email", r.URL.Path)

		var payload map[string]any

		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "c-1", payload["contact_id"])
		assert.Equal(t, "tpl-9", payload["template_id"])

		_ = json.NewEncoder(w).Encode(map[string]any{"message_id": "msg-123"})
	}))
	defer server.Close()

	client := clients.NewPlatformClient(server.URL, "")

	messageID, err := client.SendEmail(context.Background(), "org-1", "c-1", "tpl-9", map[string]any{"name": "Ana"})
	require.NoError(t, err)
	assert.Equal(t, "msg-123", messageID)
}

func TestPlatformClient_UpdateAttribute(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/orgs/org-1/contacts/c-1/attributes/plan", r.URL.Path)

		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := clients.NewPlatformClient(server.URL, "")

	err := client.UpdateAttribute(context.Background(), "org-1", "c-1", "plan", "enterprise")
	require.NoError(t, err)
}

func TestPlatformClient_AdjustScore(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any

		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.InDelta(t, 10, payload["delta"], 0.001)

		_ = json.NewEncoder(w).Encode(map[string]any{"score": 52.5})
	}))
	defer server.Close()

	client := clients.NewPlatformClient(server.URL, "")

	score, err := client.AdjustScore(context.Background(), "org-1", "c-1", 10)
	require.NoError(t, err)
	assert.InDelta(t, 52.5, score, 0.001)
}

func TestPlatformClient_ContactsInSegment(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orgs/org-1/segments/seg-1/contacts", r.URL.Path)

		_ = json.NewEncoder(w).Encode(map[string]any{"contact_ids": []string{"c-1", "c-2"}})
	}))
	defer server.Close()

	client := clients.NewPlatformClient(server.URL, "")

	contacts, err := client.ContactsInSegment(context.Background(), "org-1", "seg-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c-1", "c-2"}, contacts)
}

func TestPlatformClient_ErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "contact not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := clients.NewPlatformClient(server.URL, "")

	_, err := client.Attributes(context.Background(), "org-1", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
