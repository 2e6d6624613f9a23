// Package clients implements the HTTP clients for the marketing platform
// services the engine calls out to: contact directory, message delivery,
// CRM attribute writes, scoring and segment membership.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultTimeout  = 30 * time.Second
	maxResponseSize = 1024 * 1024
)

// PlatformClient talks to the platform REST API. It satisfies every client
// interface the action implementations consume, so a single instance wires
// the whole registry.
type PlatformClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewPlatformClient(baseURL, apiKey string) *PlatformClient {
	return &PlatformClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// Attributes fetches the current attribute map of a contact.
func (c *PlatformClient) Attributes(ctx context.Context, organizationID, contactID string) (map[string]any, error) {
	url := fmt.Sprintf("%s/orgs/%s/contacts/%s/attributes", c.baseURL, organizationID, contactID)

	var attributes map[string]any
	if err := c.do(ctx, http.MethodGet, url, nil, &attributes); err != nil {
		return nil, fmt.Errorf("fetch contact attributes: %w", err)
	}

	return attributes, nil
}

// SendEmail renders and sends a template to a contact. The provider message
// id comes back for step results.
func (c *PlatformClient) SendEmail(ctx context.Context, organizationID, contactID, templateID string, variables map[string]any) (string, error) {
	url := fmt.Sprintf("%s/orgs/%s/messages/email", c.baseURL, organizationID)

	payload := map[string]any{
		"contact_id":  contactID,
		"template_id": templateID,
		"variables":   variables,
	}

	var response struct {
		MessageID string `json:"message_id"`
	}

	if err := c.do(ctx, http.MethodPost, url, payload, &response); err != nil {
		return "", fmt.Errorf("send email: %w", err)
	}

	return response.MessageID, nil
}

// UpdateAttribute writes a single contact attribute back to the CRM.
func (c *PlatformClient) UpdateAttribute(ctx context.Context, organizationID, contactID, attribute string, value any) error {
	url := fmt.Sprintf("%s/orgs/%s/contacts/%s/attributes/%s", c.baseURL, organizationID, contactID, attribute)

	payload := map[string]any{"value": value}

	if err := c.do(ctx, http.MethodPut, url, payload, nil); err != nil {
		return fmt.Errorf("update contact attribute: %w", err)
	}

	return nil
}

// AdjustScore shifts a contact's engagement score by delta and returns the
// resulting value.
func (c *PlatformClient) AdjustScore(ctx context.Context, organizationID, contactID string, delta float64) (float64, error) {
	url := fmt.Sprintf("%s/orgs/%s/contacts/%s/score", c.baseURL, organizationID, contactID)

	payload := map[string]any{"delta": delta}

	var response struct {
		Score float64 `json:"score"`
	}

	if err := c.do(ctx, http.MethodPost, url, payload, &response); err != nil {
		return 0, fmt.Errorf("adjust score: %w", err)
	}

	return response.Score, nil
}

// ContactsInSegment lists the contact ids currently in a segment.
func (c *PlatformClient) ContactsInSegment(ctx context.Context, organizationID, segmentID string) ([]string, error) {
	url := fmt.Sprintf("%s/orgs/%s/segments/%s/contacts", c.baseURL, organizationID, segmentID)

	var response struct {
		ContactIDs []string `json:"contact_ids"`
	}

	if err := c.do(ctx, http.MethodGet, url, nil, &response); err != nil {
		return nil, fmt.Errorf("list segment contacts: %w", err)
	}

	return response.ContactIDs, nil
}

func (c *PlatformClient) do(ctx context.Context, method, url string, payload, out any) error {
	var body io.Reader

	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}

		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s returned status %d: %s", method, url, resp.StatusCode, string(data))
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response body: %w", err)
		}
	}

	return nil
}
