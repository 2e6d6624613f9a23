// Package webhook posts the execution context to an external URL.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/campaignkit/journey/pkg/dispatch"
	"github.com/campaignkit/journey/pkg/models"
)

const (
	defaultTimeout  = 30 * time.Second
	maxResponseSize = 1024 * 1024
)

type WebhookAction struct {
	method  string
	url     string
	headers map[string]string
	timeout time.Duration
	client  *http.Client
}

func NewWebhookAction(params map[string]any) (*WebhookAction, error) {
	url, _ := params["url"].(string)
	if url == "" {
		return nil, errors.New("webhook requires a url parameter")
	}

	method, _ := params["method"].(string)
	if method == "" {
		method = http.MethodPost
	}

	headers := make(map[string]string)

	if raw, ok := params["headers"].(map[string]any); ok {
		for key, value := range raw {
			if str, ok := value.(string); ok {
				headers[key] = str
			}
		}
	}

	timeout := defaultTimeout
	if seconds, ok := params["timeout_seconds"].(float64); ok && seconds > 0 {
		timeout = time.Duration(seconds) * time.Second
	}

	return &WebhookAction{
		method:  strings.ToUpper(method),
		url:     url,
		headers: headers,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (a *WebhookAction) Execute(ctx context.Context, executionCtx models.ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	logger.InfoContext(ctx, "Calling webhook", "method", a.method, "url", a.url)

	payload := map[string]any{
		"execution_id": executionCtx.ExecutionID,
		"journey_id":   executionCtx.JourneyID,
		"contact_id":   executionCtx.ContactID,
		"attributes":   executionCtx.Attributes,
		"trigger_data": executionCtx.TriggerData,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal webhook payload: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, a.method, a.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	for key, value := range a.headers {
		req.Header.Set(key, value)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, dispatch.NewTransientError(fmt.Errorf("webhook request: %w", err))
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.WarnContext(ctx, "Failed to close webhook response body", "error", closeErr)
		}
	}()

	responseBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, dispatch.NewTransientError(fmt.Errorf("read webhook response: %w", err))
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, dispatch.NewTransientError(fmt.Errorf("webhook returned status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		// Client errors will not improve on retry.
		return nil, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return map[string]any{
		"status_code": resp.StatusCode,
		"body":        string(responseBody),
	}, nil
}
