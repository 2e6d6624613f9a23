package webhook

import "github.com/campaignkit/journey/pkg/dispatch"

func NewWebhookActionFactory() *WebhookActionFactory {
	return &WebhookActionFactory{}
}

type WebhookActionFactory struct{}

func (f *WebhookActionFactory) Create(params map[string]any) (dispatch.Action, error) {
	return NewWebhookAction(params)
}

func (f *WebhookActionFactory) ActionType() string {
	return "webhook"
}

func (f *WebhookActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":   "string",
				"format": "uri",
			},
			"method": map[string]any{
				"type": "string",
				"enum": []any{"POST", "PUT", "PATCH", "GET"},
			},
			"headers": map[string]any{
				"type": "object",
			},
			"timeout_seconds": map[string]any{
				"type":    "number",
				"minimum": 1,
			},
		},
		"required":             []any{"url"},
		"additionalProperties": false,
	}
}
