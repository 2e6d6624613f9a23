package sendemail

import "github.com/campaignkit/journey/pkg/dispatch"

type SendEmailActionFactory struct {
	client dispatch.DeliveryClient
}

func NewSendEmailActionFactory(client dispatch.DeliveryClient) *SendEmailActionFactory {
	return &SendEmailActionFactory{client: client}
}

func (f *SendEmailActionFactory) Create(params map[string]any) (dispatch.Action, error) {
	return NewSendEmailAction(params, f.client)
}

func (f *SendEmailActionFactory) ActionType() string {
	return "send_email"
}

func (f *SendEmailActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"template_id": map[string]any{
				"type":      "string",
				"minLength": 1,
			},
			"variables": map[string]any{
				"type": "object",
			},
		},
		"required":             []any{"template_id"},
		"additionalProperties": false,
	}
}
