package attribute

import "github.com/campaignkit/journey/pkg/dispatch"

type UpdateAttributeActionFactory struct {
	client dispatch.CRMClient
}

func NewUpdateAttributeActionFactory(client dispatch.CRMClient) *UpdateAttributeActionFactory {
	return &UpdateAttributeActionFactory{client: client}
}

func (f *UpdateAttributeActionFactory) Create(params map[string]any) (dispatch.Action, error) {
	return NewUpdateAttributeAction(params, f.client)
}

func (f *UpdateAttributeActionFactory) ActionType() string {
	return "update_attribute"
}

func (f *UpdateAttributeActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"attribute": map[string]any{
				"type":      "string",
				"minLength": 1,
			},
			"value": map[string]any{},
		},
		"required":             []any{"attribute", "value"},
		"additionalProperties": false,
	}
}
