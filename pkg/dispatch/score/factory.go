package score

import "github.com/campaignkit/journey/pkg/dispatch"

type AdjustScoreActionFactory struct {
	client dispatch.ScoringClient
}

func NewAdjustScoreActionFactory(client dispatch.ScoringClient) *AdjustScoreActionFactory {
	return &AdjustScoreActionFactory{client: client}
}

func (f *AdjustScoreActionFactory) Create(params map[string]any) (dispatch.Action, error) {
	return NewAdjustScoreAction(params, f.client)
}

func (f *AdjustScoreActionFactory) ActionType() string {
	return "adjust_score"
}

func (f *AdjustScoreActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"delta": map[string]any{
				"type": "number",
			},
		},
		"required":             []any{"delta"},
		"additionalProperties": false,
	}
}
