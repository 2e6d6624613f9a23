// Package score adjusts a contact's engagement score.
package score

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/campaignkit/journey/pkg/dispatch"
	"github.com/campaignkit/journey/pkg/models"
)

type AdjustScoreAction struct {
	delta  float64
	client dispatch.ScoringClient
}

func NewAdjustScoreAction(params map[string]any, client dispatch.ScoringClient) (*AdjustScoreAction, error) {
	delta, ok := toFloat(params["delta"])
	if !ok {
		return nil, errors.New("adjust_score requires a numeric delta parameter")
	}

	return &AdjustScoreAction{delta: delta, client: client}, nil
}

func (a *AdjustScoreAction) Execute(ctx context.Context, executionCtx models.ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	logger.InfoContext(ctx, "Adjusting contact score", "delta", a.delta)

	newScore, err := a.client.AdjustScore(ctx, executionCtx.OrganizationID, executionCtx.ContactID, a.delta)
	if err != nil {
		return nil, dispatch.NewTransientError(fmt.Errorf("adjust score: %w", err))
	}

	return map[string]any{
		"delta": a.delta,
		"score": newScore,
	}, nil
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
