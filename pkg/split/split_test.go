package split_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campaignkit/journey/pkg/models"
	"github.com/campaignkit/journey/pkg/split"
)

func conditionEdges() []*models.StepEdge {
	return []*models.StepEdge{
		{
			ID:           "high",
			TargetStepID: "step-a",
			Predicate:    &models.Predicate{Attribute: "score", Op: models.OpGreaterThan, Value: 50},
		},
		{
			ID:           "medium",
			TargetStepID: "step-b",
			Predicate:    &models.Predicate{Attribute: "score", Op: models.OpGreaterThan, Value: 20},
		},
		{ID: "fallback", TargetStepID: "step-c", Default: true},
	}
}

func TestEvaluateCondition_FirstMatchWins(t *testing.T) {
	tests := []struct {
		name   string
		attrs  map[string]any
		edgeID string
	}{
		{"matches first edge", map[string]any{"score": 60}, "high"},
		{"matches second edge", map[string]any{"score": 30}, "medium"},
		{"falls back to default", map[string]any{"score": 10}, "fallback"},
		{"missing attribute falls back", map[string]any{}, "fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edge, err := split.EvaluateCondition(conditionEdges(), tt.attrs)
			require.NoError(t, err)
			assert.Equal(t, tt.edgeID, edge.ID)
		})
	}
}

func TestEvaluateCondition_NoDefault(t *testing.T) {
	edges := []*models.StepEdge{
		{
			ID:           "only",
			TargetStepID: "step-a",
			Predicate:    &models.Predicate{Attribute: "plan", Op: models.OpEquals, Value: "pro"},
		},
	}

	_, err := split.EvaluateCondition(edges, map[string]any{"plan": "free"})
	assert.ErrorIs(t, err, split.ErrNoDefaultEdge)
}

func TestEvaluateCondition_EdgeWithoutPredicate(t *testing.T) {
	edges := []*models.StepEdge{
		{ID: "broken", TargetStepID: "step-a"},
	}

	_, err := split.EvaluateCondition(edges, nil)
	assert.ErrorIs(t, err, split.ErrMissingPredicate)
}

func TestEvaluateCondition_NoEdges(t *testing.T) {
	_, err := split.EvaluateCondition(nil, nil)
	assert.ErrorIs(t, err, split.ErrNoEdges)
}

func randomEdges() []*models.StepEdge {
	return []*models.StepEdge{
		{ID: "variant-a", TargetStepID: "step-a", Weight: 0.7},
		{ID: "variant-b", TargetStepID: "step-b", Weight: 0.3},
	}
}

func TestEvaluateRandom_DeterministicPerExecution(t *testing.T) {
	first, err := split.EvaluateRandom(randomEdges(), "execution-42", "split-1")
	require.NoError(t, err)

	// Redelivery of the same command must land on the same edge.
	for range 10 {
		edge, err := split.EvaluateRandom(randomEdges(), "execution-42", "split-1")
		require.NoError(t, err)
		assert.Equal(t, first.ID, edge.ID)
	}
}

func TestEvaluateRandom_DistinctStepsMayDiffer(t *testing.T) {
	edges := randomEdges()

	seen := map[string]bool{}

	for i := range 200 {
		edge, err := split.EvaluateRandom(edges, fmt.Sprintf("execution-%d", i), "split-1")
		require.NoError(t, err)
		seen[edge.ID] = true
	}

	assert.True(t, seen["variant-a"])
	assert.True(t, seen["variant-b"])
}

func TestEvaluateRandom_ConvergesToWeights(t *testing.T) {
	edges := randomEdges()

	const trials = 20000

	counts := map[string]int{}

	for i := range trials {
		edge, err := split.EvaluateRandom(edges, fmt.Sprintf("execution-%d", i), "split-1")
		require.NoError(t, err)
		counts[edge.ID]++
	}

	ratioA := float64(counts["variant-a"]) / trials
	assert.Less(t, math.Abs(ratioA-0.7), 0.02, "variant-a ratio %f", ratioA)
}

func TestEvaluateRandom_WeightsNeedNotSumToOne(t *testing.T) {
	edges := []*models.StepEdge{
		{ID: "a", TargetStepID: "step-a", Weight: 7},
		{ID: "b", TargetStepID: "step-b", Weight: 3},
	}

	edge, err := split.EvaluateRandom(edges, "execution-1", "split-1")
	require.NoError(t, err)
	assert.Contains(t, []string{"a", "b"}, edge.ID)
}

func TestEvaluateRandom_InvalidWeight(t *testing.T) {
	edges := []*models.StepEdge{
		{ID: "a", TargetStepID: "step-a", Weight: 0},
	}

	_, err := split.EvaluateRandom(edges, "execution-1", "split-1")
	assert.ErrorIs(t, err, split.ErrInvalidWeight)
}
