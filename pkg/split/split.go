// Package split resolves branching steps. Both evaluators are pure and
// deterministic for a given execution, so a redelivered split command picks
// the same edge it picked the first time.
package split

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/campaignkit/journey/pkg/models"
)

// Configuration errors. The executor treats these as permanent failures and
// does not retry them.
var (
	ErrNoEdges          = errors.New("split step has no outgoing edges")
	ErrNoDefaultEdge    = errors.New("no predicate matched and no default edge is configured")
	ErrInvalidWeight    = errors.New("random-split edge weight must be positive")
	ErrMissingPredicate = errors.New("condition-split edge has neither a predicate nor the default flag")
)

// EvaluateCondition returns the first edge, in declared order, whose
// predicate matches the contact attributes. When no predicate matches, the
// default edge wins; a missing default is a configuration error.
func EvaluateCondition(edges []*models.StepEdge, attrs map[string]any) (*models.StepEdge, error) {
	if len(edges) == 0 {
		return nil, ErrNoEdges
	}

	var defaultEdge *models.StepEdge

	for _, edge := range edges {
		if edge.Default {
			if defaultEdge == nil {
				defaultEdge = edge
			}

			continue
		}

		if edge.Predicate == nil {
			return nil, fmt.Errorf("edge %s: %w", edge.ID, ErrMissingPredicate)
		}

		matched, err := edge.Predicate.Matches(attrs)
		if err != nil {
			return nil, fmt.Errorf("edge %s: %w", edge.ID, err)
		}

		if matched {
			return edge, nil
		}
	}

	if defaultEdge == nil {
		return nil, ErrNoDefaultEdge
	}

	return defaultEdge, nil
}

// EvaluateRandom assigns the execution to one edge according to the declared
// weights. The assignment hashes the execution and step ids, so evaluating
// again for the same execution always lands on the same edge while distinct
// executions spread across edges in proportion to the weights.
func EvaluateRandom(edges []*models.StepEdge, executionID, stepID string) (*models.StepEdge, error) {
	if len(edges) == 0 {
		return nil, ErrNoEdges
	}

	total := 0.0

	for _, edge := range edges {
		if edge.Weight <= 0 {
			return nil, fmt.Errorf("edge %s: %w", edge.ID, ErrInvalidWeight)
		}

		total += edge.Weight
	}

	point := fraction(executionID, stepID)

	cumulative := 0.0

	for _, edge := range edges {
		cumulative += edge.Weight / total
		if point < cumulative {
			return edge, nil
		}
	}

	// Guard against float rounding leaving the last bucket short.
	return edges[len(edges)-1], nil
}

// fraction maps (executionID, stepID) to a uniform value in [0, 1).
func fraction(executionID, stepID string) float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(executionID))
	_, _ = h.Write([]byte(":"))
	_, _ = h.Write([]byte(stepID))

	return float64(h.Sum64()) / math.Pow(2, 64)
}
