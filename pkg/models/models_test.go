package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredicate_Matches(t *testing.T) {
	attrs := map[string]any{
		"score":   60.0,
		"plan":    "pro",
		"country": "BR",
		"visits":  int64(3),
	}

	tests := []struct {
		name      string
		predicate Predicate
		want      bool
	}{
		{"numeric gt true", Predicate{Attribute: "score", Op: OpGreaterThan, Value: 50}, true},
		{"numeric gt false", Predicate{Attribute: "score", Op: OpGreaterThan, Value: 60}, false},
		{"numeric gte boundary", Predicate{Attribute: "score", Op: OpGreaterOrEq, Value: 60}, true},
		{"numeric lt", Predicate{Attribute: "visits", Op: OpLessThan, Value: 5}, true},
		{"numeric lte boundary", Predicate{Attribute: "visits", Op: OpLessOrEq, Value: 3}, true},
		{"string eq", Predicate{Attribute: "plan", Op: OpEquals, Value: "pro"}, true},
		{"string neq", Predicate{Attribute: "plan", Op: OpNotEquals, Value: "free"}, true},
		{"numeric eq across types", Predicate{Attribute: "visits", Op: OpEquals, Value: 3.0}, true},
		{"contains", Predicate{Attribute: "country", Op: OpContains, Value: "B"}, true},
		{"exists present", Predicate{Attribute: "plan", Op: OpExists}, true},
		{"exists missing", Predicate{Attribute: "segment", Op: OpExists}, false},
		{"missing attribute fails gt", Predicate{Attribute: "segment", Op: OpGreaterThan, Value: 1}, false},
		{"missing attribute passes neq", Predicate{Attribute: "segment", Op: OpNotEquals, Value: "x"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.predicate.Matches(attrs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPredicate_Matches_NonNumericComparison(t *testing.T) {
	predicate := Predicate{Attribute: "plan", Op: OpGreaterThan, Value: 10}

	_, err := predicate.Matches(map[string]any{"plan": "pro"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot convert")
}

func TestExecutionStatus_IsTerminal(t *testing.T) {
	assert.False(t, ExecutionStatusActive.IsTerminal())
	assert.False(t, ExecutionStatusPaused.IsTerminal())
	assert.True(t, ExecutionStatusCompleted.IsTerminal())
	assert.True(t, ExecutionStatusExited.IsTerminal())
	assert.True(t, ExecutionStatusFailed.IsTerminal())
}

func TestJourneyExecution_TerminalAt(t *testing.T) {
	now := time.Now()

	execution := &JourneyExecution{Status: ExecutionStatusActive}
	_, ok := execution.TerminalAt()
	assert.False(t, ok)

	execution = &JourneyExecution{Status: ExecutionStatusCompleted, CompletedAt: &now}
	terminalAt, ok := execution.TerminalAt()
	require.True(t, ok)
	assert.Equal(t, now, terminalAt)
}

func TestJourney_IsEnrollable(t *testing.T) {
	journey := &Journey{Status: JourneyStatusDraft}
	assert.False(t, journey.IsEnrollable())

	journey = &Journey{Status: JourneyStatusPublished}
	assert.False(t, journey.IsEnrollable(), "published journey without a version is not enrollable")

	journey = &Journey{Status: JourneyStatusPublished, CurrentVersionID: "v1"}
	assert.True(t, journey.IsEnrollable())

	journey = &Journey{Status: JourneyStatusPaused, CurrentVersionID: "v1"}
	assert.False(t, journey.IsEnrollable())
}

func TestJourneyVersion_StepByID(t *testing.T) {
	version := &JourneyVersion{
		Steps: []*JourneyStep{
			{ID: "welcome", Type: StepTypeAction},
			{ID: "done", Type: StepTypeExit},
		},
	}

	step, found := version.StepByID("welcome")
	require.True(t, found)
	assert.Equal(t, StepTypeAction, step.Type)

	_, found = version.StepByID("missing")
	assert.False(t, found)
}
