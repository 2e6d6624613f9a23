package persistence

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecutionError_WrapsAndMatches(t *testing.T) {
	err := NewExecutionError("AdvanceStep", "exec-1", ErrStepConflict)

	assert.Contains(t, err.Error(), "AdvanceStep")
	assert.Contains(t, err.Error(), "exec-1")
	assert.True(t, errors.Is(err, ErrStepConflict))
	assert.True(t, IsStepConflict(err))
	assert.False(t, IsExecutionNotFound(err))
}

func TestJourneyError_WrapsAndMatches(t *testing.T) {
	err := NewJourneyError("GetByID", "journey-1", ErrJourneyNotFound)

	assert.True(t, IsJourneyNotFound(err))
	assert.True(t, IsJourneyNotFound(fmt.Errorf("outer: %w", err)))
	assert.False(t, IsVersionNotFound(err))
}
