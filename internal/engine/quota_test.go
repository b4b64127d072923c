package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotaEnforcer_WithinLimit(t *testing.T) {
	q := NewQuotaEnforcer(10)

	for i := range 10 {
		assert.NoError(t, q.Check("run-1"), "step %d should be allowed", i+1)
	}

	assert.Equal(t, 10, q.Current())
	assert.Equal(t, 10, q.MaxSteps())
}

func TestQuotaEnforcer_ExceedsLimit(t *testing.T) {
	q := NewQuotaEnforcer(5)
	for range 5 {
		require.NoError(t, q.Check("run-1"))
	}

	err := q.Check("run-1")
	require.Error(t, err)

	var stepsErr *StepsExceededError
	require.ErrorAs(t, err, &stepsErr)
	assert.Equal(t, "run-1", stepsErr.RunID)
	assert.Equal(t, 6, stepsErr.Steps)
	assert.Equal(t, 5, stepsErr.Limit)
	assert.True(t, IsQuotaError(fmt.Errorf("wrapped: %w", err)))
	assert.True(t, IsStepsExceededError(err))
}

func TestQuotaEnforcer_Unlimited(t *testing.T) {
	q := NewQuotaEnforcer(0)
	for range 1000 {
		require.NoError(t, q.Check("run-1"))
	}
	q.Reset()
	assert.Zero(t, q.Current())
}
