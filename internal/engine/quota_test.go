package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIterationBudget_AllowsUpToMax(t *testing.T) {
	b := NewIterationBudget(3)
	for i := 0; i < 3; i++ {
		require.NoError(t, b.Check())
	}
	assert.Equal(t, 3, b.Used())

	err := b.Check()
	require.Error(t, err)
	assert.True(t, IsIterationsExceeded(err))
	assert.False(t, IsDepthExceeded(err))
	assert.Equal(t, "Maximum loop iterations exceeded (3)", err.Error())
}

func TestIterationBudget_ZeroRejectsFirstPass(t *testing.T) {
	b := NewIterationBudget(0)
	assert.Error(t, b.Check())
	assert.Equal(t, 0, b.Max())
}

func TestLimitExceededError_Wrapped(t *testing.T) {
	inner := &LimitExceededError{Kind: LimitDepth, Value: 11, Limit: 10}
	err := fmt.Errorf("running action: %w", inner)

	assert.True(t, IsDepthExceeded(err))
	assert.True(t, IsLimitError(err))
	assert.Equal(t, "Maximum nesting depth exceeded (10)", inner.Error())
}
