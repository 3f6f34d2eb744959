package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/appsim/internal/ir"
	"github.com/roach88/appsim/internal/state"
)

func TestParseTarget_Valid(t *testing.T) {
	ctx := NewExecutionContext("alice", ir.IRObject{"to": ir.IRString("bob"), "i": ir.IRNumber(1)}, testState(), nil)

	tests := []struct {
		src  string
		want string
	}{
		{"agent.balance", `agents["alice"].balance`},
		{"shared.log", "shared.log"},
		{"shared.stats.count", "shared.stats.count"},
		{"agents[params.to].balance", `agents["bob"].balance`},
		{"shared.log[params.i]", "shared.log[1]"},
		{"shared.map[params.to]", "shared.map.bob"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			target, err := ParseTarget(tt.src)
			require.NoError(t, err)
			addr, err := target.Resolve(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, tt.want, addr.String())
		})
	}
}

func TestParseTarget_Invalid(t *testing.T) {
	for _, src := range []string{
		"agent",
		"shared",
		"agents.balance",
		"params.amount",
		"config.fee",
		"agent.balance + 1",
		"len(shared.log)",
		"agents['bob']",
		"agent.(",
	} {
		t.Run(src, func(t *testing.T) {
			_, err := ParseTarget(src)
			assert.Error(t, err)
		})
	}
}

func TestTarget_ResolveRejectsNonStringAgent(t *testing.T) {
	target, err := ParseTarget("agents[params.n].balance")
	require.NoError(t, err)

	ctx := NewExecutionContext("alice", ir.IRObject{"n": ir.IRNumber(3)}, testState(), nil)
	_, err = target.Resolve(ctx, "alice")
	assert.True(t, state.IsTypeMismatch(err))
}

func TestTarget_Exprs(t *testing.T) {
	target, err := ParseTarget("agents[params.to].items[params.i].name")
	require.NoError(t, err)
	assert.Len(t, target.Exprs(), 2)
}
