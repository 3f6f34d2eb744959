package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrecedence(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"1 + 2 * 3", "(1 + (2 * 3))"},
		{"a or b and c", "(a || (b && c))"},
		{"a == b && c != d", "((a == b) && (c != d))"},
		{"!a.b", "!a.b"},
		{"agents[params.to].balance >= 10", "(agents[params.to].balance >= 10)"},
		{"x - -1", "(x - -1)"},
		{"len(a) > 0", "(len(a) > 0)"},
		{"'it\\'s'", `"it's"`},
		{"[1, 2][0]", "[1, 2][0]"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			e, err := Parse(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.String())
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []string{
		"",
		"   ",
		"1 +",
		"(1",
		"a.",
		"a[1",
		"'unterminated",
		"a @ b",
		"f(1,",
		"1 2",
		"and",
	}

	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			_, err := Parse(src)
			require.Error(t, err)
			assert.True(t, IsSyntaxError(err), "want syntax error, got %v", err)
		})
	}
}

func TestKeywordsAllowedAsFieldNames(t *testing.T) {
	e, err := Parse("agent.null")
	require.NoError(t, err)
	assert.Equal(t, "agent.null", e.String())
}

func TestFreeIdentsAndCalls(t *testing.T) {
	e := MustParse("agents[params.to].balance + len(shared.x) + item.n + generate_id()")

	assert.Equal(t, []string{"agents", "params", "shared", "item"}, FreeIdents(e))
	assert.Equal(t, []string{"len", "generate_id"}, Calls(e))
}
