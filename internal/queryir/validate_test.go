package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/appsim/internal/ir"
)

var testSchema = Schema{
	"execution_log": {"id", "app_id", "seq", "action", "success"},
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		query  Query
		errors []string
	}{
		{
			name: "valid select",
			query: Select{
				From:    "execution_log",
				Columns: []string{"seq", "action"},
				Filter: And{Predicates: []Predicate{
					Equals{Field: "app_id", Value: ir.IRString("payments")},
					Greater{Field: "seq", Value: ir.IRNumber(3)},
					Equals{Field: "success", Value: ir.IRBool(true)},
				}},
				OrderBy: []string{"seq"},
			},
		},
		{
			name:  "pointer types",
			query: &Select{From: "execution_log", Columns: []string{"seq"}, Filter: &Equals{Field: "action", Value: ir.IRString("x")}},
		},
		{
			name:   "nil query",
			query:  nil,
			errors: []string{"nil query"},
		},
		{
			name:   "unknown table",
			query:  Select{From: "carts", Columns: []string{"id"}},
			errors: []string{`unknown table "carts"`},
		},
		{
			name:   "no columns",
			query:  Select{From: "execution_log"},
			errors: []string{"no columns selected"},
		},
		{
			name:   "unknown column",
			query:  Select{From: "execution_log", Columns: []string{"seq", "secret"}, OrderBy: []string{"when"}},
			errors: []string{`column: unknown column "secret" in execution_log`, `order by: unknown column "when" in execution_log`},
		},
		{
			name: "null comparison",
			query: Select{
				From:    "execution_log",
				Columns: []string{"seq"},
				Filter:  Equals{Field: "action", Value: ir.IRNull{}},
			},
			errors: []string{"filter: action compared to null"},
		},
		{
			name: "bool ordering",
			query: Select{
				From:    "execution_log",
				Columns: []string{"seq"},
				Filter:  And{Predicates: []Predicate{Greater{Field: "success", Value: ir.IRBool(true)}}},
			},
			errors: []string{"filter: success ordered against boolean"},
		},
		{
			name: "nested unknown field",
			query: Select{
				From:    "execution_log",
				Columns: []string{"seq"},
				Filter: And{Predicates: []Predicate{
					And{Predicates: []Predicate{Equals{Field: "agent", Value: ir.IRString("bob")}}},
				}},
			},
			errors: []string{`filter: unknown column "agent" in execution_log`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.query, testSchema)
			if len(tt.errors) == 0 {
				assert.True(t, result.Valid)
				assert.Empty(t, result.Errors)
				return
			}
			assert.False(t, result.Valid)
			assert.Equal(t, tt.errors, result.Errors)
		})
	}
}

func TestAll(t *testing.T) {
	assert.Nil(t, All())
	assert.Nil(t, All(nil, nil))

	eq := Equals{Field: "seq", Value: ir.IRNumber(1)}
	assert.Equal(t, eq, All(nil, eq))

	gt := Greater{Field: "seq", Value: ir.IRNumber(0)}
	and, ok := All(eq, nil, gt).(And)
	require.True(t, ok)
	assert.Equal(t, []Predicate{eq, gt}, and.Predicates)
}

func TestSchema_HasColumn(t *testing.T) {
	assert.True(t, testSchema.HasColumn("execution_log", "seq"))
	assert.False(t, testSchema.HasColumn("execution_log", "nope"))
	assert.False(t, testSchema.HasColumn("missing", "seq"))
}
