package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/appsim/internal/ir"
	"github.com/roach88/appsim/internal/queryir"
)

var testSchema = queryir.Schema{
	"execution_log": {"id", "app_id", "seq", "agent_id", "action", "success", "outcome"},
}

func TestCompile(t *testing.T) {
	tests := []struct {
		name   string
		query  queryir.Query
		sql    string
		params []any
	}{
		{
			name:  "no filter",
			query: queryir.Select{From: "execution_log", Columns: []string{"seq", "action"}},
			sql:   "SELECT seq, action FROM execution_log ORDER BY id ASC",
		},
		{
			name: "equals",
			query: queryir.Select{
				From:    "execution_log",
				Columns: []string{"seq"},
				Filter:  queryir.Equals{Field: "action", Value: ir.IRString("transfer")},
				OrderBy: []string{"seq"},
			},
			sql:    "SELECT seq FROM execution_log WHERE action = ? ORDER BY seq ASC, id ASC",
			params: []any{"transfer"},
		},
		{
			name: "pointer nodes",
			query: &queryir.Select{
				From:    "execution_log",
				Columns: []string{"seq"},
				Filter:  &queryir.Greater{Field: "seq", Value: ir.IRNumber(4)},
			},
			sql:    "SELECT seq FROM execution_log WHERE seq > ? ORDER BY id ASC",
			params: []any{int64(4)},
		},
		{
			name: "conjunction",
			query: queryir.Select{
				From:    "execution_log",
				Columns: []string{"seq"},
				Filter: queryir.And{Predicates: []queryir.Predicate{
					queryir.Equals{Field: "app_id", Value: ir.IRString("payments")},
					queryir.Greater{Field: "seq", Value: ir.IRNumber(0)},
					queryir.Equals{Field: "success", Value: ir.IRBool(false)},
				}},
				OrderBy: []string{"seq", "id"},
			},
			sql:    "SELECT seq FROM execution_log WHERE app_id = ? AND seq > ? AND success = ? ORDER BY seq ASC, id ASC",
			params: []any{"payments", int64(0), int64(0)},
		},
		{
			name: "empty and",
			query: queryir.Select{
				From:    "execution_log",
				Columns: []string{"seq"},
				Filter:  queryir.And{},
			},
			sql: "SELECT seq FROM execution_log WHERE 1 = 1 ORDER BY id ASC",
		},
	}

	compiler := NewSQLCompiler(testSchema)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params, err := compiler.Compile(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.sql, sql)
			assert.Equal(t, tt.params, params)
		})
	}
}

func TestCompile_LiteralsNeverInterpolated(t *testing.T) {
	compiler := NewSQLCompiler(testSchema)
	sql, params, err := compiler.Compile(queryir.Select{
		From:    "execution_log",
		Columns: []string{"seq"},
		Filter:  queryir.Equals{Field: "agent_id", Value: ir.IRString("x' OR '1'='1")},
	})
	require.NoError(t, err)
	assert.NotContains(t, sql, "OR")
	assert.Equal(t, []any{"x' OR '1'='1"}, params)
}

func TestCompile_Invalid(t *testing.T) {
	compiler := NewSQLCompiler(testSchema)

	_, _, err := compiler.Compile(queryir.Select{From: "execution_log", Columns: []string{"seq; DROP TABLE execution_log"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown column")

	_, _, err = compiler.Compile(queryir.Select{
		From:    "execution_log",
		Columns: []string{"seq"},
		Filter:  queryir.Equals{Field: "action", Value: ir.IRArray{}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "action compared to array")

	_, _, err = compiler.Compile(nil)
	require.Error(t, err)
}

func TestIRValueToParam(t *testing.T) {
	tests := []struct {
		name  string
		value ir.IRValue
		want  any
	}{
		{"string", ir.IRString("a"), "a"},
		{"integral number", ir.IRNumber(42), int64(42)},
		{"negative", ir.IRNumber(-3), int64(-3)},
		{"fraction", ir.IRNumber(1.5), 1.5},
		{"true", ir.IRBool(true), int64(1)},
		{"false", ir.IRBool(false), int64(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := irValueToParam(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := irValueToParam(ir.IRObject{})
	assert.Error(t, err)
	_, err = irValueToParam(ir.IRNull{})
	assert.Error(t, err)
}
