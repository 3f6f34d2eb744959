// Package querysql compiles queryir queries to parameterized SQLite SQL.
package querysql

import (
	"fmt"
	"math"
	"strings"

	"github.com/roach88/appsim/internal/ir"
	"github.com/roach88/appsim/internal/queryir"
)

// SQLCompiler compiles queries for one schema. Every statement ends with
// an ORDER BY that includes the row id, and every literal is bound as a
// parameter.
type SQLCompiler struct {
	Schema queryir.Schema
}

// NewSQLCompiler creates a compiler for the given schema.
func NewSQLCompiler(schema queryir.Schema) *SQLCompiler {
	return &SQLCompiler{Schema: schema}
}

// Compile validates q and converts it to SQL with positional parameters.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if res := queryir.Validate(q, c.Schema); !res.Valid {
		return "", nil, fmt.Errorf("invalid query: %s", strings.Join(res.Errors, "; "))
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(q.Columns, ", "), q.From)

	var params []any
	if q.Filter != nil {
		where, p, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" WHERE ")
		b.WriteString(where)
		params = p
	}

	b.WriteString(" ORDER BY ")
	b.WriteString(stableOrderKey(q.OrderBy))
	return b.String(), params, nil
}

// stableOrderKey appends the row id tiebreaker to the requested ordering.
func stableOrderKey(orderBy []string) string {
	parts := make([]string, 0, len(orderBy)+1)
	for _, col := range orderBy {
		if col == "id" {
			continue
		}
		parts = append(parts, col+" ASC")
	}
	parts = append(parts, "id ASC")
	return strings.Join(parts, ", ")
}

func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case queryir.Equals:
		return compareSQL(pred.Field, "=", pred.Value)
	case *queryir.Equals:
		return compareSQL(pred.Field, "=", pred.Value)
	case queryir.Greater:
		return compareSQL(pred.Field, ">", pred.Value)
	case *queryir.Greater:
		return compareSQL(pred.Field, ">", pred.Value)
	case queryir.And:
		return c.compileAnd(pred)
	case *queryir.And:
		return c.compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compareSQL(field, op string, v ir.IRValue) (string, []any, error) {
	param, err := irValueToParam(v)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", field, err)
	}
	return fmt.Sprintf("%s %s ?", field, op), []any{param}, nil
}

func (c *SQLCompiler) compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, pred := range and.Predicates {
		sql, p, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, p...)
	}
	return strings.Join(parts, " AND "), params, nil
}

// irValueToParam converts a scalar value to a driver parameter. Integral
// numbers bind as int64 so they compare exactly against INTEGER columns;
// booleans bind as 0 or 1.
func irValueToParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRNumber:
		f := float64(val)
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int64(f), nil
		}
		return f, nil
	case ir.IRBool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	default:
		return nil, fmt.Errorf("%s cannot be used as a SQL parameter", ir.KindOf(v))
	}
}
