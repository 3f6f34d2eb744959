package queryir

import (
	"fmt"

	"github.com/roach88/appsim/internal/ir"
)

// ValidationResult lists the problems found in a query.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// Validate checks a query against a schema.
//
// Rules:
//  1. The table must exist in the schema.
//  2. Columns must be explicit and known.
//  3. Filter and OrderBy fields must be known columns.
//  4. Equals compares against a string, number or bool.
//  5. Greater compares against a string or number.
//
// Validate is a pure function with no side effects.
func Validate(query Query, schema Schema) ValidationResult {
	v := &validator{schema: schema, errors: []string{}}
	v.validateQuery(query)
	return ValidationResult{
		Valid:  len(v.errors) == 0,
		Errors: v.errors,
	}
}

type validator struct {
	schema Schema
	table  string
	errors []string
}

func (v *validator) addError(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addError("nil query")
	case Select:
		v.validateSelect(query)
	case *Select:
		v.validateSelect(*query)
	default:
		v.addError("unknown query type: %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	if _, ok := v.schema[sel.From]; !ok {
		v.addError("unknown table %q", sel.From)
		return
	}
	v.table = sel.From

	if len(sel.Columns) == 0 {
		v.addError("no columns selected")
	}
	for _, c := range sel.Columns {
		v.checkColumn("column", c)
	}
	for _, c := range sel.OrderBy {
		v.checkColumn("order by", c)
	}
	v.validatePredicate(sel.Filter)
}

func (v *validator) checkColumn(where, name string) {
	if !v.schema.HasColumn(v.table, name) {
		v.addError("%s: unknown column %q in %s", where, name, v.table)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
	case Equals:
		v.validateEquals(pred)
	case *Equals:
		v.validateEquals(*pred)
	case Greater:
		v.validateGreater(pred)
	case *Greater:
		v.validateGreater(*pred)
	case And:
		v.validateAnd(pred)
	case *And:
		v.validateAnd(*pred)
	default:
		v.addError("unknown predicate type: %T", p)
	}
}

func (v *validator) validateEquals(eq Equals) {
	v.checkColumn("filter", eq.Field)
	switch eq.Value.(type) {
	case ir.IRString, ir.IRNumber, ir.IRBool:
	default:
		v.addError("filter: %s compared to %s", eq.Field, describe(eq.Value))
	}
}

func (v *validator) validateGreater(gt Greater) {
	v.checkColumn("filter", gt.Field)
	switch gt.Value.(type) {
	case ir.IRString, ir.IRNumber:
	default:
		v.addError("filter: %s ordered against %s", gt.Field, describe(gt.Value))
	}
}

func (v *validator) validateAnd(and And) {
	for _, sub := range and.Predicates {
		v.validatePredicate(sub)
	}
}

func describe(val ir.IRValue) string {
	return string(ir.KindOf(val))
}
