package queryir

import "github.com/roach88/appsim/internal/ir"

// Query is a sealed interface; only types in this package implement it.
type Query interface {
	queryNode()
}

// Predicate is a sealed filter condition.
type Predicate interface {
	predicateNode()
}

// Select reads columns from one table.
//
//	SELECT <columns> FROM <from> WHERE <filter> ORDER BY <order_by>
//
// Backends always append the table's row id as a final tiebreaker, so
// results are ordered even when OrderBy is empty.
type Select struct {
	From    string
	Columns []string
	Filter  Predicate // nil = no filter
	OrderBy []string  // ascending
}

func (Select) queryNode() {}

// Equals matches rows whose field equals a scalar literal.
type Equals struct {
	Field string
	Value ir.IRValue
}

func (Equals) predicateNode() {}

// Greater matches rows whose field is strictly greater than a number or
// string literal.
type Greater struct {
	Field string
	Value ir.IRValue
}

func (Greater) predicateNode() {}

// And is a conjunction. An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// All builds an And from the non-nil predicates given. It returns nil
// when none remain, and the predicate itself when exactly one does.
func All(preds ...Predicate) Predicate {
	var kept []Predicate
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return And{Predicates: kept}
	}
}

// Schema lists the queryable columns of each table.
type Schema map[string][]string

// HasColumn reports whether table has the named column.
func (s Schema) HasColumn(table, column string) bool {
	for _, c := range s[table] {
		if c == column {
			return true
		}
	}
	return false
}
