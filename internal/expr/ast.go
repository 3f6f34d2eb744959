package expr

import (
	"strings"

	"github.com/roach88/appsim/internal/ir"
)

// Expr is a node of a parsed expression.
type Expr interface {
	String() string
	exprNode()
}

// Literal is a constant value.
type Literal struct {
	Value ir.IRValue
}

// Ident is a bare name resolved through the Env.
type Ident struct {
	Name string
}

// Member is field access: Object.Name.
type Member struct {
	Object Expr
	Name   string
}

// Index is subscript access: Object[Index].
type Index struct {
	Object Expr
	Index  Expr
}

// Unary is a prefix operator: "!" or "-".
type Unary struct {
	Op string
	X  Expr
}

// Binary is an infix operator. "and"/"or" are normalized to "&&"/"||".
type Binary struct {
	Op    string
	Left  Expr
	Right Expr
}

// Call invokes a builtin function.
type Call struct {
	Func string
	Args []Expr
}

// ArrayLit builds an array from element expressions.
type ArrayLit struct {
	Elems []Expr
}

func (*Literal) exprNode()  {}
func (*Ident) exprNode()    {}
func (*Member) exprNode()   {}
func (*Index) exprNode()    {}
func (*Unary) exprNode()    {}
func (*Binary) exprNode()   {}
func (*Call) exprNode()     {}
func (*ArrayLit) exprNode() {}

func (e *Literal) String() string {
	if s, ok := e.Value.(ir.IRString); ok {
		b, _ := ir.MarshalCanonical(s)
		return string(b)
	}
	return ir.Stringify(e.Value)
}

func (e *Ident) String() string  { return e.Name }
func (e *Member) String() string { return e.Object.String() + "." + e.Name }
func (e *Index) String() string  { return e.Object.String() + "[" + e.Index.String() + "]" }
func (e *Unary) String() string  { return e.Op + e.X.String() }

func (e *Binary) String() string {
	return "(" + e.Left.String() + " " + e.Op + " " + e.Right.String() + ")"
}

func (e *Call) String() string {
	return e.Func + "(" + joinExprs(e.Args) + ")"
}

func (e *ArrayLit) String() string {
	return "[" + joinExprs(e.Elems) + "]"
}

func joinExprs(es []Expr) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

// Walk calls fn for e and every node below it, depth first.
func Walk(e Expr, fn func(Expr)) {
	if e == nil {
		return
	}
	fn(e)
	switch n := e.(type) {
	case *Member:
		Walk(n.Object, fn)
	case *Index:
		Walk(n.Object, fn)
		Walk(n.Index, fn)
	case *Unary:
		Walk(n.X, fn)
	case *Binary:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *Call:
		for _, a := range n.Args {
			Walk(a, fn)
		}
	case *ArrayLit:
		for _, el := range n.Elems {
			Walk(el, fn)
		}
	}
}

// FreeIdents returns the distinct identifiers e reads, in first-use order.
func FreeIdents(e Expr) []string {
	var names []string
	seen := map[string]bool{}
	Walk(e, func(n Expr) {
		if id, ok := n.(*Ident); ok && !seen[id.Name] {
			seen[id.Name] = true
			names = append(names, id.Name)
		}
	})
	return names
}

// Calls returns the distinct function names e invokes.
func Calls(e Expr) []string {
	var names []string
	seen := map[string]bool{}
	Walk(e, func(n Expr) {
		if c, ok := n.(*Call); ok && !seen[c.Func] {
			seen[c.Func] = true
			names = append(names, c.Func)
		}
	})
	return names
}
