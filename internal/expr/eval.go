package expr

import (
	"math"

	"github.com/roach88/appsim/internal/ir"
)

// Env resolves root identifiers and supplies the side inputs builtins need.
// Implementations must not mutate state in response to lookups.
type Env interface {
	// Lookup returns the value bound to name. ok is false for undefined names.
	Lookup(name string) (ir.IRValue, bool)

	// NewID returns a fresh identifier for generate_id().
	NewID() string
}

// Eval evaluates e against env.
//
// Field access on a non-object and lookups of missing keys yield null.
// Arithmetic requires numbers, boolean operators require booleans, and
// comparisons require two numbers or two strings; anything else is a
// TYPE_MISMATCH error.
func Eval(e Expr, env Env) (ir.IRValue, error) {
	switch n := e.(type) {
	case *Literal:
		return n.Value, nil

	case *Ident:
		v, ok := env.Lookup(n.Name)
		if !ok {
			return nil, newError(ErrUnknownIdentifier, "unknown identifier %q", n.Name)
		}
		if v == nil {
			return ir.IRNull{}, nil
		}
		return v, nil

	case *Member:
		obj, err := Eval(n.Object, env)
		if err != nil {
			return nil, err
		}
		return field(obj, n.Name), nil

	case *Index:
		obj, err := Eval(n.Object, env)
		if err != nil {
			return nil, err
		}
		idx, err := Eval(n.Index, env)
		if err != nil {
			return nil, err
		}
		return index(obj, idx), nil

	case *Unary:
		return evalUnary(n, env)

	case *Binary:
		return evalBinary(n, env)

	case *Call:
		return evalCall(n, env)

	case *ArrayLit:
		arr := make(ir.IRArray, len(n.Elems))
		for i, el := range n.Elems {
			v, err := Eval(el, env)
			if err != nil {
				return nil, err
			}
			arr[i] = v
		}
		return arr, nil

	default:
		return nil, newError(ErrSyntax, "unsupported expression node %T", e)
	}
}

// field returns obj[name] for objects and null for everything else.
func field(obj ir.IRValue, name string) ir.IRValue {
	if o, ok := obj.(ir.IRObject); ok {
		if v, exists := o[name]; exists && v != nil {
			return v
		}
	}
	return ir.IRNull{}
}

// index subscripts objects by string and arrays by integral number.
// Negative array indexes count from the end. Misses yield null.
func index(obj, idx ir.IRValue) ir.IRValue {
	switch o := obj.(type) {
	case ir.IRObject:
		if key, ok := idx.(ir.IRString); ok {
			return field(o, string(key))
		}
	case ir.IRArray:
		if i, ok := ArrayIndex(idx, len(o)); ok {
			if v := o[i]; v != nil {
				return v
			}
		}
	}
	return ir.IRNull{}
}

// ArrayIndex converts idx to a position in an array of length n.
func ArrayIndex(idx ir.IRValue, n int) (int, bool) {
	num, ok := idx.(ir.IRNumber)
	if !ok {
		return 0, false
	}
	f := float64(num)
	if f != math.Trunc(f) {
		return 0, false
	}
	i := int(f)
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, false
	}
	return i, true
}

func evalUnary(n *Unary, env Env) (ir.IRValue, error) {
	x, err := Eval(n.X, env)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case "!":
		b, ok := x.(ir.IRBool)
		if !ok {
			return nil, newError(ErrTypeMismatch, "operator ! requires boolean, got %s", ir.KindOf(x))
		}
		return !b, nil
	case "-":
		num, ok := x.(ir.IRNumber)
		if !ok {
			return nil, newError(ErrTypeMismatch, "unary - requires number, got %s", ir.KindOf(x))
		}
		return -num, nil
	default:
		return nil, newError(ErrSyntax, "unknown unary operator %q", n.Op)
	}
}

func evalBinary(n *Binary, env Env) (ir.IRValue, error) {
	left, err := Eval(n.Left, env)
	if err != nil {
		return nil, err
	}

	// Boolean operators short-circuit before evaluating the right side.
	if n.Op == "&&" || n.Op == "||" {
		lb, ok := left.(ir.IRBool)
		if !ok {
			return nil, newError(ErrTypeMismatch, "operator %s requires boolean operands, got %s", n.Op, ir.KindOf(left))
		}
		if (n.Op == "&&" && !bool(lb)) || (n.Op == "||" && bool(lb)) {
			return lb, nil
		}
		right, err := Eval(n.Right, env)
		if err != nil {
			return nil, err
		}
		rb, ok := right.(ir.IRBool)
		if !ok {
			return nil, newError(ErrTypeMismatch, "operator %s requires boolean operands, got %s", n.Op, ir.KindOf(right))
		}
		return rb, nil
	}

	right, err := Eval(n.Right, env)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case "==":
		return ir.IRBool(ir.Equal(left, right)), nil
	case "!=":
		return ir.IRBool(!ir.Equal(left, right)), nil
	case "<", "<=", ">", ">=":
		return compare(n.Op, left, right)
	case "+", "-", "*", "/", "%":
		return arithmetic(n.Op, left, right)
	default:
		return nil, newError(ErrSyntax, "unknown operator %q", n.Op)
	}
}

func compare(op string, left, right ir.IRValue) (ir.IRValue, error) {
	lk, rk := ir.KindOf(left), ir.KindOf(right)
	if lk != rk || (lk != ir.KindNumber && lk != ir.KindString) {
		return nil, newError(ErrTypeMismatch, "cannot compare %s %s %s", lk, op, rk)
	}
	c, _ := ir.Compare(left, right)
	switch op {
	case "<":
		return ir.IRBool(c < 0), nil
	case "<=":
		return ir.IRBool(c <= 0), nil
	case ">":
		return ir.IRBool(c > 0), nil
	default:
		return ir.IRBool(c >= 0), nil
	}
}

// arithmetic applies a numeric operator. Results outside the float64
// range are NUMERIC_OVERFLOW errors, never infinities.
func arithmetic(op string, left, right ir.IRValue) (ir.IRValue, error) {
	l, lok := left.(ir.IRNumber)
	r, rok := right.(ir.IRNumber)
	if !lok || !rok {
		return nil, newError(ErrTypeMismatch, "operator %s requires numbers, got %s and %s", op, ir.KindOf(left), ir.KindOf(right))
	}
	var out float64
	switch op {
	case "+":
		out = float64(l + r)
	case "-":
		out = float64(l - r)
	case "*":
		out = float64(l * r)
	case "/":
		if r == 0 {
			return nil, newError(ErrDivisionByZero, "division by zero")
		}
		out = float64(l / r)
	default:
		if r == 0 {
			return nil, newError(ErrDivisionByZero, "modulo by zero")
		}
		out = math.Mod(float64(l), float64(r))
	}
	if math.IsInf(out, 0) || math.IsNaN(out) {
		return nil, newError(ErrOverflow, "%s %s %s is out of range", ir.Stringify(l), op, ir.Stringify(r))
	}
	return ir.IRNumber(out), nil
}
