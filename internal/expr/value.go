package expr

import (
	"fmt"

	"github.com/roach88/appsim/internal/ir"
)

// ValueExpr is a compiled value tree, as found in Update values, Return
// values and Notify data. Strings are expressions (templates when they
// contain "${"), other scalars are literals, and arrays and objects are
// evaluated element by element.
type ValueExpr struct {
	literal  ir.IRValue
	expr     Expr
	template *Template
	array    []*ValueExpr
	object   map[string]*ValueExpr
	isArray  bool
	isObject bool
}

// CompileValue compiles a definition value tree.
func CompileValue(v ir.IRValue) (*ValueExpr, error) {
	switch val := v.(type) {
	case nil:
		return &ValueExpr{literal: ir.IRNull{}}, nil
	case ir.IRString:
		src := string(val)
		if IsTemplate(src) {
			t, err := ParseTemplate(src)
			if err != nil {
				return nil, err
			}
			return &ValueExpr{template: t}, nil
		}
		e, err := Parse(src)
		if err != nil {
			return nil, err
		}
		return &ValueExpr{expr: e}, nil
	case ir.IRArray:
		out := &ValueExpr{isArray: true, array: make([]*ValueExpr, len(val))}
		for i, el := range val {
			c, err := CompileValue(el)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out.array[i] = c
		}
		return out, nil
	case ir.IRObject:
		out := &ValueExpr{isObject: true, object: make(map[string]*ValueExpr, len(val))}
		for _, k := range val.SortedKeys() {
			c, err := CompileValue(val[k])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out.object[k] = c
		}
		return out, nil
	default:
		return &ValueExpr{literal: val}, nil
	}
}

// Eval evaluates the tree. The result never aliases values reachable
// through env, so callers may store it directly.
func (v *ValueExpr) Eval(env Env) (ir.IRValue, error) {
	switch {
	case v.expr != nil:
		val, err := Eval(v.expr, env)
		if err != nil {
			return nil, err
		}
		return ir.DeepCopy(val), nil
	case v.template != nil:
		s, err := v.template.Render(env)
		if err != nil {
			return nil, err
		}
		return ir.IRString(s), nil
	case v.isArray:
		arr := make(ir.IRArray, len(v.array))
		for i, el := range v.array {
			val, err := el.Eval(env)
			if err != nil {
				return nil, err
			}
			arr[i] = val
		}
		return arr, nil
	case v.isObject:
		obj := make(ir.IRObject, len(v.object))
		for k, el := range v.object {
			val, err := el.Eval(env)
			if err != nil {
				return nil, err
			}
			obj[k] = val
		}
		return obj, nil
	default:
		return ir.DeepCopy(v.literal), nil
	}
}

// EvalObject evaluates an object tree. It is a convenience for Return
// values and Notify data, which are always objects.
func (v *ValueExpr) EvalObject(env Env) (ir.IRObject, error) {
	val, err := v.Eval(env)
	if err != nil {
		return nil, err
	}
	obj, ok := val.(ir.IRObject)
	if !ok {
		return nil, newError(ErrTypeMismatch, "expected object, got %s", ir.KindOf(val))
	}
	return obj, nil
}

// Exprs returns every expression in the tree, including template parts.
func (v *ValueExpr) Exprs() []Expr {
	var out []Expr
	switch {
	case v.expr != nil:
		out = append(out, v.expr)
	case v.template != nil:
		out = append(out, v.template.Exprs()...)
	case v.isArray:
		for _, el := range v.array {
			out = append(out, el.Exprs()...)
		}
	case v.isObject:
		for _, el := range v.object {
			out = append(out, el.Exprs()...)
		}
	}
	return out
}
