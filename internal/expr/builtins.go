package expr

import (
	"unicode/utf8"

	"github.com/roach88/appsim/internal/ir"
)

type builtin struct {
	arity int
	fn    func(env Env, args []ir.IRValue) (ir.IRValue, error)
}

var builtins = map[string]builtin{
	"len":         {arity: 1, fn: builtinLen},
	"generate_id": {arity: 0, fn: builtinGenerateID},
	"contains":    {arity: 2, fn: builtinContains},
}

// IsBuiltin reports whether name is a known function.
func IsBuiltin(name string) bool {
	_, ok := builtins[name]
	return ok
}

// CheckCall validates a call's function name and argument count without
// evaluating it.
func CheckCall(c *Call) error {
	b, ok := builtins[c.Func]
	if !ok {
		return newError(ErrUnknownFunction, "unknown function %q", c.Func)
	}
	if len(c.Args) != b.arity {
		return newError(ErrArgumentCount, "%s() takes %d argument(s), got %d", c.Func, b.arity, len(c.Args))
	}
	return nil
}

func evalCall(c *Call, env Env) (ir.IRValue, error) {
	if err := CheckCall(c); err != nil {
		return nil, err
	}
	args := make([]ir.IRValue, len(c.Args))
	for i, a := range c.Args {
		v, err := Eval(a, env)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return builtins[c.Func].fn(env, args)
}

// builtinLen returns the length of a string (in characters), array or object.
func builtinLen(_ Env, args []ir.IRValue) (ir.IRValue, error) {
	switch v := args[0].(type) {
	case ir.IRString:
		return ir.IRNumber(utf8.RuneCountInString(string(v))), nil
	case ir.IRArray:
		return ir.IRNumber(len(v)), nil
	case ir.IRObject:
		return ir.IRNumber(len(v)), nil
	default:
		return nil, newError(ErrTypeMismatch, "len() requires string, array or object, got %s", ir.KindOf(v))
	}
}

func builtinGenerateID(env Env, _ []ir.IRValue) (ir.IRValue, error) {
	return ir.IRString(env.NewID()), nil
}

// builtinContains reports whether an array holds an element equal to item.
func builtinContains(_ Env, args []ir.IRValue) (ir.IRValue, error) {
	arr, ok := args[0].(ir.IRArray)
	if !ok {
		return nil, newError(ErrTypeMismatch, "contains() requires array, got %s", ir.KindOf(args[0]))
	}
	for _, el := range arr {
		if ir.Equal(el, args[1]) {
			return ir.IRBool(true), nil
		}
	}
	return ir.IRBool(false), nil
}
