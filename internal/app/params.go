package app

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/roach88/appsim/internal/ir"
)

// ParamError is a parameter validation failure. Message is the text
// returned to callers in AppResult.Error.
type ParamError struct {
	Action  string
	Param   string
	Message string
}

func (e *ParamError) Error() string {
	return e.Message
}

// UnknownActionError is returned when a call names an action the
// definition does not declare.
type UnknownActionError struct {
	Action string
}

func (e *UnknownActionError) Error() string {
	return "Unknown action: " + e.Action
}

// checkParams validates params against action and returns the resolved
// parameter object with defaults filled. Explicit nulls count as absent.
//
// Checks run in a fixed order and the first violation is reported:
// unknown keys, missing required keys, then per-parameter type and
// bounds, each in sorted name order.
func checkParams(action *ir.ActionDefinition, params ir.IRObject) (ir.IRObject, error) {
	supplied := make([]string, 0, len(params))
	for name := range params {
		supplied = append(supplied, name)
	}
	sort.Strings(supplied)

	for _, name := range supplied {
		if _, ok := action.Parameters[name]; !ok {
			return nil, &ParamError{
				Action:  action.Name,
				Param:   name,
				Message: fmt.Sprintf("Unknown parameter '%s' for action '%s'", name, action.Name),
			}
		}
	}

	resolved := make(ir.IRObject, len(action.Parameters))
	names := action.ParamNames()
	for _, name := range names {
		spec := action.Parameters[name]
		v, ok := params[name]
		if ok && !ir.IsNull(v) {
			resolved[name] = ir.DeepCopy(v)
			continue
		}
		if spec.Required {
			return nil, &ParamError{
				Action:  action.Name,
				Param:   name,
				Message: fmt.Sprintf("Missing required parameter '%s'", name),
			}
		}
		if spec.Default != nil {
			resolved[name] = ir.DeepCopy(spec.Default)
		}
	}

	for _, name := range names {
		v, ok := resolved[name]
		if !ok {
			continue
		}
		if err := checkParam(action.Name, name, action.Parameters[name], v); err != nil {
			return nil, err
		}
	}
	return resolved, nil
}

func checkParam(action, name string, spec ir.ParamSpec, v ir.IRValue) error {
	fail := func(format string, args ...any) error {
		return &ParamError{Action: action, Param: name, Message: fmt.Sprintf(format, args...)}
	}

	if got := ir.KindOf(v); got != spec.Type {
		return fail("Parameter '%s' must be of type %s, got %s", name, spec.Type, got)
	}

	switch val := v.(type) {
	case ir.IRNumber:
		if spec.MinValue != nil && float64(val) < *spec.MinValue {
			return fail("Parameter '%s' must be >= %s, got %s", name, ir.Stringify(ir.IRNumber(*spec.MinValue)), ir.Stringify(val))
		}
		if spec.MaxValue != nil && float64(val) > *spec.MaxValue {
			return fail("Parameter '%s' must be <= %s, got %s", name, ir.Stringify(ir.IRNumber(*spec.MaxValue)), ir.Stringify(val))
		}
	case ir.IRString:
		n := utf8.RuneCountInString(string(val))
		if spec.MinLength != nil && n < *spec.MinLength {
			return fail("Parameter '%s' must be at least %d characters", name, *spec.MinLength)
		}
		if spec.MaxLength != nil && n > *spec.MaxLength {
			return fail("Parameter '%s' must be at most %d characters", name, *spec.MaxLength)
		}
	}
	return nil
}
