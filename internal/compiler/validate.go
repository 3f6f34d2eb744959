package compiler

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/appsim/internal/engine"
	"github.com/roach88/appsim/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	// AppDefinition errors (E101-E109)
	ErrInvalidAppID     = "E101" // appId must match ^[a-z][a-z0-9_]+$
	ErrAppNameEmpty     = "E102" // name is required
	ErrAppNoActions     = "E103" // at least one action required
	ErrInvalidFieldType = "E104" // invalid param or state type
	ErrDuplicateName    = "E105" // duplicate action/state name
	ErrInvalidName      = "E106" // action, param or state name is not an identifier
	ErrInvalidDefault   = "E107" // default does not match declared type
	ErrInvalidBound     = "E108" // min/max constraint misuse

	// Logic errors (E110-E119)
	ErrActionNoLogic = "E110" // action has no logic blocks
	ErrInvalidLogic  = "E111" // block failed to compile
)

var (
	appIDPattern = regexp.MustCompile(`^[a-z][a-z0-9_]+$`)
	namePattern  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks an app definition for problems that would otherwise
// surface only when an action runs. Returns all errors found (does not
// fail-fast).
func Validate(v any) []ValidationError {
	switch def := v.(type) {
	case *ir.AppDefinition:
		return validateApp(def)
	case ir.AppDefinition:
		return validateApp(&def)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

// AsError joins validation errors into one error, or returns nil.
func AsError(errs []ValidationError) error {
	if len(errs) == 0 {
		return nil
	}
	joined := make([]error, len(errs))
	for i, e := range errs {
		joined[i] = e
	}
	return errors.Join(joined...)
}

func validateApp(def *ir.AppDefinition) []ValidationError {
	var errs []ValidationError

	// E101: appId format
	if !appIDPattern.MatchString(def.AppID) {
		errs = append(errs, ValidationError{
			Field:   "appId",
			Message: fmt.Sprintf("appId %q must match %s", def.AppID, appIDPattern),
			Code:    ErrInvalidAppID,
		})
	}

	// E102: name is required
	if strings.TrimSpace(def.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "name is required and must be non-empty",
			Code:    ErrAppNameEmpty,
		})
	}

	// E103: at least one action required
	if len(def.Actions) == 0 {
		errs = append(errs, ValidationError{
			Field:   "actions",
			Message: "at least one action is required",
			Code:    ErrAppNoActions,
		})
	}

	actionNames := make(map[string]bool)
	for i := range def.Actions {
		action := &def.Actions[i]
		path := fmt.Sprintf("actions[%d]", i)

		if !namePattern.MatchString(action.Name) {
			errs = append(errs, ValidationError{
				Field:   path + ".name",
				Message: fmt.Sprintf("action name %q is not a valid identifier", action.Name),
				Code:    ErrInvalidName,
			})
		}
		if actionNames[action.Name] {
			errs = append(errs, ValidationError{
				Field:   path + ".name",
				Message: fmt.Sprintf("duplicate action name: %q", action.Name),
				Code:    ErrDuplicateName,
			})
		}
		actionNames[action.Name] = true

		for _, pname := range action.ParamNames() {
			errs = append(errs, validateParam(fmt.Sprintf("%s.parameters.%s", path, pname), pname, action.Parameters[pname])...)
		}

		if len(action.Logic) == 0 {
			errs = append(errs, ValidationError{
				Field:   path + ".logic",
				Message: fmt.Sprintf("action %q must have at least one logic block", action.Name),
				Code:    ErrActionNoLogic,
			})
			continue
		}
		errs = append(errs, validateLogic(path, action.Logic)...)
	}

	stateNames := make(map[string]bool)
	for i, field := range def.StateSchema {
		path := fmt.Sprintf("stateSchema[%d]", i)
		if !namePattern.MatchString(field.Name) {
			errs = append(errs, ValidationError{
				Field:   path + ".name",
				Message: fmt.Sprintf("state field name %q is not a valid identifier", field.Name),
				Code:    ErrInvalidName,
			})
		}
		if stateNames[field.Name] {
			errs = append(errs, ValidationError{
				Field:   path + ".name",
				Message: fmt.Sprintf("duplicate state field: %q", field.Name),
				Code:    ErrDuplicateName,
			})
		}
		stateNames[field.Name] = true

		if !ir.ValidStateTypes[field.Type] {
			errs = append(errs, ValidationError{
				Field:   path + ".type",
				Message: fmt.Sprintf("invalid state type %q", field.Type),
				Code:    ErrInvalidFieldType,
			})
			continue
		}
		if field.Default != nil && field.Type != ir.KindAny && ir.KindOf(field.Default) != field.Type {
			errs = append(errs, ValidationError{
				Field:   path + ".default",
				Message: fmt.Sprintf("default is %s, want %s", ir.KindOf(field.Default), field.Type),
				Code:    ErrInvalidDefault,
			})
		}
	}

	return errs
}

func validateParam(path, name string, spec ir.ParamSpec) []ValidationError {
	var errs []ValidationError

	if !namePattern.MatchString(name) {
		errs = append(errs, ValidationError{
			Field:   path,
			Message: fmt.Sprintf("parameter name %q is not a valid identifier", name),
			Code:    ErrInvalidName,
		})
	}
	if !ir.ValidParamTypes[spec.Type] {
		errs = append(errs, ValidationError{
			Field:   path + ".type",
			Message: fmt.Sprintf("invalid parameter type %q (want string, number, boolean, array or object)", spec.Type),
			Code:    ErrInvalidFieldType,
		})
		return errs
	}

	if spec.Default != nil && ir.KindOf(spec.Default) != spec.Type {
		errs = append(errs, ValidationError{
			Field:   path + ".default",
			Message: fmt.Sprintf("default is %s, want %s", ir.KindOf(spec.Default), spec.Type),
			Code:    ErrInvalidDefault,
		})
	}

	if (spec.MinValue != nil || spec.MaxValue != nil) && spec.Type != ir.KindNumber {
		errs = append(errs, ValidationError{
			Field:   path,
			Message: "minValue/maxValue apply only to number parameters",
			Code:    ErrInvalidBound,
		})
	}
	if spec.MinValue != nil && spec.MaxValue != nil && *spec.MinValue > *spec.MaxValue {
		errs = append(errs, ValidationError{
			Field:   path,
			Message: fmt.Sprintf("minValue %v exceeds maxValue %v", *spec.MinValue, *spec.MaxValue),
			Code:    ErrInvalidBound,
		})
	}

	if (spec.MinLength != nil || spec.MaxLength != nil) && spec.Type != ir.KindString {
		errs = append(errs, ValidationError{
			Field:   path,
			Message: "minLength/maxLength apply only to string parameters",
			Code:    ErrInvalidBound,
		})
	}
	if (spec.MinLength != nil && *spec.MinLength < 0) || (spec.MaxLength != nil && *spec.MaxLength < 0) {
		errs = append(errs, ValidationError{
			Field:   path,
			Message: "length bounds must not be negative",
			Code:    ErrInvalidBound,
		})
	}
	if spec.MinLength != nil && spec.MaxLength != nil && *spec.MinLength > *spec.MaxLength {
		errs = append(errs, ValidationError{
			Field:   path,
			Message: fmt.Sprintf("minLength %d exceeds maxLength %d", *spec.MinLength, *spec.MaxLength),
			Code:    ErrInvalidBound,
		})
	}
	return errs
}

// validateLogic compiles the action's blocks and reports every problem
// with its block path.
func validateLogic(path string, blocks []ir.LogicBlock) []ValidationError {
	_, err := engine.Compile(blocks)
	if err == nil {
		return nil
	}

	var compileErrs engine.CompileErrors
	if !errors.As(err, &compileErrs) {
		return []ValidationError{{Field: path + ".logic", Message: err.Error(), Code: ErrInvalidLogic}}
	}

	errs := make([]ValidationError, 0, len(compileErrs))
	for _, ce := range compileErrs {
		field := path + "." + ce.Block
		if ce.Field != "" {
			field += "." + ce.Field
		}
		errs = append(errs, ValidationError{
			Field:   field,
			Message: ce.Err.Error(),
			Code:    ErrInvalidLogic,
		})
	}
	return errs
}
