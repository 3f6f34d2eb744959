package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/appsim/internal/expr"
	"github.com/roach88/appsim/internal/ir"
	"github.com/roach88/appsim/internal/state"
)

// RuntimeError represents a failure detected while running a program.
//
// Runtime errors include:
//   - Evaluation failures: type mismatch, unknown identifier, bad subscript
//   - Update failures: unknown agent, invalid target path
//   - Internal failures: recovered panics
//
// Terminal business outcomes (failed Validate, Error blocks) are results,
// not RuntimeErrors.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Block locates the failing block, e.g. "logic[2].then[0]".
	Block string

	// BlockType is the type of the failing block.
	BlockType ir.BlockType

	// Err is the underlying cause.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeEval indicates an expression could not be evaluated.
	ErrCodeEval RuntimeErrorCode = "EVAL_ERROR"

	// ErrCodeUnknownAgent indicates an update addressed an agent with no state.
	ErrCodeUnknownAgent RuntimeErrorCode = "UNKNOWN_AGENT"

	// ErrCodeInvalidTarget indicates an update target could not be written.
	ErrCodeInvalidTarget RuntimeErrorCode = "INVALID_TARGET"

	// ErrCodeInternal indicates a recovered panic.
	ErrCodeInternal RuntimeErrorCode = "INTERNAL"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Block != "" {
		return fmt.Sprintf("%s in %s (%s): %s", e.Code, e.Block, e.BlockType, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// newRuntimeError classifies err raised while running block at path.
func newRuntimeError(path string, bt ir.BlockType, err error) *RuntimeError {
	code := ErrCodeEval
	switch {
	case state.IsLookupError(err):
		code = ErrCodeUnknownAgent
	case state.IsTypeMismatch(err), state.IsOverflow(err):
		code = ErrCodeEval
	case isPathError(err):
		code = ErrCodeInvalidTarget
	}
	return &RuntimeError{Code: code, Message: err.Error(), Block: path, BlockType: bt, Err: err}
}

func isPathError(err error) bool {
	var pe *state.PathError
	return errors.As(err, &pe)
}

// IsEvalError returns true if err is an expression evaluation failure.
// Uses errors.As to handle wrapped errors.
func IsEvalError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeEval
	}
	return expr.KindOf(err) != ""
}

// IsLimitError returns true if err is a resource-limit failure.
func IsLimitError(err error) bool {
	var le *LimitExceededError
	return errors.As(err, &le)
}

// resultFor maps an error raised during Run to the caller-facing result.
func resultFor(err error) ir.AppResult {
	var le *LimitExceededError
	if errors.As(err, &le) {
		return ir.Failed(ir.KindResourceLimit, le.Error())
	}
	var re *RuntimeError
	if errors.As(err, &re) && re.Code == ErrCodeInternal {
		return ir.Failed(ir.KindInternal, "Internal error: "+re.Message)
	}
	return ir.Failed(ir.KindEvalError, "Execution error: "+err.Error())
}
