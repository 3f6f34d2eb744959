package engine

import (
	"errors"
	"fmt"
)

// Default resource limits per call.
const (
	DefaultMaxNestedDepth    = 10
	DefaultMaxLoopIterations = 1000
)

// LimitKind names the resource that ran out.
type LimitKind string

const (
	LimitDepth          LimitKind = "depth"
	LimitLoopIterations LimitKind = "loop_iterations"
)

// LimitExceededError is returned when a call exceeds its nesting depth or
// loop iteration budget. It terminates the whole call.
type LimitExceededError struct {
	Kind  LimitKind
	Value int // depth or iteration count reached
	Limit int
}

// Error implements the error interface. The wording names the resource so
// callers can tell runaway definitions from business failures.
func (e *LimitExceededError) Error() string {
	if e.Kind == LimitDepth {
		return fmt.Sprintf("Maximum nesting depth exceeded (%d)", e.Limit)
	}
	return fmt.Sprintf("Maximum loop iterations exceeded (%d)", e.Limit)
}

// IsDepthExceeded returns true if err is a nesting depth failure.
func IsDepthExceeded(err error) bool {
	var le *LimitExceededError
	return errors.As(err, &le) && le.Kind == LimitDepth
}

// IsIterationsExceeded returns true if err is a loop iteration failure.
func IsIterationsExceeded(err error) bool {
	var le *LimitExceededError
	return errors.As(err, &le) && le.Kind == LimitLoopIterations
}

// IterationBudget counts loop passes across one call.
//
// One budget is shared by every loop in the call, nested or sequential,
// so a definition cannot multiply its allowance by nesting loops.
type IterationBudget struct {
	max     int
	current int
}

// NewIterationBudget creates a budget allowing max passes.
func NewIterationBudget(max int) *IterationBudget {
	return &IterationBudget{max: max}
}

// Check counts one pass and fails once the count exceeds the limit.
func (b *IterationBudget) Check() error {
	b.current++
	if b.current > b.max {
		return &LimitExceededError{Kind: LimitLoopIterations, Value: b.current, Limit: b.max}
	}
	return nil
}

// Used returns the number of passes counted so far.
func (b *IterationBudget) Used() int {
	return b.current
}

// Max returns the limit.
func (b *IterationBudget) Max() int {
	return b.max
}
