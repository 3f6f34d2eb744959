package state

import (
	"errors"
	"fmt"
)

// LookupError is returned when an address names an agent that has no
// per-agent entry. Absence is never treated as an implicit empty object.
type LookupError struct {
	AgentID string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("unknown agent %q", e.AgentID)
}

// PathErrorCode classifies update failures.
type PathErrorCode string

const (
	// PathTypeMismatch: the operation does not apply to the value found.
	PathTypeMismatch PathErrorCode = "TYPE_MISMATCH"

	// PathInvalid: the path cannot address a location (bad index, empty path).
	PathInvalid PathErrorCode = "INVALID_PATH"

	// PathOverflow: an add or subtract result is outside the float64 range.
	PathOverflow PathErrorCode = "NUMERIC_OVERFLOW"
)

// PathError is returned by Apply when a location cannot be written.
type PathError struct {
	Code    PathErrorCode
	Path    string
	Message string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s at %s: %s", e.Code, e.Path, e.Message)
}

// SerializationError is returned by Restore and FromObject for blobs that
// do not decode to a {per_agent, shared} document.
type SerializationError struct {
	Message string
	Err     error
}

func (e *SerializationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid state snapshot: %s: %v", e.Message, e.Err)
	}
	return "invalid state snapshot: " + e.Message
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// IsLookupError reports whether err is a missing-agent lookup failure.
func IsLookupError(err error) bool {
	var e *LookupError
	return errors.As(err, &e)
}

// IsTypeMismatch reports whether err is a PathError with PathTypeMismatch.
func IsTypeMismatch(err error) bool {
	var e *PathError
	return errors.As(err, &e) && e.Code == PathTypeMismatch
}

// IsOverflow reports whether err is a numeric overflow from Apply.
func IsOverflow(err error) bool {
	var e *PathError
	return errors.As(err, &e) && e.Code == PathOverflow
}

// IsSerializationError reports whether err is a snapshot decode failure.
func IsSerializationError(err error) bool {
	var e *SerializationError
	return errors.As(err, &e)
}
