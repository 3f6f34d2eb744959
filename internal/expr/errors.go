package expr

import (
	"errors"
	"fmt"
)

// ErrorKind classifies expression failures.
type ErrorKind string

const (
	ErrSyntax            ErrorKind = "SYNTAX"
	ErrTypeMismatch      ErrorKind = "TYPE_MISMATCH"
	ErrUnknownIdentifier ErrorKind = "UNKNOWN_IDENTIFIER"
	ErrUnknownFunction   ErrorKind = "UNKNOWN_FUNCTION"
	ErrArgumentCount     ErrorKind = "ARGUMENT_COUNT"
	ErrDivisionByZero    ErrorKind = "DIVISION_BY_ZERO"
	ErrOverflow          ErrorKind = "NUMERIC_OVERFLOW"
)

// Error is returned by Parse, Eval and Render.
// Pos is the byte offset in the source for syntax errors, -1 otherwise.
type Error struct {
	Kind    ErrorKind
	Message string
	Pos     int
}

func (e *Error) Error() string {
	if e.Kind == ErrSyntax && e.Pos >= 0 {
		return fmt.Sprintf("syntax error at offset %d: %s", e.Pos, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Pos: -1}
}

func syntaxError(pos int, format string, args ...any) *Error {
	return &Error{Kind: ErrSyntax, Message: fmt.Sprintf(format, args...), Pos: pos}
}

// KindOf returns the ErrorKind of err, or "" if err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsTypeMismatch reports whether err is a type mismatch.
func IsTypeMismatch(err error) bool {
	return KindOf(err) == ErrTypeMismatch
}

// IsUnknownIdentifier reports whether err references an undefined root.
func IsUnknownIdentifier(err error) bool {
	return KindOf(err) == ErrUnknownIdentifier
}

// IsSyntaxError reports whether err is a parse failure.
func IsSyntaxError(err error) bool {
	return KindOf(err) == ErrSyntax
}
