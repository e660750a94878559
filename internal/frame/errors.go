package frame

import (
	"fmt"
	"strings"
)

// ErrorType classifies structural failures of table operations.
type ErrorType string

const (
	ErrTypeFileNotFound     ErrorType = "FILE_NOT_FOUND"
	ErrTypeRangeOutOfBounds ErrorType = "RANGE_OUT_OF_BOUNDS"
	ErrTypeUnknownColumn    ErrorType = "UNKNOWN_COLUMN"
	ErrTypeInvalidDate      ErrorType = "INVALID_DATE"
	ErrTypeUnparseableLabel ErrorType = "UNPARSEABLE_LABEL"
	ErrTypeDuplicateKey     ErrorType = "DUPLICATE_KEY"
	ErrTypeTypeCoercion     ErrorType = "TYPE_COERCION"
	ErrTypeWrite            ErrorType = "WRITE_ERROR"
	ErrTypeInvalidArgument  ErrorType = "INVALID_ARGUMENT"
)

// Error is the error returned by every operation that aborts.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", e.Type)
	if e.Message != "" {
		b.WriteString(" ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel of the same type, so that
// errors.Is(err, frame.ErrUnknownColumn) works for any unknown column error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Cause == nil && t.Type == e.Type
}

// WithContext attaches a key/value describing where the error happened.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// NewError creates a typed error.
func NewError(errType ErrorType, message string, cause error) *Error {
	return &Error{Type: errType, Message: message, Cause: cause}
}

// Sentinels for errors.Is.
var (
	ErrFileNotFound     = &Error{Type: ErrTypeFileNotFound}
	ErrRangeOutOfBounds = &Error{Type: ErrTypeRangeOutOfBounds}
	ErrUnknownColumn    = &Error{Type: ErrTypeUnknownColumn}
	ErrInvalidDate      = &Error{Type: ErrTypeInvalidDate}
	ErrUnparseableLabel = &Error{Type: ErrTypeUnparseableLabel}
	ErrDuplicateKey     = &Error{Type: ErrTypeDuplicateKey}
	ErrTypeCoercion     = &Error{Type: ErrTypeTypeCoercion}
	ErrWrite            = &Error{Type: ErrTypeWrite}
	ErrInvalidArgument  = &Error{Type: ErrTypeInvalidArgument}
)

// UnknownColumn reports a reference to a column the table does not have.
func UnknownColumn(name string) *Error {
	return NewError(ErrTypeUnknownColumn, fmt.Sprintf("unknown column %q", name), nil).WithContext("column", name)
}

// InvalidArgument reports a malformed operation specification.
func InvalidArgument(format string, args ...any) *Error {
	return NewError(ErrTypeInvalidArgument, fmt.Sprintf(format, args...), nil)
}

// CoercionIssue records one cell that could not be converted. Row is 1-based.
// Issues are collected and returned next to the result table, never as the
// operation's error.
type CoercionIssue struct {
	Row    int
	Column string
	Value  string
	Target Kind
}

func (c CoercionIssue) Error() string {
	return fmt.Sprintf("[%s] row %d column %q: cannot parse %q as %s", ErrTypeTypeCoercion, c.Row, c.Column, c.Value, c.Target)
}

// Is makes a CoercionIssue match ErrTypeCoercion.
func (c CoercionIssue) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Type == ErrTypeTypeCoercion && t.Message == ""
}
