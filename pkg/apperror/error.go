// Package apperror defines the closed set of error kinds surfaced by the
// graph engine. None of these are recovered internally; callers are
// expected to abort the transaction and retry where that makes sense.
package apperror

import (
	"fmt"
)

// Error represents an engine error with a stable code
type Error struct {
	Code     string
	Message  string
	Internal error
	Details  map[string]any
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the internal error
func (e *Error) Unwrap() error {
	return e.Internal
}

// Is matches errors by code so sentinel comparisons survive WithMessage et al.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithInternal returns a copy of the error with an internal error attached
func (e *Error) WithInternal(err error) *Error {
	return &Error{
		Code:     e.Code,
		Message:  e.Message,
		Internal: err,
		Details:  e.Details,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *Error) WithMessage(message string) *Error {
	return &Error{
		Code:     e.Code,
		Message:  message,
		Internal: e.Internal,
		Details:  e.Details,
	}
}

// WithMessagef returns a copy of the error with a formatted message
func (e *Error) WithMessagef(format string, args ...any) *Error {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// WithDetails returns a copy of the error with details attached
func (e *Error) WithDetails(details map[string]any) *Error {
	return &Error{
		Code:     e.Code,
		Message:  e.Message,
		Internal: e.Internal,
		Details:  details,
	}
}

// New creates a new engine error
func New(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// The closed kind set. Everything the engine returns wraps one of these.
var (
	// ErrGraphClosed is returned for any operation on a committed or
	// aborted transaction.
	ErrGraphClosed = New("graph_closed", "Transaction is closed")

	// ErrReadOnly is returned when a mutation is attempted under a READ
	// transaction.
	ErrReadOnly = New("read_only", "Transaction is read-only")

	// ErrMetaImmutable is returned on attempts to alter a meta type.
	ErrMetaImmutable = New("meta_immutable", "Meta types cannot be modified")

	// ErrTypeConflict is returned by put-type calls whose label already
	// names a type of a different kind or datatype.
	ErrTypeConflict = New("type_conflict", "Type exists with a different kind")

	// ErrInvalidDatatype is returned when a resource value's runtime type
	// is outside the supported set.
	ErrInvalidDatatype = New("invalid_datatype", "Unsupported resource value type")

	// ErrImmutableValue is returned on attempts to change a resource
	// type's declared datatype.
	ErrImmutableValue = New("immutable_value", "Resource datatype is immutable")

	// ErrDuplicateConcept is returned when the substrate yields multiple
	// concepts where uniqueness is required.
	ErrDuplicateConcept = New("duplicate_concept", "More than one concept matched")

	// ErrValidation carries the aggregated failure list from commit-time
	// validation.
	ErrValidation = New("validation", "Graph validation failed")

	// ErrSubstrate wraps lower-level substrate I/O or conflict failures.
	ErrSubstrate = New("substrate_failure", "Substrate operation failed")
)
