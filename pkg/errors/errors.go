// Package errors defines the error taxonomy shared by the reactor-side device
// code and the request bridge. It is a leaf package: every layer that can fail
// a caller-visible operation reports one of these categories, and the bridge
// maps the category onto a status code without inspecting messages.
//
// Import graph: errors <- bdev, nvmf, reservation <- nexus, pool <- bridge
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode is the category of a caller-visible failure.
type ErrorCode int

const (
	// ErrInternal is the catch-all for unexpected failures.
	ErrInternal ErrorCode = iota

	// ErrInvalidArgument covers malformed URIs, unsupported schemes, size
	// mismatches, zero sizes and empty child lists.
	ErrInvalidArgument

	// ErrResourceExhausted is returned when a reactor cannot accept work.
	ErrResourceExhausted

	// ErrDataLoss is returned when a mutation was applied but the
	// configuration could not be persisted.
	ErrDataLoss

	// ErrReservationConflict is returned for I/O issued by a host that does
	// not hold the reservation on a shared namespace.
	ErrReservationConflict

	// ErrNotFound indicates the named object does not exist.
	ErrNotFound

	// ErrAlreadyExists indicates a conflicting object with the same identity.
	ErrAlreadyExists

	// ErrFailedPrecondition indicates the object is in the wrong state for
	// the operation (setting ANA on an unpublished nexus, I/O on a faulted
	// child).
	ErrFailedPrecondition
)

// String returns a human-readable name for the error code.
func (c ErrorCode) String() string {
	switch c {
	case ErrInternal:
		return "Internal"
	case ErrInvalidArgument:
		return "InvalidArgument"
	case ErrResourceExhausted:
		return "ResourceExhausted"
	case ErrDataLoss:
		return "DataLoss"
	case ErrReservationConflict:
		return "ReservationConflict"
	case ErrNotFound:
		return "NotFound"
	case ErrAlreadyExists:
		return "AlreadyExists"
	case ErrFailedPrecondition:
		return "FailedPrecondition"
	default:
		return fmt.Sprintf("Unknown(%d)", c)
	}
}

// Error is a categorized failure. Resource names the object the failure is
// about (a URI, nexus name, pool name) and may be empty.
type Error struct {
	Code     ErrorCode
	Message  string
	Resource string
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Resource != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Resource)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by code, so callers can write
// errors.Is(err, &Error{Code: ErrNotFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// New creates an error of the given category.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an error of the given category with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap categorizes err. The category of an already categorized cause is
// replaced, its message is kept as the cause.
func Wrap(code ErrorCode, err error, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// NewInvalidArgument creates an InvalidArgument error about resource.
func NewInvalidArgument(resource, message string) *Error {
	return &Error{Code: ErrInvalidArgument, Message: message, Resource: resource}
}

// NewNotFound creates a NotFound error.
func NewNotFound(kind, name string) *Error {
	return &Error{Code: ErrNotFound, Message: kind + " not found", Resource: name}
}

// NewAlreadyExists creates an AlreadyExists error.
func NewAlreadyExists(kind, name string) *Error {
	return &Error{Code: ErrAlreadyExists, Message: kind + " already exists", Resource: name}
}

// NewReservationConflict creates a ReservationConflict error for resource.
func NewReservationConflict(resource string) *Error {
	return &Error{Code: ErrReservationConflict, Message: "reservation conflict", Resource: resource}
}

// CodeOf returns the category of err. Uncategorized errors are Internal.
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ErrInternal
}

// IsCode reports whether err carries the given category anywhere in its chain.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Err
	}
	return false
}

// IsNotFound returns true if err is a NotFound error.
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrNotFound
}

// IsInvalidArgument returns true if err is an InvalidArgument error.
func IsInvalidArgument(err error) bool {
	return CodeOf(err) == ErrInvalidArgument
}

// IsReservationConflict returns true if err, or any categorized cause of it,
// is a reservation conflict.
func IsReservationConflict(err error) bool {
	return IsCode(err, ErrReservationConflict)
}
