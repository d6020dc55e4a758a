package lifecycle

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes lifecycle errors.
type ErrorCode string

const (
	// CodeNotFound indicates the key is not present in the store.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeAlreadyExists indicates a create for a key that is already live.
	CodeAlreadyExists ErrorCode = "ALREADY_EXISTS"

	// CodeInvalidTransition indicates an event that is not a legal edge
	// from the entity's current state, or an update that would break an
	// entity invariant.
	CodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
)

// Sentinels for errors.Is matching.
var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInvalidTransition = errors.New("invalid transition")
)

// Error is the error type returned by stores and lifecycle managers.
type Error struct {
	// Op names the failing operation, e.g. "deposit.update".
	Op string

	// Key is the printable key of the affected entity.
	Key string

	// Code identifies the error category.
	Code ErrorCode

	// Message is an optional human-readable detail.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %s: %s", e.Op, e.Key, e.Code, e.Message)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Key, e.Code)
}

// Is reports whether the error matches one of the package sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Code == CodeNotFound
	case ErrAlreadyExists:
		return e.Code == CodeAlreadyExists
	case ErrInvalidTransition:
		return e.Code == CodeInvalidTransition
	}
	return false
}

// NewNotFound creates an Error for a missing key.
func NewNotFound(op string, key any) *Error {
	return &Error{Op: op, Key: fmt.Sprint(key), Code: CodeNotFound}
}

// NewAlreadyExists creates an Error for a duplicate create.
func NewAlreadyExists(op string, key any) *Error {
	return &Error{Op: op, Key: fmt.Sprint(key), Code: CodeAlreadyExists}
}

// NewInvalidTransition creates an Error for an illegal state change.
func NewInvalidTransition(op string, key any, format string, args ...any) *Error {
	return &Error{
		Op:      op,
		Key:     fmt.Sprint(key),
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf(format, args...),
	}
}

// IsNotFound returns true if err (or anything it wraps) is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists returns true if err (or anything it wraps) is a duplicate-create error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsInvalidTransition returns true if err (or anything it wraps) is an
// invalid-transition error.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

// CodeOf returns the Code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}
