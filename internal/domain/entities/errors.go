package entities

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure so the transport layer can pick a status code.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
	KindBadRequest
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindBadRequest:
		return "bad_request"
	default:
		return "internal"
	}
}

// Error is a domain failure with a caller-visible message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Common errors
var (
	ErrUserNotFound       = NewError(KindNotFound, "User not found")
	ErrTodoNotFound       = NewError(KindNotFound, "Todo not found")
	ErrForbidden          = NewError(KindForbidden, "You are not allowed to access this resource")
	ErrUsernameTaken      = NewError(KindConflict, "Username already exists")
	ErrEmailTaken         = NewError(KindConflict, "Email already exists")
	ErrLastAdmin          = NewError(KindConflict, "Cannot downgrade the last admin user")
	ErrInvalidCredentials = NewError(KindUnauthenticated, "Invalid credentials")
	ErrInvalidRole        = NewError(KindBadRequest, "Invalid role")
)

// BadRequest builds a caller-input error with a formatted message.
func BadRequest(format string, args ...interface{}) *Error {
	return NewError(KindBadRequest, fmt.Sprintf(format, args...))
}

// InvalidSortField reports a sort key outside the allow-list.
func InvalidSortField(field string, allowed []string) *Error {
	return BadRequest("Invalid sort field: %s. Allowed fields: %s", field, strings.Join(allowed, ", "))
}

// KindOf returns the kind carried by err; anything unclassified is internal.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// MessageOf returns the caller-visible message of err.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "Internal server error"
}
