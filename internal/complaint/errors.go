package complaint

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error so callers can map it to a response.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuthorization
	KindStateViolation
	KindConflict
	KindNotFound
	KindInfrastructure
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindStateViolation:
		return "state_violation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindInfrastructure:
		return "infrastructure"
	default:
		return "unknown"
	}
}

// Error is returned by every Service operation that fails. Field names the
// offending input or rule (e.g. "images", "status", "locked").
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or 0 if err is not a domain error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsKind reports whether err is a domain error of kind k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

func validationError(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

func authorizationError(field, message string) *Error {
	return &Error{Kind: KindAuthorization, Field: field, Message: message}
}

func conflictError(field, message string, err error) *Error {
	return &Error{Kind: KindConflict, Field: field, Message: message, Err: err}
}

func notFoundError(field, message string) *Error {
	return &Error{Kind: KindNotFound, Field: field, Message: message}
}

func infrastructureError(message string, err error) *Error {
	return &Error{Kind: KindInfrastructure, Message: message, Err: err}
}
