package apperr

import (
	"errors"
	"fmt"
)

// Kind categorizes an application error for transport mapping.
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindForbidden  Kind = "forbidden"
	KindBadRequest Kind = "bad_request"
)

// Error is a deterministic, non-retryable business error. Every core
// operation either returns a result or exactly one of these kinds;
// store/blob failures pass through untouched as internal errors.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NotFound reports that a resource id did not resolve.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Forbidden reports that the actor lacks permission for this action.
func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// BadRequest reports a well-formed request that violates a business invariant.
func BadRequest(format string, args ...any) *Error {
	return &Error{Kind: KindBadRequest, Message: fmt.Sprintf(format, args...)}
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return isKind(err, KindNotFound) }

// IsForbidden reports whether err is a forbidden error.
func IsForbidden(err error) bool { return isKind(err, KindForbidden) }

// IsBadRequest reports whether err is a bad-request error.
func IsBadRequest(err error) bool { return isKind(err, KindBadRequest) }

func isKind(err error, kind Kind) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}
