package engine

import (
	"errors"
	"fmt"
)

// Failure classes attached to execution errors. Handlers classify at the
// provider boundary; the engine only reads the class to pick a retry
// policy.
const (
	ClassTransient           = "transient"
	ClassPermanentValidation = "permanent-validation"
	ClassPermanentPermission = "permanent-permission"
	ClassPermanentNotFound   = "permanent-notfound"
	ClassOutcomeUnknown      = "outcome-unknown"
	ClassInternal            = "internal"
)

// Error is a classified execution failure.
type Error struct {
	Class   string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Class, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError builds a classified error wrapping cause (which may be nil).
func NewError(class, message string, cause error) *Error {
	return &Error{Class: class, Message: message, Cause: cause}
}

// Classify returns the classified form of err. Errors no handler
// classified are internal faults and are never retried.
func Classify(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Class: ClassInternal, Message: err.Error(), Cause: err}
}

// Retryable reports whether the class allows another attempt under the
// normal backoff policy. Outcome-unknown is deliberately excluded; the
// engine retries it only when the call carries an idempotency token.
func Retryable(err error) bool {
	return Classify(err).Class == ClassTransient
}
