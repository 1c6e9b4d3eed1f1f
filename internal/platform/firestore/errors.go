package firestore

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error classifies Firestore failures so callers can branch on not-found,
// conflict, and unavailability without inspecting gRPC codes themselves.
type Error struct {
	Op  string
	Err error

	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *Error) Error() string {
	if e == nil {
		return "firestore: <nil>"
	}
	return fmt.Sprintf("firestore %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NotFound reports a missing document.
func (e *Error) NotFound() bool { return e != nil && e.notFound }

// Conflict reports a write contention or already-exists failure.
func (e *Error) Conflict() bool { return e != nil && e.conflict }

// Unavailable reports a retryable infrastructure failure.
func (e *Error) Unavailable() bool { return e != nil && e.unavailable }

// WrapError converts an SDK error into a classified Error. Context
// cancellations pass through unchanged so callers can match them with
// errors.Is.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	wrapped := &Error{Op: op, Err: err}
	switch status.Code(err) {
	case codes.NotFound:
		wrapped.notFound = true
	case codes.AlreadyExists, codes.Aborted, codes.FailedPrecondition:
		wrapped.conflict = true
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		wrapped.unavailable = true
	}
	return wrapped
}

// IsNotFound reports whether err carries a not-found classification.
func IsNotFound(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.NotFound()
}

// IsUnavailable reports whether err carries an unavailability classification.
func IsUnavailable(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Unavailable()
}
