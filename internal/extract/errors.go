package extract

import (
	"fmt"

	"github.com/phrazzld/scry-decks/internal/domain"
)

// Error is returned by every extraction failure. Kind is one of the
// extraction kinds in package domain; Status carries the upstream HTTP
// status for fetch failures that got a response (zero otherwise).
type Error struct {
	kind   domain.ErrorKind
	Reason string
	Status int
	Err    error
}

func newError(kind domain.ErrorKind, reason string, err error) *Error {
	return &Error{kind: kind, Reason: reason, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("extraction failed (%s): %s", e.kind, e.Reason)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (upstream status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Kind implements domain.Kinded.
func (e *Error) Kind() domain.ErrorKind { return e.kind }

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }
