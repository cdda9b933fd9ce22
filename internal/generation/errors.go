package generation

import (
	"errors"
	"fmt"

	"github.com/phrazzld/scry-decks/internal/domain"
)

// Common errors returned by the generation package. GenerationError and
// ValidationError match them with errors.Is according to their kind.
var (
	// ErrInvalidResponse is returned when the model response has no usable payload
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when the model blocks the content due to safety or recitation filters
	ErrContentBlocked = errors.New("content blocked by language model filters")

	// ErrTransientFailure is returned for temporary errors that might resolve on retry
	ErrTransientFailure = errors.New("transient error during generation")

	// ErrInvalidConfig is returned when the generator configuration is invalid
	ErrInvalidConfig = errors.New("invalid generator configuration")

	// ErrRequestRejected is returned when the model API refuses the request
	// itself, for example because of bad credentials
	ErrRequestRejected = errors.New("language model rejected the request")

	// ErrUnusableOutput is returned when model output cannot be turned into cards
	ErrUnusableOutput = errors.New("model output could not be turned into cards")
)

// GenerationError reports a failed model call.
type GenerationError struct {
	kind domain.ErrorKind

	// Detail is a human-readable explanation, such as the block reason.
	Detail string

	// Err is the underlying cause, if any.
	Err error
}

// NewGenerationError creates a GenerationError of the given kind.
func NewGenerationError(kind domain.ErrorKind, detail string, err error) *GenerationError {
	return &GenerationError{kind: kind, Detail: detail, Err: err}
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	msg := fmt.Sprintf("generation failed (%s)", e.kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Kind implements domain.Kinded.
func (e *GenerationError) Kind() domain.ErrorKind { return e.kind }

// Unwrap returns the underlying cause.
func (e *GenerationError) Unwrap() error { return e.Err }

// Is matches the package sentinel that corresponds to the error's kind.
func (e *GenerationError) Is(target error) bool {
	switch e.kind {
	case domain.KindSafetyBlocked, domain.KindRecitationBlocked:
		return target == ErrContentBlocked
	case domain.KindEmptyResponse:
		return target == ErrInvalidResponse
	case domain.KindTransient:
		return target == ErrTransientFailure
	case domain.KindInternal:
		return target == ErrRequestRejected
	}
	return false
}

// IsTransient reports whether err is a GenerationError that may succeed on retry.
func IsTransient(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge) && ge.kind == domain.KindTransient
}

// DroppedCard records a model card that failed validation.
type DroppedCard struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// ValidationError reports model output that could not be turned into cards.
type ValidationError struct {
	kind domain.ErrorKind

	// Raw is the model text as received, kept for diagnosis.
	Raw string

	// Dropped lists the rejected cards when the kind is NoUsableCards.
	Dropped []DroppedCard

	// Err is the underlying cause, if any.
	Err error
}

func newValidationError(kind domain.ErrorKind, raw string, err error) *ValidationError {
	return &ValidationError{kind: kind, Raw: raw, Err: err}
}

// Error implements the error interface. Raw is not included.
func (e *ValidationError) Error() string {
	var msg string
	switch e.kind {
	case domain.KindMalformedJSON:
		msg = "model output is not valid JSON"
	case domain.KindUnexpectedShape:
		msg = "model output is not a JSON array"
	case domain.KindNoUsableCards:
		msg = fmt.Sprintf("none of the %d cards in the model output are usable", len(e.Dropped))
	default:
		msg = "model output is invalid"
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Kind implements domain.Kinded.
func (e *ValidationError) Kind() domain.ErrorKind { return e.kind }

// Unwrap returns the underlying cause.
func (e *ValidationError) Unwrap() error { return e.Err }

// Is matches ErrUnusableOutput.
func (e *ValidationError) Is(target error) bool { return target == ErrUnusableOutput }
