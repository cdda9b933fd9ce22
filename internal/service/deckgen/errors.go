package deckgen

import (
	"context"
	"errors"
	"fmt"

	"github.com/phrazzld/scry-decks/internal/domain"
	"github.com/phrazzld/scry-decks/internal/extract"
	"github.com/phrazzld/scry-decks/internal/generation"
	"github.com/phrazzld/scry-decks/internal/service/metering"
)

// Detail keys set on PipelineError.Details.
const (
	DetailRawOutput      = "raw_output"
	DetailDroppedCards   = "dropped_cards"
	DetailBalance        = "balance"
	DetailRequired       = "required"
	DetailUpstreamStatus = "upstream_status"
	DetailField          = "field"
)

// PipelineError is the single failure type returned by Pipeline.
//
// Message is safe to show to end users. Details carries structured
// diagnostics; entries under DetailRawOutput are developer-facing and must
// not be shown verbatim in production.
type PipelineError struct {
	Kind    domain.ErrorKind
	Message string
	Details map[string]any
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the component error.
func (e *PipelineError) Unwrap() error { return e.Err }

// toPipelineError classifies err. Errors without a kind become KindInternal,
// except context errors, which are reported as transient.
func toPipelineError(err error) *PipelineError {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe
	}

	kind, ok := domain.KindOf(err)
	if !ok {
		kind = domain.KindInternal
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			kind = domain.KindTransient
		}
	}

	out := &PipelineError{Kind: kind, Message: messageFor(kind), Err: err}

	var (
		reqErr      *domain.RequestError
		extractErr  *extract.Error
		validation  *generation.ValidationError
		meteringErr *metering.MeteringError
	)
	switch {
	case errors.As(err, &reqErr):
		out.Message = reqErr.Reason
		out.Details = map[string]any{DetailField: reqErr.Field}
	case errors.As(err, &extractErr):
		out.Message = extractErr.Reason
		if extractErr.Status != 0 {
			out.Details = map[string]any{DetailUpstreamStatus: extractErr.Status}
		}
	case errors.As(err, &validation):
		out.Details = map[string]any{}
		if kind == domain.KindMalformedJSON {
			out.Details[DetailRawOutput] = validation.Raw
		}
		if len(validation.Dropped) > 0 {
			out.Details[DetailDroppedCards] = validation.Dropped
		}
	case errors.As(err, &meteringErr):
		out.Message = meteringErr.Error()
		if kind == domain.KindInsufficientBalance {
			out.Details = map[string]any{
				DetailBalance:  meteringErr.Balance,
				DetailRequired: meteringErr.Required,
			}
		} else {
			out.Message = messageFor(kind)
		}
	}
	return out
}

func messageFor(kind domain.ErrorKind) string {
	switch kind {
	case domain.KindInvalidRequest:
		return "The request is invalid."
	case domain.KindUnsupportedSourceKind:
		return "The source kind is not supported."
	case domain.KindEmptyInput:
		return "The source is empty."
	case domain.KindEncryptedDocument:
		return "The document is password protected."
	case domain.KindMalformedDocument:
		return "The document could not be read."
	case domain.KindFetchFailed:
		return "The URL could not be fetched."
	case domain.KindUnsupportedContentType:
		return "The URL does not point to a web page or PDF."
	case domain.KindNoReadableText:
		return "No readable text was found in the source."
	case domain.KindSafetyBlocked:
		return "The source was blocked by the content safety policy."
	case domain.KindRecitationBlocked:
		return "The model declined to reproduce the source material. Try a different source."
	case domain.KindEmptyResponse:
		return "The model returned no content. Try a shorter or different source."
	case domain.KindMalformedJSON, domain.KindUnexpectedShape:
		return "The model produced output that could not be turned into flashcards."
	case domain.KindNoUsableCards:
		return "None of the generated flashcards were usable. Try a different source."
	case domain.KindTransient:
		return "The generation service is temporarily unavailable. Try again later."
	case domain.KindInsufficientBalance:
		return "Insufficient token balance."
	case domain.KindProfileNotFound:
		return "User profile not found."
	case domain.KindProfileLookupFailed:
		return "The user profile could not be loaded."
	case domain.KindPersistenceFailed:
		return "The deck was generated but could not be saved."
	}
	return "An unexpected error occurred."
}
