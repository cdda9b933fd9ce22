package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/scry-decks/internal/api/shared"
	"github.com/phrazzld/scry-decks/internal/domain"
	"github.com/phrazzld/scry-decks/internal/redact"
	"github.com/phrazzld/scry-decks/internal/service/deckgen"
	"github.com/phrazzld/scry-decks/internal/store"
)

// Error categories reported alongside the kind for groups of related failures.
const (
	CategoryClient            = "client_error"
	CategoryUpstream          = "upstream_error"
	CategoryContentPolicy     = "content_policy"
	CategoryGenerationQuality = "generation_quality"
	CategoryTryAgainLater     = "try_again_later"
	CategoryPayment           = "payment_required"
	CategoryNotFound          = "not_found"
	CategoryInternal          = "internal_error"
)

// StatusFor maps a pipeline error kind to its HTTP status and category.
// Unknown kinds are internal errors.
func StatusFor(kind domain.ErrorKind) (int, string) {
	switch kind {
	case domain.KindInvalidRequest,
		domain.KindUnsupportedSourceKind,
		domain.KindEmptyInput,
		domain.KindEncryptedDocument,
		domain.KindMalformedDocument,
		domain.KindUnsupportedContentType,
		domain.KindNoReadableText:
		return http.StatusBadRequest, CategoryClient
	case domain.KindFetchFailed:
		return http.StatusBadGateway, CategoryUpstream
	case domain.KindSafetyBlocked, domain.KindRecitationBlocked:
		return http.StatusUnprocessableEntity, CategoryContentPolicy
	case domain.KindEmptyResponse,
		domain.KindMalformedJSON,
		domain.KindUnexpectedShape,
		domain.KindNoUsableCards:
		return http.StatusBadGateway, CategoryGenerationQuality
	case domain.KindTransient:
		return http.StatusServiceUnavailable, CategoryTryAgainLater
	case domain.KindInsufficientBalance:
		return http.StatusPaymentRequired, CategoryPayment
	case domain.KindProfileNotFound:
		return http.StatusNotFound, CategoryNotFound
	default:
		return http.StatusInternalServerError, CategoryInternal
	}
}

// MapErrorToStatusCode maps store and domain errors from the deck routes to
// HTTP status codes without leaking internal error types to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case store.IsNotFoundError(err):
		return http.StatusNotFound
	case store.IsDuplicateError(err):
		return http.StatusConflict
	case errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidCardContent):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a user-facing message for err.
func GetSafeErrorMessage(err error) string {
	switch {
	case err == nil:
		return "An unexpected error occurred"
	case errors.Is(err, store.ErrDeckNotFound):
		return "Deck not found"
	case errors.Is(err, store.ErrProfileNotFound):
		return "Profile not found"
	case store.IsDuplicateError(err):
		return "Deck already exists"
	case store.IsNotFoundError(err):
		return "Not found"
	case errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, domain.ErrInvalidCardContent):
		return "Invalid deck data"
	case errors.Is(err, domain.ErrInvalidID):
		return "Invalid ID"
	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError turns validator errors into a short message naming
// the first failing field.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Validation error"
	}
	fe := verrs[0]
	return fmt.Sprintf("Invalid %s: %s", strings.ToLower(fe.Field()), getValidationTagMessage(fe.Tag()))
}

func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	case "dive":
		return "invalid entry"
	default:
		return "validation failed"
	}
}

// pipelineErrorBody builds the response options for a pipeline failure.
// Raw model output is developer-facing, so it is only included when
// exposeDetails is set, and even then secrets are stripped from it.
func pipelineErrorBody(pe *deckgen.PipelineError, exposeDetails bool) (int, []shared.ResponseOption) {
	status, category := StatusFor(pe.Kind)

	details := make(map[string]any, len(pe.Details)+1)
	details["category"] = category
	for k, v := range pe.Details {
		if k == deckgen.DetailRawOutput {
			if !exposeDetails {
				continue
			}
			if s, ok := v.(string); ok {
				v = redact.Secrets(s)
			}
		}
		if s, ok := v.(string); ok && k != deckgen.DetailRawOutput {
			v = redact.String(s)
		}
		details[k] = v
	}

	opts := []shared.ResponseOption{
		shared.WithKind(string(pe.Kind)),
		shared.WithDetails(details),
	}
	if status == http.StatusPaymentRequired {
		opts = append(opts, shared.WithElevatedLogLevel())
	}
	return status, opts
}

// respondWithPipelineError writes the error body for a failed generation.
func respondWithPipelineError(w http.ResponseWriter, r *http.Request, err error, exposeDetails bool) {
	var pe *deckgen.PipelineError
	if !errors.As(err, &pe) {
		pe = &deckgen.PipelineError{
			Kind:    domain.KindInternal,
			Message: "An unexpected error occurred",
			Err:     err,
		}
	}
	status, opts := pipelineErrorBody(pe, exposeDetails)
	shared.RespondWithErrorAndLog(w, r, status, pe.Message, pe, opts...)
}
