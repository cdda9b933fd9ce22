// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrEmptyContent is returned when required content is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidCardContent is returned when a card does not satisfy the card invariants.
	ErrInvalidCardContent = errors.New("invalid card content")

	// ErrUnauthorized is returned when an operation is not permitted.
	ErrUnauthorized = errors.New("unauthorized operation")
)

// ErrorKind classifies every failure the deck pipeline can surface to a caller.
// Components attach a kind to their errors so the boundary can map it to a
// status without inspecting messages.
type ErrorKind string

// Request preconditions.
const (
	KindInvalidRequest ErrorKind = "invalid_request"
)

// Extraction failures.
const (
	KindUnsupportedSourceKind  ErrorKind = "unsupported_source_kind"
	KindEmptyInput             ErrorKind = "empty_input"
	KindEncryptedDocument      ErrorKind = "encrypted_document"
	KindMalformedDocument      ErrorKind = "malformed_document"
	KindFetchFailed            ErrorKind = "fetch_failed"
	KindUnsupportedContentType ErrorKind = "unsupported_content_type"
	KindNoReadableText         ErrorKind = "no_readable_text"
)

// Generation failures.
const (
	KindEmptyResponse     ErrorKind = "empty_response"
	KindSafetyBlocked     ErrorKind = "safety_blocked"
	KindRecitationBlocked ErrorKind = "recitation_blocked"
	KindTransient         ErrorKind = "transient"
)

// Validation failures.
const (
	KindMalformedJSON   ErrorKind = "malformed_json"
	KindUnexpectedShape ErrorKind = "unexpected_shape"
	KindNoUsableCards   ErrorKind = "no_usable_cards"
)

// Metering failures.
const (
	KindInsufficientBalance ErrorKind = "insufficient_balance"
	KindProfileNotFound     ErrorKind = "profile_not_found"
	KindProfileLookupFailed ErrorKind = "profile_lookup_failed"
)

// Failures outside the taxonomy.
const (
	KindPersistenceFailed ErrorKind = "persistence_failed"
	KindInternal          ErrorKind = "internal"
)

// Error categories group kinds by the component that produces them.
const (
	CategoryRequest    = "request"
	CategoryExtraction = "extraction"
	CategoryGeneration = "generation"
	CategoryValidation = "validation"
	CategoryMetering   = "metering"
	CategoryInternal   = "internal"
)

// Category returns the component family a kind belongs to.
func (k ErrorKind) Category() string {
	switch k {
	case KindInvalidRequest:
		return CategoryRequest
	case KindUnsupportedSourceKind, KindEmptyInput, KindEncryptedDocument,
		KindMalformedDocument, KindFetchFailed, KindUnsupportedContentType,
		KindNoReadableText:
		return CategoryExtraction
	case KindEmptyResponse, KindSafetyBlocked, KindRecitationBlocked, KindTransient:
		return CategoryGeneration
	case KindMalformedJSON, KindUnexpectedShape, KindNoUsableCards:
		return CategoryValidation
	case KindInsufficientBalance, KindProfileNotFound, KindProfileLookupFailed:
		return CategoryMetering
	default:
		return CategoryInternal
	}
}

// Kinded is implemented by errors that carry an ErrorKind.
type Kinded interface {
	Kind() ErrorKind
}

// KindOf walks the error chain and returns the first attached kind.
// The boolean is false when no error in the chain carries a kind.
func KindOf(err error) (ErrorKind, bool) {
	if err == nil {
		return "", false
	}
	var k Kinded
	if errors.As(err, &k) {
		return k.Kind(), true
	}
	return "", false
}
