package generation

import (
	"context"
)

// Generator defines the interface for sending a prompt to a language model.
// This interface is the boundary between the deck pipeline and the external
// model service, following the hexagonal architecture pattern.
type Generator interface {
	// Generate sends prompt to the model and returns the text of the first
	// candidate, uninterpreted.
	//
	// Failures are *GenerationError values; the only kind worth retrying is
	// domain.KindTransient, and implementations perform any retries
	// themselves before returning. Cancellation of ctx is returned as is.
	Generate(ctx context.Context, prompt string) (string, error)
}
