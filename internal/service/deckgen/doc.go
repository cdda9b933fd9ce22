// Package deckgen is the entry point of deck generation.
//
// Pipeline.Run validates a GenerationRequest and, inside the metering gate,
// runs extraction, prompt construction, the model call and response
// validation in sequence. Every failure comes back as a *PipelineError whose
// Kind is one of the domain error kinds; the HTTP layer maps that kind to a
// status once, at the boundary.
//
// GenerateAndStore additionally saves the deck for its owner. The charge is
// tied to generation, not to storage, so a save failure after a successful
// run still leaves the debit in place.
package deckgen
