// Package generation defines the boundary to the language model used for
// deck generation and turns its raw output into validated flashcards.
//
// Generator is the interface implemented by model clients (see package
// gemini). Parse and StripFences validate and repair model output. Model
// failures are reported as *GenerationError and output problems as
// *ValidationError, each carrying an error kind from package domain.
package generation
