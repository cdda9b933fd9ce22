// Package gemini provides an implementation of the generation.Generator interface
// that uses Google's Gemini API to produce flashcard JSON from a prompt.
//
// This package is an infrastructure adapter in the hexagonal architecture,
// connecting the deck pipeline to Google's external Gemini service without
// exposing the details of the service to the core application.
//
// Key components:
//
// 1. Client:
//   - Implements the generation.Generator interface
//   - Sends prompts with a low temperature, a bounded output length, a JSON
//     response MIME type and medium-and-above safety thresholds
//   - Talks to the API through the ContentGenerator interface so tests can
//     substitute the genai models service
//
// 2. Response Classification:
//   - Classify turns a response envelope into Ok, Empty, SafetyBlocked or
//     RecitationBlocked before any payload is trusted
//
// 3. Error Handling:
//   - Rate limits, server errors, network errors and per-attempt timeouts are
//     transient and retried with exponential backoff (sethvargo/go-retry)
//   - Safety, recitation and empty responses are returned immediately
//   - Cancellation of the caller's context is never retried
package gemini
