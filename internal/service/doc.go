// Package service groups the application use cases that sit between the
// HTTP layer and the infrastructure adapters.
//
// Subpackages:
//
//   - deckgen: the generation pipeline (extract, prompt, generate, validate)
//     run under metering, plus saving the result as a deck
//   - metering: the usage gate that checks a balance before generation and
//     debits it only after success
//   - auth: validation of the bearer tokens presented to the API
//
// Services receive their dependencies through constructors and depend on the
// store interfaces, never on a concrete database.
package service
