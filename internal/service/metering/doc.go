// Package metering charges users for deck generation.
//
// Gate.WithMetering wraps a generation function with the usage ledger rules:
// active subscribers are never charged, everyone else must hold at least the
// generation cost before any work starts, and the balance is debited only
// after a deck is in hand. A debit that fails after a deck was produced does
// not fail the request; it is logged as critical and published as a usage
// reconciliation event.
//
// Requests from the same user are serialized inside the process so two
// concurrent generations cannot both pass the balance check against the
// last tokens. The store's conditional debit remains the guard across
// processes.
package metering
