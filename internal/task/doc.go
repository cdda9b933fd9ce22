// Package task runs background work off the request path.
//
// A Runner owns a bounded in-memory queue and a fixed set of workers.
// Submission never blocks: a full queue is reported to the caller, who
// decides whether to run the work inline. Stop closes the queue and lets
// the workers drain whatever was already accepted.
//
// The service uses it for usage reconciliation: when a generated deck is
// delivered but the debit fails, the metering gate emits an event, and
// ReconciliationEventHandler turns it into a ReconciliationTask that writes
// the anomaly to the ledger with retries.
package task
