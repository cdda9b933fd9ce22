// Package postgres implements the internal/store interfaces on PostgreSQL
// through database/sql and the pgx stdlib driver.
//
// PostgresProfileStore owns the usage ledger: balances in user_profiles,
// charges in token_transactions and unreconciled charges in usage_anomalies.
// A debit is a single conditional UPDATE, so concurrent requests can never
// drive a balance below zero. PostgresDeckStore keeps saved decks with their
// cards as jsonb and their tags as text[].
//
// Database errors are passed through MapError so callers only ever see the
// store package's sentinel errors.
package postgres
