// Package store defines the persistence contracts used by the deck service:
// the profile ledger read and debited by metering, and the deck store used
// to save generated decks. Implementations live in internal/platform/postgres;
// this package only holds the interfaces, the shared error values and the
// transaction helper so the service layer never imports a database driver.
package store
