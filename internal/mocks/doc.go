// Package mocks provides shared test doubles for the store, generation,
// events and auth interfaces.
//
// Store mocks are small in-memory implementations that follow the same
// rules as the Postgres stores (owner-scoped decks, conditional debits), so
// service and API tests exercise realistic behavior. Every mock also exposes
// Fn fields to override a single method:
//
//	profiles := mocks.NewMockProfileStore(domain.Profile{UserID: id, TokenCount: 10})
//	profiles.DebitTokensFn = func(ctx context.Context, d domain.Debit) (int, error) {
//	    return 0, errors.New("database unavailable")
//	}
package mocks
