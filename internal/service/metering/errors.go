package metering

import (
	"errors"
	"fmt"

	"github.com/phrazzld/scry-decks/internal/domain"
)

// ErrNilDeck is returned when a generation function reports success without a deck.
var ErrNilDeck = errors.New("generation returned no deck")

// MeteringError reports a request rejected by the usage ledger.
// Balance and Required are set for KindInsufficientBalance.
type MeteringError struct {
	kind     domain.ErrorKind
	Balance  int
	Required int
	Err      error
}

// Kind implements domain.Kinded.
func (e *MeteringError) Kind() domain.ErrorKind { return e.kind }

func (e *MeteringError) Error() string {
	switch e.kind {
	case domain.KindInsufficientBalance:
		return fmt.Sprintf("insufficient token balance: have %d, need %d", e.Balance, e.Required)
	case domain.KindProfileNotFound:
		return "user profile not found"
	}
	if e.Err != nil {
		return fmt.Sprintf("profile lookup failed: %v", e.Err)
	}
	return "profile lookup failed"
}

// Unwrap returns the underlying store error, if any.
func (e *MeteringError) Unwrap() error { return e.Err }
