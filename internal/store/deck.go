package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/domain"
)

// DeckStore defines the operations for saved decks. Every read and delete
// is scoped to the owning user; a deck owned by someone else is reported
// as ErrDeckNotFound.
type DeckStore interface {
	// CreateDeck saves a validated deck.
	// Returns ErrInvalidEntity if the deck fails validation.
	CreateDeck(ctx context.Context, deck *domain.Deck) error

	// GetDeck retrieves one of the user's decks by ID.
	GetDeck(ctx context.Context, userID, deckID uuid.UUID) (*domain.Deck, error)

	// ListDecks returns the user's decks, newest first.
	ListDecks(ctx context.Context, userID uuid.UUID) ([]*domain.Deck, error)

	// DeleteDeck removes one of the user's decks.
	DeleteDeck(ctx context.Context, userID, deckID uuid.UUID) error
}
