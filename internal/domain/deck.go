package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Deck-specific validation errors
var (
	// ErrDeckIDEmpty is returned when a deck ID is empty or nil.
	ErrDeckIDEmpty = errors.New("deck ID cannot be empty")

	// ErrDeckUserIDEmpty is returned when a deck's user ID is empty or nil.
	ErrDeckUserIDEmpty = errors.New("deck user ID cannot be empty")

	// ErrDeckTitleEmpty is returned when a deck's title is empty.
	ErrDeckTitleEmpty = errors.New("deck title cannot be empty")

	// ErrDeckTitleTooLong is returned when a deck's title exceeds MaxDeckTitleRunes.
	ErrDeckTitleTooLong = errors.New("deck title is too long")

	// ErrDeckNoCards is returned when a deck has no cards.
	ErrDeckNoCards = errors.New("deck must contain at least one card")
)

// MaxDeckTitleRunes bounds stored deck titles.
const MaxDeckTitleRunes = 200

// Deck is a stored set of cards owned by a user.
type Deck struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Tags        []string        `json:"tags"`
	IsPublic    bool            `json:"is_public"`
	Cards       []GeneratedCard `json:"cards"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NewDeck creates a new Deck for the given user with a fresh ID and timestamps.
// Returns an error if validation fails.
func NewDeck(userID uuid.UUID, title, description string, tags []string, isPublic bool, cards []GeneratedCard) (*Deck, error) {
	now := time.Now().UTC()
	if tags == nil {
		tags = []string{}
	}
	deck := &Deck{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		Tags:        tags,
		IsPublic:    isPublic,
		Cards:       cards,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := deck.Validate(); err != nil {
		return nil, err
	}
	return deck, nil
}

// DeckFromGenerated converts a generated deck into a storable one.
func DeckFromGenerated(userID uuid.UUID, generated *GeneratedDeck) (*Deck, error) {
	return NewDeck(userID, generated.Title, "", nil, false, generated.Cards)
}

// Validate checks if the Deck has valid data.
// Stored cards may carry list backs regardless of how they were generated.
func (d *Deck) Validate() error {
	if d.ID == uuid.Nil {
		return ErrDeckIDEmpty
	}
	if d.UserID == uuid.Nil {
		return ErrDeckUserIDEmpty
	}
	if d.Title == "" {
		return ErrDeckTitleEmpty
	}
	if utf8.RuneCountInString(d.Title) > MaxDeckTitleRunes {
		return ErrDeckTitleTooLong
	}
	if len(d.Cards) == 0 {
		return ErrDeckNoCards
	}
	for i, c := range d.Cards {
		if err := c.Validate(ClozeMulti); err != nil {
			return fmt.Errorf("card %d: %w", i, err)
		}
	}
	return nil
}
