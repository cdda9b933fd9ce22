package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/domain"
)

// GenerateDeckRequest is the JSON payload for POST /api/generate-deck.
// File uploads use multipart/form-data with the same field names and the
// document in a "file" part.
type GenerateDeckRequest struct {
	SourceKind    string                   `json:"sourceKind"`
	SourceContent string                   `json:"sourceContent"`
	DeckTitle     string                   `json:"deckTitle,omitempty"`
	Options       domain.GenerationOptions `json:"options"`
}

// ToDomain converts the payload into a pipeline request.
func (r GenerateDeckRequest) ToDomain() domain.GenerationRequest {
	return domain.GenerationRequest{
		SourceKind:    domain.SourceKind(r.SourceKind),
		SourceContent: r.SourceContent,
		DeckTitle:     r.DeckTitle,
		Options:       r.Options,
	}
}

// GeneratedDeckResponse is the envelope returned for a generated deck.
// ID is set only when the deck was saved.
type GeneratedDeckResponse struct {
	ID        *uuid.UUID             `json:"id,omitempty"`
	DeckTitle string                 `json:"deck_title"`
	CreatedAt time.Time              `json:"created_at"`
	CardCount int                    `json:"card_count"`
	Cards     []domain.GeneratedCard `json:"cards"`
}

func newGeneratedDeckResponse(d *domain.GeneratedDeck) GeneratedDeckResponse {
	return GeneratedDeckResponse{
		DeckTitle: d.Title,
		CreatedAt: d.CreatedAt,
		CardCount: d.CardCount(),
		Cards:     d.Cards,
	}
}

func newSavedDeckResponse(d *domain.Deck) GeneratedDeckResponse {
	id := d.ID
	return GeneratedDeckResponse{
		ID:        &id,
		DeckTitle: d.Title,
		CreatedAt: d.CreatedAt,
		CardCount: len(d.Cards),
		Cards:     d.Cards,
	}
}

// CardRequest is a single card in a client-supplied deck.
type CardRequest struct {
	Front          string          `json:"front"           validate:"required,max=2000"`
	Back           domain.CardBack `json:"back"`
	SourcePage     *int            `json:"source_page,omitempty" validate:"omitempty,gte=1"`
	ContextSnippet string          `json:"context_snippet,omitempty" validate:"max=2000"`
}

// CreateDeckRequest defines the payload for POST /api/decks.
type CreateDeckRequest struct {
	Title       string        `json:"title"       validate:"required,max=200"`
	Description string        `json:"description" validate:"max=2000"`
	Tags        []string      `json:"tags"        validate:"max=20,dive,required,max=50"`
	IsPublic    bool          `json:"is_public"`
	Cards       []CardRequest `json:"cards"       validate:"required,min=1,max=200,dive"`
}

func (r CreateDeckRequest) cards() []domain.GeneratedCard {
	out := make([]domain.GeneratedCard, len(r.Cards))
	for i, c := range r.Cards {
		out[i] = domain.GeneratedCard{
			Front:          c.Front,
			Back:           c.Back,
			SourcePage:     c.SourcePage,
			ContextSnippet: c.ContextSnippet,
		}
	}
	return out
}

// DeckResponse is a saved deck as returned by the deck routes.
type DeckResponse struct {
	ID          uuid.UUID              `json:"id"`
	Title       string                 `json:"title"`
	Description string                 `json:"description,omitempty"`
	Tags        []string               `json:"tags"`
	IsPublic    bool                   `json:"is_public"`
	CardCount   int                    `json:"card_count"`
	Cards       []domain.GeneratedCard `json:"cards,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// newDeckResponse converts a deck. Listings omit the cards.
func newDeckResponse(d *domain.Deck, withCards bool) DeckResponse {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	resp := DeckResponse{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Tags:        tags,
		IsPublic:    d.IsPublic,
		CardCount:   len(d.Cards),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	if withCards {
		resp.Cards = d.Cards
	}
	return resp
}

// ProfileResponse defines the response for GET /api/profile.
type ProfileResponse struct {
	TokenCount         int    `json:"token_count"`
	SubscriptionStatus string `json:"subscription_status"`
}
