package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CardBack is the answer side of a card. It holds either a single string or,
// for multi-blank cloze cards, an ordered list aligned with the blanks on the front.
type CardBack struct {
	text  string
	parts []string
	list  bool
}

// TextBack returns a scalar card back.
func TextBack(s string) CardBack {
	return CardBack{text: s}
}

// ListBack returns a list card back.
func ListBack(parts ...string) CardBack {
	cp := make([]string, len(parts))
	copy(cp, parts)
	return CardBack{parts: cp, list: true}
}

// IsList reports whether the back is an ordered list of answers.
func (b CardBack) IsList() bool { return b.list }

// Text returns the scalar answer; it is empty for list backs.
func (b CardBack) Text() string { return b.text }

// Parts returns a copy of the list answers; it is nil for scalar backs.
func (b CardBack) Parts() []string {
	if !b.list {
		return nil
	}
	cp := make([]string, len(b.parts))
	copy(cp, b.parts)
	return cp
}

// String renders the back for display, joining list answers with "; ".
func (b CardBack) String() string {
	if b.list {
		return strings.Join(b.parts, "; ")
	}
	return b.text
}

// MarshalJSON encodes a scalar back as a JSON string and a list back as an array.
func (b CardBack) MarshalJSON() ([]byte, error) {
	if b.list {
		if b.parts == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(b.parts)
	}
	return json.Marshal(b.text)
}

// UnmarshalJSON accepts a JSON string or an array of strings.
func (b *CardBack) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("%w: empty back", ErrInvalidCardContent)
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*b = TextBack(s)
		return nil
	case '[':
		var parts []string
		if err := json.Unmarshal(trimmed, &parts); err != nil {
			return fmt.Errorf("%w: back array must contain only strings", ErrInvalidCardContent)
		}
		*b = ListBack(parts...)
		return nil
	}
	return fmt.Errorf("%w: back must be a string or an array of strings", ErrInvalidCardContent)
}

// GeneratedCard is one flashcard produced by the model.
type GeneratedCard struct {
	Front          string   `json:"front"`
	Back           CardBack `json:"back"`
	SourcePage     *int     `json:"source_page,omitempty"`
	ContextSnippet string   `json:"context_snippet,omitempty"`
}

// Validate checks the card invariants for the given cloze style: a non-empty
// front, and a non-empty back that is scalar unless the style is ClozeMulti,
// in which case a non-empty list of non-empty strings is also accepted.
func (c GeneratedCard) Validate(style ClozeStyle) error {
	if strings.TrimSpace(c.Front) == "" {
		return fmt.Errorf("%w: front is empty", ErrInvalidCardContent)
	}
	if !c.Back.IsList() {
		if strings.TrimSpace(c.Back.Text()) == "" {
			return fmt.Errorf("%w: back is empty", ErrInvalidCardContent)
		}
		return nil
	}
	if style != ClozeMulti {
		return fmt.Errorf("%w: list back is only valid for %s cloze style", ErrInvalidCardContent, ClozeMulti)
	}
	parts := c.Back.Parts()
	if len(parts) == 0 {
		return fmt.Errorf("%w: back list is empty", ErrInvalidCardContent)
	}
	for i, p := range parts {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%w: back entry %d is empty", ErrInvalidCardContent, i)
		}
	}
	return nil
}

// GeneratedDeck is the terminal artifact of a successful pipeline run.
// CreatedAt records generation time, not persistence time.
type GeneratedDeck struct {
	Title     string          `json:"deck_title"`
	CreatedAt time.Time       `json:"created_at"`
	Cards     []GeneratedCard `json:"cards"`
}

// NewGeneratedDeck assembles a deck, defaulting an empty title and capping
// long ones at MaxDeckTitleRunes.
func NewGeneratedDeck(title string, cards []GeneratedCard, now time.Time) *GeneratedDeck {
	if strings.TrimSpace(title) == "" {
		title = DefaultDeckTitle
	}
	return &GeneratedDeck{
		Title:     truncateRunes(strings.TrimSpace(title), MaxDeckTitleRunes),
		CreatedAt: now.UTC(),
		Cards:     cards,
	}
}

// CardCount returns the number of cards in the deck.
func (d *GeneratedDeck) CardCount() int {
	return len(d.Cards)
}
