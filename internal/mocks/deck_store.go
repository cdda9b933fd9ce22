package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/domain"
	"github.com/phrazzld/scry-decks/internal/store"
)

// MockDeckStore is an in-memory store.DeckStore.
type MockDeckStore struct {
	CreateDeckFn func(ctx context.Context, deck *domain.Deck) error

	mu    sync.Mutex
	decks map[uuid.UUID]*domain.Deck
}

var _ store.DeckStore = (*MockDeckStore)(nil)

// NewMockDeckStore creates an empty deck store.
func NewMockDeckStore() *MockDeckStore {
	return &MockDeckStore{decks: make(map[uuid.UUID]*domain.Deck)}
}

// CreateDeck implements store.DeckStore.
func (m *MockDeckStore) CreateDeck(ctx context.Context, deck *domain.Deck) error {
	if m.CreateDeckFn != nil {
		return m.CreateDeckFn(ctx, deck)
	}
	if err := deck.Validate(); err != nil {
		return store.ErrInvalidEntity
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.decks[deck.ID]; exists {
		return store.ErrDuplicate
	}
	cp := *deck
	m.decks[deck.ID] = &cp
	return nil
}

// GetDeck implements store.DeckStore.
func (m *MockDeckStore) GetDeck(_ context.Context, userID, deckID uuid.UUID) (*domain.Deck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.decks[deckID]
	if !ok || d.UserID != userID {
		return nil, store.ErrDeckNotFound
	}
	cp := *d
	return &cp, nil
}

// ListDecks implements store.DeckStore.
func (m *MockDeckStore) ListDecks(_ context.Context, userID uuid.UUID) ([]*domain.Deck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Deck, 0)
	for _, d := range m.decks {
		if d.UserID == userID {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// DeleteDeck implements store.DeckStore.
func (m *MockDeckStore) DeleteDeck(_ context.Context, userID, deckID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.decks[deckID]
	if !ok || d.UserID != userID {
		return store.ErrDeckNotFound
	}
	delete(m.decks, deckID)
	return nil
}

// Count returns the number of stored decks.
func (m *MockDeckStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.decks)
}
