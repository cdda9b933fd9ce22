package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/phrazzld/scry-decks/internal/domain"
	"github.com/phrazzld/scry-decks/internal/platform/logger"
	"github.com/phrazzld/scry-decks/internal/store"
)

const (
	deckColumns = `id, user_id, title, description, tags, is_public, cards, created_at, updated_at`

	createDeckQuery = `
		INSERT INTO decks (` + deckColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	getDeckQuery = `
		SELECT ` + deckColumns + `
		FROM decks
		WHERE id = $1 AND user_id = $2`

	listDecksQuery = `
		SELECT ` + deckColumns + `
		FROM decks
		WHERE user_id = $1
		ORDER BY created_at DESC, id`

	deleteDeckQuery = `DELETE FROM decks WHERE id = $1 AND user_id = $2`
)

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresDeckStore implements store.DeckStore.
type PostgresDeckStore struct {
	db     store.DBTX
	logger *slog.Logger
}

var _ store.DeckStore = (*PostgresDeckStore)(nil)

// NewPostgresDeckStore creates a deck store on db, which may be a pool or a transaction.
// If logger is nil, slog.Default() is used.
func NewPostgresDeckStore(db store.DBTX, logger *slog.Logger) *PostgresDeckStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresDeckStore{
		db:     db,
		logger: logger.With("component", "deck_store"),
	}
}

// CreateDeck implements store.DeckStore.CreateDeck.
func (s *PostgresDeckStore) CreateDeck(ctx context.Context, deck *domain.Deck) error {
	if deck == nil {
		return fmt.Errorf("%w: deck cannot be nil", store.ErrInvalidEntity)
	}
	if err := deck.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	cards, err := json.Marshal(deck.Cards)
	if err != nil {
		return fmt.Errorf("%w: encoding cards: %v", store.ErrInvalidEntity, err)
	}
	tags := deck.Tags
	if tags == nil {
		tags = []string{}
	}

	_, err = s.db.ExecContext(ctx, createDeckQuery,
		deck.ID,
		deck.UserID,
		deck.Title,
		deck.Description,
		tags,
		deck.IsPublic,
		cards,
		deck.CreatedAt,
		deck.UpdatedAt,
	)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).ErrorContext(ctx, "failed to insert deck",
			"deck_id", deck.ID,
			"user_id", deck.UserID,
			"error", err)
		return store.NewStoreError("deck", "create", "insert failed", MapError(err))
	}
	return nil
}

// GetDeck implements store.DeckStore.GetDeck.
func (s *PostgresDeckStore) GetDeck(ctx context.Context, userID, deckID uuid.UUID) (*domain.Deck, error) {
	deck, err := scanDeck(s.db.QueryRowContext(ctx, getDeckQuery, deckID, userID), pgtype.NewMap())
	if err != nil {
		mapped := MapError(err)
		if errors.Is(mapped, store.ErrNotFound) {
			return nil, store.ErrDeckNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).ErrorContext(ctx, "failed to load deck",
			"deck_id", deckID,
			"user_id", userID,
			"error", err)
		return nil, store.NewStoreError("deck", "get", "query failed", mapped)
	}
	return deck, nil
}

// ListDecks implements store.DeckStore.ListDecks.
func (s *PostgresDeckStore) ListDecks(ctx context.Context, userID uuid.UUID) ([]*domain.Deck, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, listDecksQuery, userID)
	if err != nil {
		log.ErrorContext(ctx, "failed to list decks", "user_id", userID, "error", err)
		return nil, store.NewStoreError("deck", "list", "query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	// pgtype.Map caches scan plans and is not safe for concurrent use.
	types := pgtype.NewMap()
	decks := []*domain.Deck{}
	for rows.Next() {
		deck, err := scanDeck(rows, types)
		if err != nil {
			log.ErrorContext(ctx, "failed to scan deck row", "user_id", userID, "error", err)
			return nil, store.NewStoreError("deck", "list", "scan failed", err)
		}
		decks = append(decks, deck)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("deck", "list", "row iteration failed", MapError(err))
	}
	return decks, nil
}

// DeleteDeck implements store.DeckStore.DeleteDeck.
func (s *PostgresDeckStore) DeleteDeck(ctx context.Context, userID, deckID uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, deleteDeckQuery, deckID, userID)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).ErrorContext(ctx, "failed to delete deck",
			"deck_id", deckID,
			"user_id", userID,
			"error", err)
		return store.NewStoreError("deck", "delete", "delete failed", MapError(err))
	}
	return CheckRowsAffected(result, store.ErrDeckNotFound)
}

func scanDeck(row rowScanner, types *pgtype.Map) (*domain.Deck, error) {
	var (
		deck  domain.Deck
		tags  []string
		cards []byte
	)
	err := row.Scan(
		&deck.ID,
		&deck.UserID,
		&deck.Title,
		&deck.Description,
		types.SQLScanner(&tags),
		&deck.IsPublic,
		&cards,
		&deck.CreatedAt,
		&deck.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(cards, &deck.Cards); err != nil {
		return nil, fmt.Errorf("decoding cards of deck %s: %w", deck.ID, err)
	}
	if tags == nil {
		tags = []string{}
	}
	deck.Tags = tags
	return &deck, nil
}
