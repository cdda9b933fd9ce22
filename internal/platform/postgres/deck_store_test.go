package postgres_test

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/domain"
	"github.com/phrazzld/scry-decks/internal/platform/logger"
	"github.com/phrazzld/scry-decks/internal/platform/postgres"
	"github.com/phrazzld/scry-decks/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pgxArgs passes string slices through untouched, as the pgx stdlib driver does.
type pgxArgs struct{}

func (pgxArgs) ConvertValue(v any) (driver.Value, error) {
	if tags, ok := v.([]string); ok {
		return tags, nil
	}
	return driver.DefaultParameterConverter.ConvertValue(v)
}

// cardsJSON matches a jsonb argument holding n cards.
type cardsJSON struct{ n int }

func (m cardsJSON) Match(v driver.Value) bool {
	raw, ok := v.([]byte)
	if !ok {
		return false
	}
	var cards []domain.GeneratedCard
	return json.Unmarshal(raw, &cards) == nil && len(cards) == m.n
}

var deckColumns = []string{
	"id", "user_id", "title", "description", "tags", "is_public", "cards", "created_at", "updated_at",
}

func newDeckStore(t *testing.T) (*postgres.PostgresDeckStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.ValueConverterOption(pgxArgs{}))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	log, _ := logger.NewCaptureLogger()
	return postgres.NewPostgresDeckStore(db, log), mock
}

func testDeck(t *testing.T, userID uuid.UUID) *domain.Deck {
	t.Helper()
	deck, err := domain.NewDeck(userID, "Cell Biology", "chapter 3", []string{"biology", "cells"}, false,
		[]domain.GeneratedCard{
			{Front: "What is the powerhouse of the cell?", Back: domain.TextBack("Mitochondria")},
			{Front: "The {{c1::nucleus}} holds {{c2::DNA}}", Back: domain.ListBack("nucleus", "DNA")},
		})
	require.NoError(t, err)
	return deck
}

func TestPostgresDeckStore_CreateDeck(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	t.Run("inserts cards as json and tags as an array", func(t *testing.T) {
		t.Parallel()
		s, mock := newDeckStore(t)
		deck := testDeck(t, userID)
		mock.ExpectExec("INSERT INTO decks").
			WithArgs(deck.ID, userID, "Cell Biology", "chapter 3", []string{"biology", "cells"}, false,
				cardsJSON{n: 2}, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.CreateDeck(context.Background(), deck))
	})

	t.Run("invalid deck", func(t *testing.T) {
		t.Parallel()
		s, _ := newDeckStore(t)
		deck := testDeck(t, userID)
		deck.Cards = nil

		err := s.CreateDeck(context.Background(), deck)
		assert.ErrorIs(t, err, store.ErrInvalidEntity)
		assert.ErrorIs(t, s.CreateDeck(context.Background(), nil), store.ErrInvalidEntity)
	})

	t.Run("duplicate id", func(t *testing.T) {
		t.Parallel()
		s, mock := newDeckStore(t)
		mock.ExpectExec("INSERT INTO decks").WillReturnError(pgError("23505", "decks_pkey"))

		err := s.CreateDeck(context.Background(), testDeck(t, userID))
		assert.ErrorIs(t, err, store.ErrDuplicate)
	})
}

func TestPostgresDeckStore_GetDeck(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	deckID := uuid.New()
	created := time.Date(2025, 4, 2, 9, 30, 0, 0, time.UTC)
	cards := []byte(`[{"front":"Q1","back":"A1"},{"front":"{{c1::x}} and {{c2::y}}","back":["x","y"]}]`)

	t.Run("found", func(t *testing.T) {
		t.Parallel()
		s, mock := newDeckStore(t)
		mock.ExpectQuery("FROM decks").
			WithArgs(deckID, userID).
			WillReturnRows(sqlmock.NewRows(deckColumns).AddRow(
				deckID.String(), userID.String(), "Algebra", "", "{math,\"linear algebra\"}", true,
				cards, created, created))

		deck, err := s.GetDeck(context.Background(), userID, deckID)
		require.NoError(t, err)
		assert.Equal(t, deckID, deck.ID)
		assert.Equal(t, userID, deck.UserID)
		assert.Equal(t, "Algebra", deck.Title)
		assert.Equal(t, []string{"math", "linear algebra"}, deck.Tags)
		assert.True(t, deck.IsPublic)
		require.Len(t, deck.Cards, 2)
		assert.Equal(t, "A1", deck.Cards[0].Back.Text())
		assert.Equal(t, []string{"x", "y"}, deck.Cards[1].Back.Parts())
	})

	t.Run("empty tags", func(t *testing.T) {
		t.Parallel()
		s, mock := newDeckStore(t)
		mock.ExpectQuery("FROM decks").
			WillReturnRows(sqlmock.NewRows(deckColumns).AddRow(
				deckID.String(), userID.String(), "Algebra", "", "{}", false, cards, created, created))

		deck, err := s.GetDeck(context.Background(), userID, deckID)
		require.NoError(t, err)
		assert.NotNil(t, deck.Tags)
		assert.Empty(t, deck.Tags)
	})

	t.Run("missing or not owned", func(t *testing.T) {
		t.Parallel()
		s, mock := newDeckStore(t)
		mock.ExpectQuery("FROM decks").
			WithArgs(deckID, userID).
			WillReturnRows(sqlmock.NewRows(deckColumns))

		_, err := s.GetDeck(context.Background(), userID, deckID)
		assert.ErrorIs(t, err, store.ErrDeckNotFound)
	})

	t.Run("corrupt cards", func(t *testing.T) {
		t.Parallel()
		s, mock := newDeckStore(t)
		mock.ExpectQuery("FROM decks").
			WillReturnRows(sqlmock.NewRows(deckColumns).AddRow(
				deckID.String(), userID.String(), "Algebra", "", "{}", false, []byte(`{"not":"a list"}`),
				created, created))

		_, err := s.GetDeck(context.Background(), userID, deckID)
		require.Error(t, err)
		assert.False(t, errors.Is(err, store.ErrNotFound))
	})
}

func TestPostgresDeckStore_ListDecks(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	newer := time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)
	older := newer.Add(-24 * time.Hour)
	cards := []byte(`[{"front":"Q","back":"A"}]`)

	t.Run("returns rows in query order", func(t *testing.T) {
		t.Parallel()
		s, mock := newDeckStore(t)
		first, second := uuid.New(), uuid.New()
		mock.ExpectQuery("ORDER BY created_at DESC").
			WithArgs(userID).
			WillReturnRows(sqlmock.NewRows(deckColumns).
				AddRow(first.String(), userID.String(), "Newer", "", "{}", false, cards, newer, newer).
				AddRow(second.String(), userID.String(), "Older", "", "{a}", false, cards, older, older))

		decks, err := s.ListDecks(context.Background(), userID)
		require.NoError(t, err)
		require.Len(t, decks, 2)
		assert.Equal(t, first, decks[0].ID)
		assert.Equal(t, second, decks[1].ID)
		assert.Equal(t, []string{"a"}, decks[1].Tags)
	})

	t.Run("no decks is an empty list", func(t *testing.T) {
		t.Parallel()
		s, mock := newDeckStore(t)
		mock.ExpectQuery("FROM decks").WillReturnRows(sqlmock.NewRows(deckColumns))

		decks, err := s.ListDecks(context.Background(), userID)
		require.NoError(t, err)
		assert.NotNil(t, decks)
		assert.Empty(t, decks)
	})

	t.Run("query failure", func(t *testing.T) {
		t.Parallel()
		s, mock := newDeckStore(t)
		mock.ExpectQuery("FROM decks").WillReturnError(errors.New("timeout"))

		_, err := s.ListDecks(context.Background(), userID)
		assert.Error(t, err)
	})

	t.Run("row error", func(t *testing.T) {
		t.Parallel()
		s, mock := newDeckStore(t)
		mock.ExpectQuery("FROM decks").WillReturnRows(sqlmock.NewRows(deckColumns).
			AddRow(uuid.NewString(), userID.String(), "A", "", "{}", false, cards, newer, newer).
			RowError(0, errors.New("connection lost")))

		_, err := s.ListDecks(context.Background(), userID)
		assert.Error(t, err)
	})
}

func TestPostgresDeckStore_DeleteDeck(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	deckID := uuid.New()

	tests := []struct {
		name    string
		expect  func(mock sqlmock.Sqlmock)
		wantErr error
		anyErr  bool
	}{
		{
			name: "deleted",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("DELETE FROM decks").
					WithArgs(deckID, userID).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "missing or not owned",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("DELETE FROM decks").WillReturnResult(sqlmock.NewResult(0, 0))
			},
			wantErr: store.ErrDeckNotFound,
		},
		{
			name: "exec failure",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("DELETE FROM decks").WillReturnError(errors.New("lock timeout"))
			},
			anyErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s, mock := newDeckStore(t)
			tc.expect(mock)

			err := s.DeleteDeck(context.Background(), userID, deckID)
			switch {
			case tc.wantErr != nil:
				assert.ErrorIs(t, err, tc.wantErr)
			case tc.anyErr:
				assert.Error(t, err)
			default:
				assert.NoError(t, err)
			}
		})
	}
}
