package postgres_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/scry-decks/internal/platform/postgres"
	"github.com/phrazzld/scry-decks/internal/store"
	"github.com/stretchr/testify/assert"
)

func pgError(code, constraint string) *pgconn.PgError {
	return &pgconn.PgError{
		Code:           code,
		Message:        "error message",
		TableName:      "user_profiles",
		ColumnName:     "token_count",
		ConstraintName: constraint,
	}
}

func TestMapError(t *testing.T) {
	t.Parallel()

	plain := errors.New("connection reset")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", sql.ErrNoRows, store.ErrNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", sql.ErrNoRows), store.ErrNotFound},
		{"unique violation", pgError("23505", "user_profiles_pkey"), store.ErrDuplicate},
		{"foreign key violation", pgError("23503", "token_transactions_user_id_fkey"), store.ErrInvalidEntity},
		{"check violation", pgError("23514", "decks_title_check"), store.ErrInvalidEntity},
		{"balance check violation", pgError("23514", "user_profiles_token_count_check"), store.ErrInsufficientBalance},
		{"not null violation", pgError("23502", ""), store.ErrInvalidEntity},
		{"unmapped pg error", pgError("40001", ""), nil},
		{"plain error", plain, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := postgres.MapError(tc.err)
			if tc.want == nil {
				assert.Equal(t, tc.err, got)
				return
			}
			assert.ErrorIs(t, got, tc.want)
		})
	}

	assert.NoError(t, postgres.MapError(nil))
}

func TestMapErrorKeepsDriverErrorInMessage(t *testing.T) {
	t.Parallel()

	err := postgres.MapError(pgError("23503", "token_transactions_user_id_fkey"))
	assert.Contains(t, err.Error(), "token_transactions_user_id_fkey")

	var pgErr *pgconn.PgError
	assert.False(t, errors.As(err, &pgErr), "the driver error is formatted, not wrapped")
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	assert.True(t, postgres.IsUniqueViolation(pgError("23505", "")))
	assert.True(t, postgres.IsUniqueViolation(fmt.Errorf("insert: %w", pgError("23505", ""))))
	assert.False(t, postgres.IsUniqueViolation(pgError("23503", "")))
	assert.False(t, postgres.IsUniqueViolation(errors.New("23505")))
	assert.False(t, postgres.IsUniqueViolation(nil))
}

func TestCheckRowsAffected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		result   sql.Result
		notFound error
		wantErr  error
		wantAny  bool
	}{
		{name: "one row", result: sqlmock.NewResult(0, 1)},
		{name: "no rows with sentinel", result: sqlmock.NewResult(0, 0), notFound: store.ErrDeckNotFound, wantErr: store.ErrDeckNotFound},
		{name: "no rows without sentinel", result: sqlmock.NewResult(0, 0), wantErr: store.ErrNotFound},
		{name: "rows affected fails", result: sqlmock.NewErrorResult(errors.New("driver")), wantAny: true},
		{name: "nil result", result: nil, wantAny: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := postgres.CheckRowsAffected(tc.result, tc.notFound)
			switch {
			case tc.wantErr != nil:
				assert.ErrorIs(t, err, tc.wantErr)
			case tc.wantAny:
				assert.Error(t, err)
			default:
				assert.NoError(t, err)
			}
		})
	}
}
