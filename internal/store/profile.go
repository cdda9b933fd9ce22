package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/domain"
)

// ProfileStore defines the operations on the per-user usage ledger.
type ProfileStore interface {
	// GetProfile retrieves the profile for userID.
	// Returns ErrProfileNotFound if no profile exists.
	GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)

	// CreateProfile inserts a profile with its opening balance.
	// Returns ErrDuplicate if the user already has one.
	CreateProfile(ctx context.Context, profile *domain.Profile) error

	// DebitTokens subtracts debit.Amount from the balance only if the balance
	// covers it, and records the charge in the transaction ledger in the same
	// transaction. It returns the balance after the debit.
	// Returns ErrInsufficientBalance when the guard fails and
	// ErrProfileNotFound when the profile is missing.
	DebitTokens(ctx context.Context, debit domain.Debit) (int, error)

	// FlagReconciliation records a usage anomaly for later review.
	FlagReconciliation(ctx context.Context, anomaly *domain.UsageAnomaly) error
}
