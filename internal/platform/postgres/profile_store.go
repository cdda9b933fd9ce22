package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/domain"
	"github.com/phrazzld/scry-decks/internal/platform/logger"
	"github.com/phrazzld/scry-decks/internal/store"
)

// DB is a connection pool that can also start transactions. *sql.DB satisfies it.
type DB interface {
	store.DBTX
	store.TxBeginner
}

const (
	getProfileQuery = `
		SELECT id, token_count, subscription_status, created_at, updated_at
		FROM user_profiles
		WHERE id = $1`

	createProfileQuery = `
		INSERT INTO user_profiles (id, token_count, subscription_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`

	// The guard in the WHERE clause makes the debit atomic with respect to
	// concurrent debits of the same profile.
	debitQuery = `
		UPDATE user_profiles
		SET token_count = token_count - $2, updated_at = $3
		WHERE id = $1 AND token_count >= $2
		RETURNING token_count`

	profileExistsQuery = `SELECT EXISTS (SELECT 1 FROM user_profiles WHERE id = $1)`

	insertTransactionQuery = `
		INSERT INTO token_transactions (id, user_id, amount, balance_after, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	// Anomalies are keyed by the reconciliation task ID, so a retried insert is a no-op.
	insertAnomalyQuery = `
		INSERT INTO usage_anomalies (id, user_id, cost, reason, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`
)

// PostgresProfileStore implements store.ProfileStore.
type PostgresProfileStore struct {
	db     DB
	logger *slog.Logger
	now    func() time.Time
}

var _ store.ProfileStore = (*PostgresProfileStore)(nil)

// NewPostgresProfileStore creates a profile store on db.
// If logger is nil, slog.Default() is used.
func NewPostgresProfileStore(db DB, logger *slog.Logger) *PostgresProfileStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresProfileStore{
		db:     db,
		logger: logger.With("component", "profile_store"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// GetProfile implements store.ProfileStore.GetProfile.
func (s *PostgresProfileStore) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	var (
		p      domain.Profile
		status string
	)
	err := s.db.QueryRowContext(ctx, getProfileQuery, userID).Scan(
		&p.UserID,
		&p.TokenCount,
		&status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrProfileNotFound
	}
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).ErrorContext(ctx, "failed to load profile",
			"user_id", userID,
			"error", err)
		return nil, store.NewStoreError("profile", "get", "query failed", MapError(err))
	}
	p.SubscriptionStatus = domain.SubscriptionStatus(status)
	return &p, nil
}

// CreateProfile implements store.ProfileStore.CreateProfile.
func (s *PostgresProfileStore) CreateProfile(ctx context.Context, profile *domain.Profile) error {
	if profile == nil || profile.UserID == uuid.Nil {
		return fmt.Errorf("%w: profile requires a user ID", store.ErrInvalidEntity)
	}
	if profile.TokenCount < 0 {
		return fmt.Errorf("%w: token count cannot be negative", store.ErrInvalidEntity)
	}
	if profile.SubscriptionStatus == "" {
		profile.SubscriptionStatus = domain.SubscriptionInactive
	}
	now := s.now()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, createProfileQuery,
		profile.UserID,
		profile.TokenCount,
		string(profile.SubscriptionStatus),
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: profile for user %s", store.ErrDuplicate, profile.UserID)
		}
		return store.NewStoreError("profile", "create", "insert failed", MapError(err))
	}
	return nil
}

// DebitTokens implements store.ProfileStore.DebitTokens.
func (s *PostgresProfileStore) DebitTokens(ctx context.Context, debit domain.Debit) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	if debit.Amount <= 0 {
		return 0, fmt.Errorf("%w: debit amount must be positive", store.ErrInvalidEntity)
	}

	var balance int
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		now := s.now()
		err := tx.QueryRowContext(ctx, debitQuery, debit.UserID, debit.Amount, now).Scan(&balance)
		if errors.Is(err, sql.ErrNoRows) {
			return s.explainFailedDebit(ctx, tx, debit.UserID)
		}
		if err != nil {
			return MapError(err)
		}

		_, err = tx.ExecContext(ctx, insertTransactionQuery,
			uuid.New(),
			debit.UserID,
			-debit.Amount,
			balance,
			debit.Reason,
			now,
		)
		return MapError(err)
	})
	if err != nil {
		if errors.Is(err, store.ErrInsufficientBalance) || errors.Is(err, store.ErrProfileNotFound) {
			return 0, err
		}
		log.ErrorContext(ctx, "token debit failed",
			"user_id", debit.UserID,
			"amount", debit.Amount,
			"error", err)
		return 0, store.NewStoreError("profile", "debit", "transaction failed", err)
	}

	log.DebugContext(ctx, "tokens debited",
		"user_id", debit.UserID,
		"amount", debit.Amount,
		"balance_after", balance)
	return balance, nil
}

// explainFailedDebit tells a missing profile apart from a short balance
// after the guarded update matched no row.
func (s *PostgresProfileStore) explainFailedDebit(ctx context.Context, tx *sql.Tx, userID uuid.UUID) error {
	var exists bool
	if err := tx.QueryRowContext(ctx, profileExistsQuery, userID).Scan(&exists); err != nil {
		return MapError(err)
	}
	if !exists {
		return store.ErrProfileNotFound
	}
	return store.ErrInsufficientBalance
}

// FlagReconciliation implements store.ProfileStore.FlagReconciliation.
func (s *PostgresProfileStore) FlagReconciliation(ctx context.Context, anomaly *domain.UsageAnomaly) error {
	if anomaly == nil || anomaly.UserID == uuid.Nil {
		return fmt.Errorf("%w: anomaly requires a user ID", store.ErrInvalidEntity)
	}
	if anomaly.ID == uuid.Nil {
		anomaly.ID = uuid.New()
	}
	if anomaly.CreatedAt.IsZero() {
		anomaly.CreatedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, insertAnomalyQuery,
		anomaly.ID,
		anomaly.UserID,
		anomaly.Cost,
		anomaly.Reason,
		anomaly.Detail,
		anomaly.CreatedAt,
	)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).ErrorContext(ctx, "failed to record usage anomaly",
			"anomaly_id", anomaly.ID,
			"user_id", anomaly.UserID,
			"error", err)
		return store.NewStoreError("usage_anomaly", "create", "insert failed", MapError(err))
	}
	return nil
}
