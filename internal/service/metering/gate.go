package metering

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/config"
	"github.com/phrazzld/scry-decks/internal/domain"
	"github.com/phrazzld/scry-decks/internal/events"
	"github.com/phrazzld/scry-decks/internal/platform/logger"
	"github.com/phrazzld/scry-decks/internal/redact"
	"github.com/phrazzld/scry-decks/internal/store"
)

// DebitReason is recorded in the ledger for generation charges.
const DebitReason = "deck_generation"

// Reconciliation reasons carried on usage anomalies.
const (
	ReasonDebitFailed      = "debit_failed"
	ReasonBalanceExhausted = "balance_exhausted_at_debit"
)

const defaultDebitTimeout = 5 * time.Second

// GenerateFunc produces a deck. It runs only after the balance check passes.
type GenerateFunc func(ctx context.Context) (*domain.GeneratedDeck, error)

// Gate applies usage metering around deck generation.
type Gate struct {
	profiles     store.ProfileStore
	emitter      events.EventEmitter
	debitTimeout time.Duration
	locks        *userLocks
	logger       *slog.Logger
}

// NewGate creates a Gate. emitter may be nil, in which case debit failures
// are only logged.
func NewGate(
	profiles store.ProfileStore,
	emitter events.EventEmitter,
	cfg config.MeteringConfig,
	logger *slog.Logger,
) (*Gate, error) {
	if profiles == nil {
		return nil, errors.New("profile store cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	timeout := cfg.DebitTimeout
	if timeout <= 0 {
		timeout = defaultDebitTimeout
	}
	return &Gate{
		profiles:     profiles,
		emitter:      emitter,
		debitTimeout: timeout,
		locks:        newUserLocks(),
		logger:       logger.With("component", "metering_gate"),
	}, nil
}

// WithMetering runs fn on behalf of userID and charges cost when it succeeds.
//
// Subscribers and zero-cost requests run unmetered. Otherwise the balance
// must cover cost before fn is called; a short balance fails with a
// *MeteringError of KindInsufficientBalance and fn never runs. An error from
// fn is returned unchanged with OutcomeFailed and no charge. The debit runs
// detached from ctx so a client disconnect after the deck exists cannot skip
// the charge.
func (g *Gate) WithMetering(
	ctx context.Context,
	userID uuid.UUID,
	cost int,
	fn GenerateFunc,
) (*domain.GeneratedDeck, Outcome, error) {
	log := logger.FromContextOrDefault(ctx, g.logger).With("user_id", userID)

	profile, err := g.lookup(ctx, userID)
	if err != nil {
		return nil, OutcomeFailed, err
	}

	if profile.IsSubscribed() || cost <= 0 {
		log.DebugContext(ctx, "running unmetered generation",
			"subscription_status", profile.SubscriptionStatus,
			"cost", cost)
		deck, err := run(ctx, fn)
		if err != nil {
			return nil, OutcomeFailed, err
		}
		return deck, OutcomeSucceededUnmetered, nil
	}

	release, err := g.locks.acquire(ctx, userID)
	if err != nil {
		return nil, OutcomeFailed, err
	}
	defer release()

	// Another request from this user may have spent tokens while we waited.
	profile, err = g.lookup(ctx, userID)
	if err != nil {
		return nil, OutcomeFailed, err
	}
	if !profile.CanAfford(cost) {
		log.InfoContext(ctx, "generation rejected for insufficient balance",
			"balance", profile.TokenCount,
			"cost", cost)
		return nil, OutcomeFailed, &MeteringError{
			kind:     domain.KindInsufficientBalance,
			Balance:  profile.TokenCount,
			Required: cost,
		}
	}

	deck, err := run(ctx, fn)
	if err != nil {
		return nil, OutcomeFailed, err
	}

	debitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.debitTimeout)
	defer cancel()

	balance, err := g.profiles.DebitTokens(debitCtx, domain.Debit{
		UserID: userID,
		Amount: cost,
		Reason: DebitReason,
	})
	if err != nil {
		g.flagDebitFailure(debitCtx, log, userID, cost, err)
		return deck, OutcomeSucceededDebitFailed, nil
	}

	log.InfoContext(ctx, "generation charged",
		"cost", cost,
		"balance_after", balance,
		"card_count", deck.CardCount())
	return deck, OutcomeSucceededDebited, nil
}

func (g *Gate) lookup(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	profile, err := g.profiles.GetProfile(ctx, userID)
	switch {
	case err == nil:
		return profile, nil
	case errors.Is(err, store.ErrProfileNotFound):
		return nil, &MeteringError{kind: domain.KindProfileNotFound, Err: err}
	default:
		return nil, &MeteringError{kind: domain.KindProfileLookupFailed, Err: err}
	}
}

func run(ctx context.Context, fn GenerateFunc) (*domain.GeneratedDeck, error) {
	deck, err := fn(ctx)
	if err != nil {
		return nil, err
	}
	if deck == nil {
		return nil, ErrNilDeck
	}
	return deck, nil
}

// flagDebitFailure records a delivered but uncharged generation. It never
// fails the request.
func (g *Gate) flagDebitFailure(ctx context.Context, log *slog.Logger, userID uuid.UUID, cost int, debitErr error) {
	reason := ReasonDebitFailed
	if errors.Is(debitErr, store.ErrInsufficientBalance) {
		reason = ReasonBalanceExhausted
	}

	log.ErrorContext(ctx, "token debit failed after successful generation",
		"critical", true,
		"cost", cost,
		"reason", reason,
		"error", debitErr)

	if g.emitter == nil {
		return
	}
	event, err := events.NewReconciliationEvent(events.ReconciliationPayload{
		UserID: userID,
		Cost:   cost,
		Reason: reason,
		Detail: redact.Error(debitErr),
	})
	if err != nil {
		log.ErrorContext(ctx, "failed to build reconciliation event", "critical", true, "error", err)
		return
	}
	if err := g.emitter.EmitEvent(ctx, event); err != nil {
		log.ErrorContext(ctx, "failed to emit reconciliation event",
			"critical", true,
			"event_id", event.ID,
			"error", err)
	}
}
