package deckgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/domain"
	"github.com/phrazzld/scry-decks/internal/generation"
	"github.com/phrazzld/scry-decks/internal/platform/logger"
	"github.com/phrazzld/scry-decks/internal/prompt"
	"github.com/phrazzld/scry-decks/internal/service/metering"
	"github.com/phrazzld/scry-decks/internal/store"
)

// SourceExtractor turns a request source into text. *extract.Extractor satisfies it.
type SourceExtractor interface {
	Extract(ctx context.Context, kind domain.SourceKind, content string, raw []byte) (domain.ExtractedDocument, error)
}

// Meter wraps generation with usage accounting. *metering.Gate satisfies it.
type Meter interface {
	WithMetering(
		ctx context.Context,
		userID uuid.UUID,
		cost int,
		fn metering.GenerateFunc,
	) (*domain.GeneratedDeck, metering.Outcome, error)
}

// Pipeline generates decks from sources.
type Pipeline struct {
	extractor SourceExtractor
	generator generation.Generator
	meter     Meter
	decks     store.DeckStore
	cost      int
	logger    *slog.Logger
	now       func() time.Time
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithDeckStore enables GenerateAndStore.
func WithDeckStore(decks store.DeckStore) Option {
	return func(p *Pipeline) { p.decks = decks }
}

// WithClock replaces the clock used for deck timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline creates a Pipeline charging cost tokens per generated deck.
func NewPipeline(
	extractor SourceExtractor,
	generator generation.Generator,
	meter Meter,
	cost int,
	logger *slog.Logger,
	opts ...Option,
) (*Pipeline, error) {
	if extractor == nil {
		return nil, errors.New("extractor cannot be nil")
	}
	if generator == nil {
		return nil, errors.New("generator cannot be nil")
	}
	if meter == nil {
		return nil, errors.New("meter cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cost < 0 {
		return nil, fmt.Errorf("generation cost cannot be negative: %d", cost)
	}

	p := &Pipeline{
		extractor: extractor,
		generator: generator,
		meter:     meter,
		cost:      cost,
		logger:    logger.With("component", "deck_pipeline"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run generates a deck for userID. On failure the error is always a
// *PipelineError and the deck is nil.
func (p *Pipeline) Run(ctx context.Context, userID uuid.UUID, req domain.GenerationRequest) (*domain.GeneratedDeck, error) {
	log := logger.FromContextOrDefault(ctx, p.logger).With("user_id", userID)
	start := time.Now()

	if err := req.Validate(); err != nil {
		pe := toPipelineError(err)
		log.InfoContext(ctx, "generation request rejected", "kind", pe.Kind, "error", err)
		return nil, pe
	}
	if userID == uuid.Nil {
		return nil, toPipelineError(domain.NewRequestError("userId", "user ID is required"))
	}

	kind, _ := domain.ParseSourceKind(string(req.SourceKind))
	opts := req.Options.Normalize()

	deck, outcome, err := p.meter.WithMetering(ctx, userID, p.cost, func(ctx context.Context) (*domain.GeneratedDeck, error) {
		return p.generate(ctx, log, kind, req, opts)
	})
	if err != nil {
		pe := toPipelineError(err)
		log.WarnContext(ctx, "deck generation failed",
			"kind", pe.Kind,
			"category", pe.Kind.Category(),
			"source_kind", kind,
			"outcome", outcome.String(),
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err)
		return nil, pe
	}

	log.InfoContext(ctx, "deck generated",
		"source_kind", kind,
		"card_count", deck.CardCount(),
		"requested_cards", opts.CardCount,
		"outcome", outcome.String(),
		"duration_ms", time.Since(start).Milliseconds())
	return deck, nil
}

// generate runs extraction, prompt construction, the model call and
// validation. It is the function metered by the gate.
func (p *Pipeline) generate(
	ctx context.Context,
	log *slog.Logger,
	kind domain.SourceKind,
	req domain.GenerationRequest,
	opts domain.GenerationOptions,
) (*domain.GeneratedDeck, error) {
	doc, err := p.extractor.Extract(ctx, kind, req.SourceContent, req.SourceBytes)
	if err != nil {
		return nil, err
	}

	payload, err := prompt.Build(doc.Text, opts)
	if err != nil {
		return nil, domain.NewRequestError("sourceContent", err.Error())
	}

	raw, err := p.generator.Generate(ctx, payload)
	if err != nil {
		return nil, err
	}

	result, err := generation.Parse(raw, opts.ClozeStyle)
	if err != nil {
		return nil, err
	}
	if len(result.Dropped) > 0 {
		log.WarnContext(ctx, "dropped invalid cards from model output",
			"dropped", len(result.Dropped),
			"kept", len(result.Cards))
	}

	attrs := []any{"text_length", len(doc.Text), "cards", len(result.Cards)}
	if doc.PageCount != nil {
		attrs = append(attrs, "page_count", *doc.PageCount)
	}
	log.DebugContext(ctx, "deck assembled", attrs...)

	return domain.NewGeneratedDeck(req.Title(), result.Cards, p.now()), nil
}

// GenerateAndStore runs the pipeline and saves the resulting deck for userID.
// A save failure is reported as KindPersistenceFailed; the generation charge
// is not refunded.
func (p *Pipeline) GenerateAndStore(ctx context.Context, userID uuid.UUID, req domain.GenerationRequest) (*domain.Deck, error) {
	if p.decks == nil {
		return nil, &PipelineError{Kind: domain.KindInternal, Message: messageFor(domain.KindInternal),
			Err: errors.New("deck store not configured")}
	}

	generated, err := p.Run(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	log := logger.FromContextOrDefault(ctx, p.logger).With("user_id", userID)

	deck, err := domain.DeckFromGenerated(userID, generated)
	if err != nil {
		log.ErrorContext(ctx, "generated deck failed validation", "error", err)
		return nil, &PipelineError{Kind: domain.KindInternal, Message: messageFor(domain.KindInternal), Err: err}
	}

	// The deck is paid for; saving it should not depend on the client staying connected.
	if err := p.decks.CreateDeck(context.WithoutCancel(ctx), deck); err != nil {
		log.ErrorContext(ctx, "failed to save generated deck",
			"deck_id", deck.ID,
			"card_count", len(deck.Cards),
			"error", err)
		return nil, &PipelineError{
			Kind:    domain.KindPersistenceFailed,
			Message: messageFor(domain.KindPersistenceFailed),
			Err:     err,
		}
	}

	log.InfoContext(ctx, "generated deck saved", "deck_id", deck.ID)
	return deck, nil
}
