package deckgen_test

import (
	"context"
	"encoding/base64"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/config"
	"github.com/phrazzld/scry-decks/internal/domain"
	"github.com/phrazzld/scry-decks/internal/extract"
	"github.com/phrazzld/scry-decks/internal/generation"
	"github.com/phrazzld/scry-decks/internal/mocks"
	"github.com/phrazzld/scry-decks/internal/platform/logger"
	"github.com/phrazzld/scry-decks/internal/service/deckgen"
	"github.com/phrazzld/scry-decks/internal/service/metering"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	cost         = 10
	mitochondria = "The mitochondria is the powerhouse of the cell."
)

var fixedNow = time.Date(2025, time.May, 1, 9, 30, 0, 0, time.UTC)

// blankPDF reports one page with no extractable text, like a scanned document.
type blankPDF struct{}

func (blankPDF) PageCount([]byte) (int, error) { return 1, nil }
func (blankPDF) PageTexts([]byte) ([]string, error) { return []string{"   "}, nil }

type fixture struct {
	pipeline  *deckgen.Pipeline
	profiles  *mocks.MockProfileStore
	decks     *mocks.MockDeckStore
	generator *mocks.MockGenerator
	userID    uuid.UUID
	lookups   *atomic.Int32
}

func newFixture(t *testing.T, generator *mocks.MockGenerator, profile domain.Profile) *fixture {
	t.Helper()

	log, _ := logger.NewCaptureLogger()
	userID := uuid.New()
	profile.UserID = userID

	profiles := mocks.NewMockProfileStore(profile)
	var lookups atomic.Int32
	countingStore := &countingProfiles{MockProfileStore: profiles, lookups: &lookups}

	gate, err := metering.NewGate(countingStore, nil, config.MeteringConfig{DebitTimeout: time.Second}, log)
	require.NoError(t, err)

	extractor := extract.New(extract.DefaultConfig(), log, extract.WithPDFBackend(blankPDF{}))
	decks := mocks.NewMockDeckStore()

	p, err := deckgen.NewPipeline(extractor, generator, gate, cost, log,
		deckgen.WithDeckStore(decks),
		deckgen.WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)

	return &fixture{
		pipeline:  p,
		profiles:  profiles,
		decks:     decks,
		generator: generator,
		userID:    userID,
		lookups:   &lookups,
	}
}

// countingProfiles counts profile lookups.
type countingProfiles struct {
	*mocks.MockProfileStore
	lookups *atomic.Int32
}

func (c *countingProfiles) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	c.lookups.Add(1)
	return c.MockProfileStore.GetProfile(ctx, userID)
}

func funded() domain.Profile {
	return domain.Profile{TokenCount: 25, SubscriptionStatus: domain.SubscriptionInactive}
}

func textRequest(style domain.ClozeStyle, cardCount int) domain.GenerationRequest {
	return domain.GenerationRequest{
		SourceKind:    domain.SourceText,
		SourceContent: mitochondria,
		Options:       domain.GenerationOptions{CardCount: cardCount, ClozeStyle: style},
	}
}

func requirePipelineKind(t *testing.T, err error, want domain.ErrorKind) *deckgen.PipelineError {
	t.Helper()
	var pe *deckgen.PipelineError
	require.True(t, errors.As(err, &pe), "expected *deckgen.PipelineError, got %T: %v", err, err)
	assert.Equal(t, want, pe.Kind)
	assert.NotEmpty(t, pe.Message)
	return pe
}

func TestNewPipelineValidation(t *testing.T) {
	t.Parallel()

	log, _ := logger.NewCaptureLogger()
	extractor := extract.New(extract.DefaultConfig(), log)
	gen := mocks.NewMockGenerator("[]")
	gate, err := metering.NewGate(mocks.NewMockProfileStore(), nil, config.MeteringConfig{}, log)
	require.NoError(t, err)

	_, err = deckgen.NewPipeline(nil, gen, gate, cost, log)
	assert.Error(t, err)
	_, err = deckgen.NewPipeline(extractor, nil, gate, cost, log)
	assert.Error(t, err)
	_, err = deckgen.NewPipeline(extractor, gen, nil, cost, log)
	assert.Error(t, err)
	_, err = deckgen.NewPipeline(extractor, gen, gate, -1, log)
	assert.Error(t, err)
	_, err = deckgen.NewPipeline(extractor, gen, gate, cost, nil)
	assert.Error(t, err)
}

func TestRunPlainTextQA(t *testing.T) {
	t.Parallel()

	gen := mocks.NewMockGenerator("```json\n" +
		`[{"front": "What is the powerhouse of the cell?", "back": "The mitochondria", "context_snippet": "powerhouse of the cell"}]` +
		"\n```")
	f := newFixture(t, gen, funded())

	deck, err := f.pipeline.Run(context.Background(), f.userID, textRequest(domain.ClozeQA, 1))
	require.NoError(t, err)

	assert.Equal(t, domain.DefaultDeckTitle, deck.Title)
	assert.Equal(t, fixedNow, deck.CreatedAt)
	require.GreaterOrEqual(t, deck.CardCount(), 1)
	for _, c := range deck.Cards {
		assert.NotEmpty(t, c.Front)
		assert.False(t, c.Back.IsList())
		assert.NotEmpty(t, c.Back.Text())
	}

	prompts := gen.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], mitochondria)
	assert.Contains(t, prompts[0], "exactly 1 flashcard")

	assert.Equal(t, 15, f.profiles.Balance(f.userID), "success debits exactly the cost")
}

func TestRunToleratesCardCountMismatch(t *testing.T) {
	t.Parallel()

	gen := mocks.NewMockGenerator(`[{"front":"a","back":"b"},{"front":"c","back":"d"},{"front":"e","back":"f"}]`)
	f := newFixture(t, gen, funded())

	deck, err := f.pipeline.Run(context.Background(), f.userID, textRequest(domain.ClozeQA, 1))
	require.NoError(t, err)
	assert.Equal(t, 3, deck.CardCount())
}

func TestRunMultiClozeBackShape(t *testing.T) {
	t.Parallel()

	const output = `[{"front": "___ is the capital of ___", "back": ["Paris", "France"]}]`

	t.Run("multi accepts list backs", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, mocks.NewMockGenerator(output), funded())

		deck, err := f.pipeline.Run(context.Background(), f.userID, textRequest(domain.ClozeMulti, 1))
		require.NoError(t, err)
		require.Len(t, deck.Cards, 1)
		assert.Equal(t, []string{"Paris", "France"}, deck.Cards[0].Back.Parts())
	})

	t.Run("single rejects the only card", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, mocks.NewMockGenerator(output), funded())

		_, err := f.pipeline.Run(context.Background(), f.userID, textRequest(domain.ClozeSingle, 1))
		pe := requirePipelineKind(t, err, domain.KindNoUsableCards)
		assert.Contains(t, pe.Details, deckgen.DetailDroppedCards)
		assert.Equal(t, 25, f.profiles.Balance(f.userID))
	})
}

func TestRunFailuresAreNotCharged(t *testing.T) {
	t.Parallel()

	pdfContent := base64.StdEncoding.EncodeToString([]byte("%PDF-1.4\n%scanned\n"))

	tests := []struct {
		name      string
		generator *mocks.MockGenerator
		req       domain.GenerationRequest
		kind      domain.ErrorKind
		modelCall bool
	}{
		{
			name:      "empty pdf text",
			generator: mocks.NewMockGenerator(`[{"front":"a","back":"b"}]`),
			req:       domain.GenerationRequest{SourceKind: domain.SourcePDF, SourceContent: pdfContent},
			kind:      domain.KindNoReadableText,
			modelCall: false,
		},
		{
			name: "safety block",
			generator: mocks.NewMockGeneratorWithError(
				generation.NewGenerationError(domain.KindSafetyBlocked, "output blocked: SAFETY", nil)),
			req:       textRequest(domain.ClozeSingle, 5),
			kind:      domain.KindSafetyBlocked,
			modelCall: true,
		},
		{
			name: "recitation block",
			generator: mocks.NewMockGeneratorWithError(
				generation.NewGenerationError(domain.KindRecitationBlocked, "recitation", nil)),
			req:       textRequest(domain.ClozeSingle, 5),
			kind:      domain.KindRecitationBlocked,
			modelCall: true,
		},
		{
			name: "transient exhausted",
			generator: mocks.NewMockGeneratorWithError(
				generation.NewGenerationError(domain.KindTransient, "status 503", nil)),
			req:       textRequest(domain.ClozeSingle, 5),
			kind:      domain.KindTransient,
			modelCall: true,
		},
		{
			name:      "object instead of array",
			generator: mocks.NewMockGenerator(`{"cards": []}`),
			req:       textRequest(domain.ClozeSingle, 5),
			kind:      domain.KindUnexpectedShape,
			modelCall: true,
		},
		{
			name:      "unclassified generator error",
			generator: mocks.NewMockGeneratorWithError(errors.New("connection pool exhausted")),
			req:       textRequest(domain.ClozeSingle, 5),
			kind:      domain.KindInternal,
			modelCall: true,
		},
		{
			name: "model api rejected the request",
			generator: mocks.NewMockGeneratorWithError(generation.NewGenerationError(domain.KindInternal,
				"Gemini API rejected the request with status 403", errors.New("PERMISSION_DENIED"))),
			req:       textRequest(domain.ClozeSingle, 5),
			kind:      domain.KindInternal,
			modelCall: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, tc.generator, funded())

			deck, err := f.pipeline.Run(context.Background(), f.userID, tc.req)
			assert.Nil(t, deck)
			requirePipelineKind(t, err, tc.kind)
			assert.Equal(t, 25, f.profiles.Balance(f.userID))
			assert.Empty(t, f.profiles.Debits())
			if tc.modelCall {
				assert.Equal(t, 1, tc.generator.CallCount())
			} else {
				assert.Zero(t, tc.generator.CallCount())
			}
		})
	}
}

func TestRunMalformedOutputKeepsRawText(t *testing.T) {
	t.Parallel()

	const raw = "Sorry, I can't help with that."
	f := newFixture(t, mocks.NewMockGenerator(raw), funded())

	_, err := f.pipeline.Run(context.Background(), f.userID, textRequest(domain.ClozeSingle, 5))
	pe := requirePipelineKind(t, err, domain.KindMalformedJSON)
	assert.Equal(t, raw, pe.Details[deckgen.DetailRawOutput])
	assert.NotContains(t, pe.Message, raw)
	assert.Empty(t, f.profiles.Debits())
}

func TestRunInsufficientBalanceMakesNoModelCall(t *testing.T) {
	t.Parallel()

	gen := mocks.NewMockGenerator(`[{"front":"a","back":"b"}]`)
	f := newFixture(t, gen, domain.Profile{TokenCount: 4, SubscriptionStatus: domain.SubscriptionInactive})

	_, err := f.pipeline.Run(context.Background(), f.userID, textRequest(domain.ClozeQA, 1))
	pe := requirePipelineKind(t, err, domain.KindInsufficientBalance)
	assert.Equal(t, 4, pe.Details[deckgen.DetailBalance])
	assert.Equal(t, cost, pe.Details[deckgen.DetailRequired])
	assert.Zero(t, gen.CallCount())
}

func TestRunSubscriberIsNotCharged(t *testing.T) {
	t.Parallel()

	gen := mocks.NewMockGenerator(`[{"front":"a","back":"b"}]`)
	f := newFixture(t, gen, domain.Profile{TokenCount: 0, SubscriptionStatus: domain.SubscriptionActive})

	_, err := f.pipeline.Run(context.Background(), f.userID, textRequest(domain.ClozeQA, 1))
	require.NoError(t, err)
	assert.Empty(t, f.profiles.Debits())
}

func TestRunRejectsInvalidRequestsBeforeAnyWork(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  domain.GenerationRequest
		kind domain.ErrorKind
	}{
		{"missing source kind", domain.GenerationRequest{SourceContent: "x"}, domain.KindInvalidRequest},
		{"blank content", domain.GenerationRequest{SourceKind: domain.SourceText, SourceContent: "  \n"}, domain.KindInvalidRequest},
		{"unknown source kind", domain.GenerationRequest{SourceKind: "audio", SourceContent: "x"}, domain.KindUnsupportedSourceKind},
		{"unknown cloze style", domain.GenerationRequest{
			SourceKind:    domain.SourceText,
			SourceContent: "x",
			Options:       domain.GenerationOptions{ClozeStyle: "fancy"},
		}, domain.KindInvalidRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			gen := mocks.NewMockGenerator(`[{"front":"a","back":"b"}]`)
			f := newFixture(t, gen, funded())

			_, err := f.pipeline.Run(context.Background(), f.userID, tc.req)
			requirePipelineKind(t, err, tc.kind)
			assert.Zero(t, f.lookups.Load(), "no profile lookup for invalid requests")
			assert.Zero(t, gen.CallCount())
		})
	}
}

func TestRunSourceKindIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	f := newFixture(t, mocks.NewMockGenerator(`[{"front":"a","back":"b"}]`), funded())
	req := textRequest(domain.ClozeQA, 1)
	req.SourceKind = "TEXT"

	_, err := f.pipeline.Run(context.Background(), f.userID, req)
	assert.NoError(t, err)
}

func TestRunCancelledRequestIsTransientAndFree(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	gen := &mocks.MockGenerator{GenerateFn: func(ctx context.Context, _ string) (string, error) {
		cancel()
		return "", ctx.Err()
	}}
	f := newFixture(t, gen, funded())

	_, err := f.pipeline.Run(ctx, f.userID, textRequest(domain.ClozeQA, 1))
	pe := requirePipelineKind(t, err, domain.KindTransient)
	assert.ErrorIs(t, pe, context.Canceled)
	assert.Empty(t, f.profiles.Debits())
}

func TestGenerateAndStore(t *testing.T) {
	t.Parallel()

	const output = `[{"front":"What is ATP?","back":"The energy currency of the cell","source_page":1}]`

	t.Run("saves the deck for its owner", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, mocks.NewMockGenerator(output), funded())
		req := textRequest(domain.ClozeQA, 1)
		req.DeckTitle = "  Cell Biology  "

		deck, err := f.pipeline.GenerateAndStore(context.Background(), f.userID, req)
		require.NoError(t, err)
		assert.Equal(t, "Cell Biology", deck.Title)
		assert.Equal(t, f.userID, deck.UserID)

		stored, err := f.decks.GetDeck(context.Background(), f.userID, deck.ID)
		require.NoError(t, err)
		require.Len(t, stored.Cards, 1)
		require.NotNil(t, stored.Cards[0].SourcePage)
		assert.Equal(t, 1, *stored.Cards[0].SourcePage)
	})

	t.Run("save failure keeps the charge", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, mocks.NewMockGenerator(output), funded())
		f.decks.CreateDeckFn = func(context.Context, *domain.Deck) error {
			return errors.New("disk full")
		}

		_, err := f.pipeline.GenerateAndStore(context.Background(), f.userID, textRequest(domain.ClozeQA, 1))
		requirePipelineKind(t, err, domain.KindPersistenceFailed)
		assert.Equal(t, 15, f.profiles.Balance(f.userID))
	})

	t.Run("generation failure saves nothing", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, mocks.NewMockGenerator("not json"), funded())

		_, err := f.pipeline.GenerateAndStore(context.Background(), f.userID, textRequest(domain.ClozeQA, 1))
		requirePipelineKind(t, err, domain.KindMalformedJSON)
		assert.Zero(t, f.decks.Count())
	})

	t.Run("without a deck store", func(t *testing.T) {
		t.Parallel()
		log, _ := logger.NewCaptureLogger()
		gate, err := metering.NewGate(mocks.NewMockProfileStore(), nil, config.MeteringConfig{}, log)
		require.NoError(t, err)
		p, err := deckgen.NewPipeline(extract.New(extract.DefaultConfig(), log), mocks.NewMockGenerator(output), gate, cost, log)
		require.NoError(t, err)

		_, err = p.GenerateAndStore(context.Background(), uuid.New(), textRequest(domain.ClozeQA, 1))
		requirePipelineKind(t, err, domain.KindInternal)
	})
}
