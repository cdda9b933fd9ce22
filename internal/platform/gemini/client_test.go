package gemini_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/scry-decks/internal/config"
	"github.com/phrazzld/scry-decks/internal/domain"
	"github.com/phrazzld/scry-decks/internal/generation"
	"github.com/phrazzld/scry-decks/internal/platform/gemini"
	"github.com/phrazzld/scry-decks/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type call struct {
	model  string
	prompt string
	config *genai.GenerateContentConfig
}

// scriptedModels replays one step per call; the last step repeats.
type scriptedModels struct {
	mu    sync.Mutex
	steps []func(ctx context.Context) (*genai.GenerateContentResponse, error)
	calls []call
}

func (s *scriptedModels) GenerateContent(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	cfg *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	s.mu.Lock()
	prompt := ""
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		prompt = contents[0].Parts[0].Text
	}
	s.calls = append(s.calls, call{model: model, prompt: prompt, config: cfg})
	idx := len(s.calls) - 1
	if idx >= len(s.steps) {
		idx = len(s.steps) - 1
	}
	step := s.steps[idx]
	s.mu.Unlock()
	return step(ctx)
}

func (s *scriptedModels) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func respond(resp *genai.GenerateContentResponse) func(context.Context) (*genai.GenerateContentResponse, error) {
	return func(context.Context) (*genai.GenerateContentResponse, error) { return resp, nil }
}

func fail(err error) func(context.Context) (*genai.GenerateContentResponse, error) {
	return func(context.Context) (*genai.GenerateContentResponse, error) { return nil, err }
}

func okResponse(text string) *genai.GenerateContentResponse {
	return textResponse(genai.FinishReasonStop, &genai.Part{Text: text})
}

func testLLMConfig() config.LLMConfig {
	return config.LLMConfig{
		GeminiAPIKey:    "test-api-key",
		ModelName:       "gemini-test",
		Temperature:     0.2,
		MaxOutputTokens: 8190,
		MaxRetries:      2,
		RetryDelay:      time.Millisecond,
		RequestTimeout:  time.Second,
	}
}

func newTestClient(t *testing.T, models gemini.ContentGenerator, cfg config.LLMConfig) *gemini.Client {
	t.Helper()
	log, _ := logger.NewCaptureLogger()
	c, err := gemini.NewClient(models, log, cfg)
	require.NoError(t, err)
	return c
}

func requireGenerationKind(t *testing.T, err error, want domain.ErrorKind) {
	t.Helper()
	var ge *generation.GenerationError
	require.True(t, errors.As(err, &ge), "expected *generation.GenerationError, got %T: %v", err, err)
	assert.Equal(t, want, ge.Kind())
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	log, _ := logger.NewCaptureLogger()
	models := &scriptedModels{steps: []func(context.Context) (*genai.GenerateContentResponse, error){respond(okResponse("[]"))}}

	tests := []struct {
		name   string
		models gemini.ContentGenerator
		mutate func(*config.LLMConfig)
	}{
		{"nil generator", nil, func(*config.LLMConfig) {}},
		{"empty model", models, func(c *config.LLMConfig) { c.ModelName = "" }},
		{"zero max tokens", models, func(c *config.LLMConfig) { c.MaxOutputTokens = 0 }},
		{"negative retries", models, func(c *config.LLMConfig) { c.MaxRetries = -1 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := testLLMConfig()
			tc.mutate(&cfg)
			_, err := gemini.NewClient(tc.models, log, cfg)
			assert.ErrorIs(t, err, generation.ErrInvalidConfig)
		})
	}

	_, err := gemini.NewClient(models, nil, testLLMConfig())
	assert.Error(t, err)
}

func TestNewGeneratorRequiresAPIKey(t *testing.T) {
	t.Parallel()

	log, _ := logger.NewCaptureLogger()
	cfg := testLLMConfig()
	cfg.GeminiAPIKey = ""
	_, err := gemini.NewGenerator(context.Background(), log, cfg)
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)
}

func TestGenerateSendsRequestSettings(t *testing.T) {
	t.Parallel()

	models := &scriptedModels{steps: []func(context.Context) (*genai.GenerateContentResponse, error){
		respond(okResponse(`[{"front":"a","back":"b"}]`)),
	}}
	c := newTestClient(t, models, testLLMConfig())

	text, err := c.Generate(context.Background(), "make cards")
	require.NoError(t, err)
	assert.Equal(t, `[{"front":"a","back":"b"}]`, text)

	require.Len(t, models.calls, 1)
	got := models.calls[0]
	assert.Equal(t, "gemini-test", got.model)
	assert.Equal(t, "make cards", got.prompt)
	require.NotNil(t, got.config)
	require.NotNil(t, got.config.Temperature)
	assert.InDelta(t, 0.2, *got.config.Temperature, 1e-6)
	assert.EqualValues(t, 8190, got.config.MaxOutputTokens)
	assert.Equal(t, "application/json", got.config.ResponseMIMEType)

	categories := map[genai.HarmCategory]genai.HarmBlockThreshold{}
	for _, s := range got.config.SafetySettings {
		categories[s.Category] = s.Threshold
	}
	assert.Equal(t, map[genai.HarmCategory]genai.HarmBlockThreshold{
		genai.HarmCategoryHarassment:       genai.HarmBlockThresholdBlockMediumAndAbove,
		genai.HarmCategoryHateSpeech:       genai.HarmBlockThresholdBlockMediumAndAbove,
		genai.HarmCategorySexuallyExplicit: genai.HarmBlockThresholdBlockMediumAndAbove,
		genai.HarmCategoryDangerousContent: genai.HarmBlockThresholdBlockMediumAndAbove,
	}, categories)
}

func TestGenerateRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
	}{
		{"rate limited", &genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"}},
		{"server error", &genai.APIError{Code: 503, Status: "UNAVAILABLE"}},
		{"unknown error", errors.New("connection reset by peer")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			models := &scriptedModels{steps: []func(context.Context) (*genai.GenerateContentResponse, error){
				fail(tc.err),
				fail(tc.err),
				respond(okResponse("[]")),
			}}
			c := newTestClient(t, models, testLLMConfig())

			text, err := c.Generate(context.Background(), "prompt")
			require.NoError(t, err)
			assert.Equal(t, "[]", text)
			assert.Equal(t, 3, models.callCount())
		})
	}
}

func TestGenerateGivesUpAfterMaxRetries(t *testing.T) {
	t.Parallel()

	models := &scriptedModels{steps: []func(context.Context) (*genai.GenerateContentResponse, error){
		fail(&genai.APIError{Code: 500, Status: "INTERNAL"}),
	}}
	c := newTestClient(t, models, testLLMConfig())

	_, err := c.Generate(context.Background(), "prompt")
	requireGenerationKind(t, err, domain.KindTransient)
	assert.ErrorIs(t, err, generation.ErrTransientFailure)
	assert.Equal(t, 3, models.callCount(), "one attempt plus two retries")
}

func TestGenerateWithoutRetries(t *testing.T) {
	t.Parallel()

	cfg := testLLMConfig()
	cfg.MaxRetries = 0
	models := &scriptedModels{steps: []func(context.Context) (*genai.GenerateContentResponse, error){
		fail(&genai.APIError{Code: 503}),
	}}
	c := newTestClient(t, models, cfg)

	_, err := c.Generate(context.Background(), "prompt")
	requireGenerationKind(t, err, domain.KindTransient)
	assert.Equal(t, 1, models.callCount())
}

func TestGenerateDoesNotRetryTerminalOutcomes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
		kind domain.ErrorKind
	}{
		{"safety", textResponse(genai.FinishReasonSafety), domain.KindSafetyBlocked},
		{"recitation", textResponse(genai.FinishReasonRecitation), domain.KindRecitationBlocked},
		{"empty", &genai.GenerateContentResponse{}, domain.KindEmptyResponse},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			models := &scriptedModels{steps: []func(context.Context) (*genai.GenerateContentResponse, error){respond(tc.resp)}}
			c := newTestClient(t, models, testLLMConfig())

			_, err := c.Generate(context.Background(), "prompt")
			requireGenerationKind(t, err, tc.kind)
			assert.Equal(t, 1, models.callCount())
		})
	}
}

func TestGenerateClientRejectionIsInternal(t *testing.T) {
	t.Parallel()

	for _, code := range []int{400, 403, 404} {
		t.Run(fmt.Sprintf("status %d", code), func(t *testing.T) {
			t.Parallel()
			models := &scriptedModels{steps: []func(context.Context) (*genai.GenerateContentResponse, error){
				fail(&genai.APIError{Code: code, Message: "rejected", Status: "PERMISSION_DENIED"}),
			}}
			c := newTestClient(t, models, testLLMConfig())

			_, err := c.Generate(context.Background(), "prompt")
			requireGenerationKind(t, err, domain.KindInternal)
			assert.ErrorIs(t, err, generation.ErrRequestRejected)
			assert.False(t, generation.IsTransient(err))
			assert.Contains(t, err.Error(), fmt.Sprintf("status %d", code))
			assert.Equal(t, 1, models.callCount())
		})
	}
}

func TestGenerateAttemptTimeoutIsTransient(t *testing.T) {
	t.Parallel()

	cfg := testLLMConfig()
	cfg.RequestTimeout = 20 * time.Millisecond
	cfg.MaxRetries = 1

	hang := func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		<-ctx.Done()
		return nil, fmt.Errorf("doing request: %w", ctx.Err())
	}
	models := &scriptedModels{steps: []func(context.Context) (*genai.GenerateContentResponse, error){hang}}
	c := newTestClient(t, models, cfg)

	_, err := c.Generate(context.Background(), "prompt")
	requireGenerationKind(t, err, domain.KindTransient)
	assert.Equal(t, 2, models.callCount())
}

func TestGenerateCallerCancellationIsNotRetried(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	models := &scriptedModels{steps: []func(context.Context) (*genai.GenerateContentResponse, error){
		func(ctx context.Context) (*genai.GenerateContentResponse, error) {
			cancel()
			return nil, fmt.Errorf("doing request: %w", context.Canceled)
		},
	}}
	c := newTestClient(t, models, testLLMConfig())

	_, err := c.Generate(ctx, "prompt")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, generation.IsTransient(err))
	assert.Equal(t, 1, models.callCount())
}

func TestGenerateRejectsEmptyPrompt(t *testing.T) {
	t.Parallel()

	models := &scriptedModels{steps: []func(context.Context) (*genai.GenerateContentResponse, error){respond(okResponse("[]"))}}
	c := newTestClient(t, models, testLLMConfig())

	_, err := c.Generate(context.Background(), "")
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)
	assert.Zero(t, models.callCount())
}
