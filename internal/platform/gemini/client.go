package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/phrazzld/scry-decks/internal/config"
	"github.com/phrazzld/scry-decks/internal/domain"
	"github.com/phrazzld/scry-decks/internal/generation"
	"github.com/phrazzld/scry-decks/internal/platform/logger"
	"github.com/sethvargo/go-retry"
	"google.golang.org/genai"
)

// maxBackoff caps the delay between retries.
const maxBackoff = 10 * time.Second

// ContentGenerator is the subset of the genai models service used by Client.
// *genai.Models satisfies it.
type ContentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Client implements generation.Generator on top of the Gemini API.
type Client struct {
	models         ContentGenerator
	model          string
	genConfig      *genai.GenerateContentConfig
	maxRetries     int
	retryDelay     time.Duration
	requestTimeout time.Duration
	logger         *slog.Logger
}

var _ generation.Generator = (*Client)(nil)

// NewGenerator creates the genai client for cfg and wraps it in a Client.
// The genai client is created once and shared by every request.
func NewGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Client, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}
	return NewClient(gc.Models, logger, cfg)
}

// NewClient creates a Client that sends requests through models.
func NewClient(models ContentGenerator, logger *slog.Logger, cfg config.LLMConfig) (*Client, error) {
	if models == nil {
		return nil, fmt.Errorf("%w: content generator cannot be nil", generation.ErrInvalidConfig)
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.MaxOutputTokens <= 0 {
		return nil, fmt.Errorf("%w: max output tokens must be positive", generation.ErrInvalidConfig)
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("%w: max retries cannot be negative", generation.ErrInvalidConfig)
	}

	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 500 * time.Millisecond
	}
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 90 * time.Second
	}

	return &Client{
		models:         models,
		model:          cfg.ModelName,
		genConfig:      generateConfig(cfg),
		maxRetries:     cfg.MaxRetries,
		retryDelay:     retryDelay,
		requestTimeout: requestTimeout,
		logger:         logger.With("component", "gemini"),
	}, nil
}

func generateConfig(cfg config.LLMConfig) *genai.GenerateContentConfig {
	safety := make([]*genai.SafetySetting, 0, 4)
	for _, category := range []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	} {
		safety = append(safety, &genai.SafetySetting{
			Category:  category,
			Threshold: genai.HarmBlockThresholdBlockMediumAndAbove,
		})
	}

	return &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(cfg.Temperature),
		MaxOutputTokens:  cfg.MaxOutputTokens,
		ResponseMIMEType: "application/json",
		SafetySettings:   safety,
	}
}

// Generate sends prompt to the model and returns the first candidate's text.
// Transient failures are retried with exponential backoff up to the
// configured number of extra attempts.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	log := logger.FromContextOrDefault(ctx, c.logger)
	if prompt == "" {
		return "", fmt.Errorf("%w: prompt cannot be empty", generation.ErrInvalidConfig)
	}

	b := retry.NewExponential(c.retryDelay)
	b = retry.WithJitterPercent(20, b)
	b = retry.WithCappedDuration(maxBackoff, b)
	b = retry.WithMaxRetries(uint64(c.maxRetries), b)

	var (
		text    string
		attempt int
		start   = time.Now()
	)
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		log.DebugContext(ctx, "calling Gemini API",
			"model", c.model,
			"attempt", attempt,
			"max_attempts", c.maxRetries+1,
			"prompt_length", len(prompt))

		out, err := c.attempt(ctx, prompt)
		if err == nil {
			text = out
			return nil
		}
		if generation.IsTransient(err) && attempt <= c.maxRetries {
			log.WarnContext(ctx, "transient Gemini failure, retrying",
				"attempt", attempt,
				"error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		log.WarnContext(ctx, "Gemini generation failed",
			"attempts", attempt,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err)
		return "", err
	}

	log.InfoContext(ctx, "Gemini generation succeeded",
		"attempts", attempt,
		"duration_ms", time.Since(start).Milliseconds(),
		"response_length", len(text))
	return text, nil
}

// attempt performs one bounded model call and classifies its outcome.
func (c *Client) attempt(ctx context.Context, prompt string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	resp, err := c.models.GenerateContent(attemptCtx, c.model, genai.Text(prompt), c.genConfig)
	if err != nil {
		return "", c.callError(ctx, err)
	}

	switch r := Classify(resp).(type) {
	case Ok:
		return r.Text, nil
	case SafetyBlocked:
		return "", generation.NewGenerationError(domain.KindSafetyBlocked, r.Detail, nil)
	case RecitationBlocked:
		return "", generation.NewGenerationError(domain.KindRecitationBlocked, r.Detail, nil)
	case Empty:
		return "", generation.NewGenerationError(domain.KindEmptyResponse, r.Reason, nil)
	default:
		return "", generation.NewGenerationError(domain.KindEmptyResponse, "unrecognized response", nil)
	}
}

// callError maps a failed call. The caller's own cancellation is returned
// unchanged; rate limits, server errors, network errors and the per-attempt
// timeout are transient. Other API rejections are internal: the request or
// credentials are wrong and a retry cannot help.
func (c *Client) callError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	if code, ok := apiErrorCode(err); ok {
		if code == 429 || code >= 500 {
			return generation.NewGenerationError(domain.KindTransient,
				fmt.Sprintf("Gemini API returned status %d", code), err)
		}
		return generation.NewGenerationError(domain.KindInternal,
			fmt.Sprintf("Gemini API rejected the request with status %d", code), err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return generation.NewGenerationError(domain.KindTransient,
			fmt.Sprintf("model call exceeded %s", c.requestTimeout), err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return generation.NewGenerationError(domain.KindTransient, "network error", err)
	}
	return generation.NewGenerationError(domain.KindTransient, "unexpected model client error", err)
}

func apiErrorCode(err error) (int, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, true
	}
	return 0, false
}
