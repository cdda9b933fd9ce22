package config

import (
	"fmt"
	"time"

	"github.com/docker/go-units"
)

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth" validate:"required"`
	LLM       LLMConfig       `mapstructure:"llm" validate:"required"`
	Extract   ExtractConfig   `mapstructure:"extract" validate:"required"`
	Metering  MeteringConfig  `mapstructure:"metering" validate:"required"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`

	// CORSAllowedOrigins lists origins permitted to call the API from a browser.
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`

	// ExposeErrorDetails includes developer diagnostics (such as raw model
	// output) in error responses. Leave disabled in production.
	ExposeErrorDetails bool `mapstructure:"expose_error_details"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL          string `mapstructure:"url" validate:"required,url"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" validate:"gte=0"`
}

// AuthConfig contains the settings used to validate bearer tokens issued by
// the external identity provider.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`

	// Issuer, when set, must match the iss claim of incoming tokens.
	Issuer string `mapstructure:"issuer"`

	// Audience, when set, must be present in the aud claim of incoming tokens.
	Audience string `mapstructure:"audience"`
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	GeminiAPIKey    string        `mapstructure:"gemini_api_key" validate:"required"`
	ModelName       string        `mapstructure:"model_name" validate:"required"`
	Temperature     float32       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxOutputTokens int32         `mapstructure:"max_output_tokens" validate:"gt=0"`
	MaxRetries      int           `mapstructure:"max_retries" validate:"gte=0,lte=5"`
	RetryDelay      time.Duration `mapstructure:"retry_delay" validate:"gt=0"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
}

// ExtractConfig bounds the work done turning sources into text.
// Sizes are human readable strings such as "10MB".
type ExtractConfig struct {
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout" validate:"gt=0"`
	MaxFetchSize    string        `mapstructure:"max_fetch_size" validate:"required"`
	MaxDocumentSize string        `mapstructure:"max_document_size" validate:"required"`
	UserAgent       string        `mapstructure:"user_agent" validate:"required"`
}

// MaxFetchBytes parses MaxFetchSize.
func (c ExtractConfig) MaxFetchBytes() (int64, error) {
	return parseSize("max_fetch_size", c.MaxFetchSize)
}

// MaxDocumentBytes parses MaxDocumentSize.
func (c ExtractConfig) MaxDocumentBytes() (int64, error) {
	return parseSize("max_document_size", c.MaxDocumentSize)
}

// MeteringConfig controls usage accounting for deck generation.
type MeteringConfig struct {
	GenerationCost int           `mapstructure:"generation_cost" validate:"gte=0"`
	DebitTimeout   time.Duration `mapstructure:"debit_timeout" validate:"gt=0"`
}

// RateLimitConfig throttles generation requests per user.
type RateLimitConfig struct {
	GeneratePerMinute float64 `mapstructure:"generate_per_minute" validate:"gt=0"`
	Burst             int     `mapstructure:"burst" validate:"gte=1"`
}

func parseSize(name, v string) (int64, error) {
	n, err := units.FromHumanSize(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, v, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", name, v)
	}
	return n, nil
}
