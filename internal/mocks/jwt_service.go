package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/service/auth"
)

// MockJWTService implements auth.JWTService for testing
type MockJWTService struct {
	ValidateTokenFn func(ctx context.Context, tokenString string) (*auth.Claims, error)
	GenerateTokenFn func(ctx context.Context, userID uuid.UUID, lifetime time.Duration) (string, error)

	// Default values used when the functions are not set
	Claims      *auth.Claims
	ValidateErr error
	Token       string
	Err         error
}

var _ auth.JWTService = (*MockJWTService)(nil)

// NewMockJWTServiceFor returns a mock that accepts any token as belonging to userID.
func NewMockJWTServiceFor(userID uuid.UUID) *MockJWTService {
	return &MockJWTService{Claims: &auth.Claims{UserID: userID, Subject: userID.String()}}
}

// ValidateToken implements auth.JWTService
func (m *MockJWTService) ValidateToken(ctx context.Context, tokenString string) (*auth.Claims, error) {
	if m.ValidateTokenFn != nil {
		return m.ValidateTokenFn(ctx, tokenString)
	}
	return m.Claims, m.ValidateErr
}

// GenerateToken implements auth.JWTService
func (m *MockJWTService) GenerateToken(ctx context.Context, userID uuid.UUID, lifetime time.Duration) (string, error) {
	if m.GenerateTokenFn != nil {
		return m.GenerateTokenFn(ctx, userID, lifetime)
	}
	return m.Token, m.Err
}
