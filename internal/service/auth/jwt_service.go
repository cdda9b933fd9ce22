package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JWTService validates the bearer tokens presented to the API.
// Tokens are issued by the external identity provider; this service only
// issues its own for local development.
type JWTService interface {
	// ValidateToken verifies the signature and time claims of tokenString,
	// and the issuer and audience when configured, and returns its claims.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)

	// GenerateToken signs a token for userID that expires after lifetime.
	GenerateToken(ctx context.Context, userID uuid.UUID, lifetime time.Duration) (string, error)
}

// Claims are the parts of a validated token the API relies on.
type Claims struct {
	// UserID is parsed from the sub claim.
	UserID uuid.UUID

	Subject   string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
	ID        string
}
