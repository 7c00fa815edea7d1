package driven

import "github.com/custodia-labs/ghl-bridge/internal/core/domain"

// AuthAdapter handles authentication cryptographic operations.
type AuthAdapter interface {
	// Admin key operations
	HashKey(key string) (string, error)
	VerifyKey(key, hash string) bool

	// Session token operations
	GenerateToken(claims *domain.SessionClaims) (string, error)
	ParseToken(token string) (*domain.SessionClaims, error)
}
