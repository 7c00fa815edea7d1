package driven

import (
	"context"

	"github.com/custodia-labs/ghl-bridge/internal/core/domain"
)

// OAuthClient talks to the provider's OAuth token endpoint.
// Each call is a single attempt; failures are returned as *domain.ProviderError.
type OAuthClient interface {
	// BuildAuthURL constructs the consent screen URL.
	BuildAuthURL(provider *domain.AuthProvider, state string) string

	// ExchangeCode performs the authorization_code grant.
	ExchangeCode(ctx context.Context, provider *domain.AuthProvider, code, redirectURI string) (*domain.OAuthToken, error)

	// RefreshToken performs the refresh_token grant.
	RefreshToken(ctx context.Context, provider *domain.AuthProvider, refreshToken string) (*domain.OAuthToken, error)
}
