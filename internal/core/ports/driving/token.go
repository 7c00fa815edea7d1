package driving

import (
	"context"

	"github.com/custodia-labs/ghl-bridge/internal/core/domain"
)

// TokenService hands out usable access tokens, refreshing them proactively.
type TokenService interface {
	// EnsureFresh returns a currently usable access token for the installation,
	// refreshing first when it is inside the refresh window.
	// Returns domain.ErrNotAuthenticated when no record or token exists.
	EnsureFresh(ctx context.Context, installationID string) (string, error)

	// EnsureFreshByLocation resolves the installation through the location index.
	EnsureFreshByLocation(ctx context.Context, locationID string) (string, error)

	// Refresh performs the refresh_token grant regardless of freshness.
	Refresh(ctx context.Context, installationID string) (*domain.Installation, error)
}
