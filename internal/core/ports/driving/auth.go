package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/ghl-bridge/internal/core/domain"
)

// AuthService issues and validates frontend session tokens.
type AuthService interface {
	// IssueSession creates a session token for an installation.
	IssueSession(ctx context.Context, inst *domain.Installation) (token string, expiresAt time.Time, err error)

	// ValidateSession checks a session token and returns the auth context.
	ValidateSession(ctx context.Context, token string) (*domain.AuthContext, error)

	// ValidateAdminKey checks the admin key against the configured hash.
	ValidateAdminKey(ctx context.Context, key string) bool
}
