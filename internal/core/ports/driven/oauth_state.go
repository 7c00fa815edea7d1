package driven

import (
	"context"
	"time"
)

// OAuthState represents a pending OAuth authorization flow state.
// It correlates the callback with the location/user that started the flow.
type OAuthState struct {
	// State is a cryptographically random string used for CSRF protection.
	State string `json:"state"`

	// LocationID and UserID are passed through from the initiating request.
	LocationID string `json:"location_id,omitempty"`
	UserID     string `json:"user_id,omitempty"`

	// RedirectAfter is where the frontend wants to land after login.
	RedirectAfter string `json:"redirect_after,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// OAuthStateStore manages OAuth flow state.
// States are single-use and expire after a short period.
type OAuthStateStore interface {
	// Save stores a new OAuth state.
	Save(ctx context.Context, state *OAuthState) error

	// GetAndDelete atomically retrieves and deletes the state.
	// Returns nil, nil if the state doesn't exist or has expired.
	GetAndDelete(ctx context.Context, state string) (*OAuthState, error)

	// Cleanup removes expired states.
	Cleanup(ctx context.Context) error
}
