package driving

import (
	"context"

	"github.com/custodia-labs/ghl-bridge/internal/core/domain"
)

// OAuthService handles the GHL OAuth authorization flow.
type OAuthService interface {
	// Authorize starts an OAuth authorization flow.
	// Returns the consent URL to redirect the user to.
	Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResponse, error)

	// Callback handles the redirect back from GHL.
	// It validates state, exchanges the code and creates an installation.
	Callback(ctx context.Context, req CallbackRequest) (*CallbackResponse, error)

	// Exchange performs the authorization-code grant and stores the first
	// installation record.
	Exchange(ctx context.Context, req ExchangeRequest) (*domain.Installation, error)
}

// AuthorizeRequest represents a request to start an OAuth flow.
// @Description Request to start OAuth authorization flow
type AuthorizeRequest struct {
	// LocationID and UserID are correlated back on the callback.
	LocationID string `json:"location_id,omitempty" example:"ve9EPM428h8vShlRW1KT"`
	UserID     string `json:"user_id,omitempty" example:"usr_123"`

	// RedirectAfter overrides the frontend landing URL after login.
	RedirectAfter string `json:"redirect_after,omitempty" example:"https://directory.example.com/dashboard"`
}

// AuthorizeResponse contains the authorization URL and state.
// @Description Response containing the OAuth authorization URL
type AuthorizeResponse struct {
	AuthorizationURL string `json:"authorization_url" example:"https://marketplace.gohighlevel.com/oauth/chooselocation?client_id=..."`
	State            string `json:"state" example:"abc123xyz"`
	ExpiresAt        string `json:"expires_at" example:"2024-01-15T10:10:00Z"`
}

// CallbackRequest represents the OAuth callback from GHL.
// @Description OAuth callback parameters from provider redirect
type CallbackRequest struct {
	Code             string `json:"code" example:"abc123"`
	State            string `json:"state,omitempty" example:"abc123xyz"`
	LocationID       string `json:"location_id,omitempty"`
	UserID           string `json:"user_id,omitempty"`
	Error            string `json:"error,omitempty" example:"access_denied"`
	ErrorDescription string `json:"error_description,omitempty" example:"The user denied access"`
}

// CallbackResponse contains the result of the OAuth callback.
// @Description Response after successful OAuth authorization
type CallbackResponse struct {
	Installation *domain.InstallationSummary `json:"installation"`

	// SessionToken authenticates the frontend's proxied calls.
	SessionToken string `json:"session_token"`

	// RedirectAfter is the frontend URL to land on, if one was requested.
	RedirectAfter string `json:"redirect_after,omitempty"`
}

// ExchangeRequest is the input of the authorization-code grant.
type ExchangeRequest struct {
	Code        string
	RedirectURI string

	// Correlated values, used when the token response does not carry them.
	LocationID string
	UserID     string
}

// OAuthError represents an OAuth-specific error.
type OAuthError struct {
	Code        string `json:"error" example:"invalid_state"`
	Description string `json:"error_description" example:"The state parameter is invalid or expired"`
}

func (e *OAuthError) Error() string {
	if e.Description != "" {
		return e.Code + ": " + e.Description
	}
	return e.Code
}

// Common OAuth errors
var (
	ErrOAuthInvalidState = &OAuthError{Code: "invalid_state", Description: "The state parameter is invalid or expired"}
)
