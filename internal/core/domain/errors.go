package domain

import (
	"errors"
	"fmt"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTokenExpired indicates the session token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the session token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrOAuthNotConfigured indicates the client credentials are missing
	ErrOAuthNotConfigured = errors.New("oauth not configured")

	// ErrMissingCode indicates the callback carried no authorization code
	ErrMissingCode = errors.New("missing authorization code")

	// ErrTokenExchangeFailed indicates the provider rejected the code exchange
	ErrTokenExchangeFailed = errors.New("token exchange failed")

	// ErrNotAuthenticated indicates no usable credential exists for the installation
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrNotRefreshable indicates the token expired and no refresh token is stored
	ErrNotRefreshable = errors.New("installation not refreshable")

	// ErrRefreshFailed indicates the provider rejected the refresh attempt
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrServiceUnavailable indicates the provider could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")
)

// ProviderError carries upstream diagnostics for a failed provider call.
// errors.Is matches both Kind and the transport error, if any.
type ProviderError struct {
	Kind       error
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%v: status %d: %s", e.Kind, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("%v: %s", e.Kind, e.Body)
	}
}

func (e *ProviderError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}
