// Package ghl talks to the GoHighLevel OAuth token endpoint and REST API.
package ghl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/ghl-bridge/internal/core/domain"
	"github.com/custodia-labs/ghl-bridge/internal/core/ports/driven"
)

// Ensure OAuthClient implements the interface.
var _ driven.OAuthClient = (*OAuthClient)(nil)

// maxErrorBody bounds the upstream body kept on a ProviderError.
const maxErrorBody = 2048

// OAuthClient performs the GHL authorization-code and refresh-token grants.
// Each grant is a single form-encoded POST; nothing is retried here.
type OAuthClient struct {
	httpClient *http.Client
}

// NewOAuthClient creates a new GHL OAuth client. A nil httpClient gets a
// 30 second timeout.
func NewOAuthClient(httpClient *http.Client) *OAuthClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &OAuthClient{httpClient: httpClient}
}

// BuildAuthURL constructs the GHL consent URL.
func (c *OAuthClient) BuildAuthURL(provider *domain.AuthProvider, state string) string {
	params := url.Values{
		"response_type": {"code"},
		"client_id":     {provider.ClientID},
		"redirect_uri":  {provider.RedirectURL},
	}
	if len(provider.Scopes) > 0 {
		params.Set("scope", strings.Join(provider.Scopes, " "))
	}
	if state != "" {
		params.Set("state", state)
	}

	authURL := provider.AuthURL
	if authURL == "" {
		authURL = domain.DefaultAuthURL
	}
	return authURL + "?" + params.Encode()
}

// ExchangeCode exchanges an authorization code for tokens.
func (c *OAuthClient) ExchangeCode(ctx context.Context, provider *domain.AuthProvider, code, redirectURI string) (*domain.OAuthToken, error) {
	params := url.Values{
		"grant_type": {"authorization_code"},
		"code":       {code},
	}
	if redirectURI != "" {
		params.Set("redirect_uri", redirectURI)
	}
	return c.postToken(ctx, provider, params, domain.ErrTokenExchangeFailed)
}

// RefreshToken performs the refresh_token grant.
func (c *OAuthClient) RefreshToken(ctx context.Context, provider *domain.AuthProvider, refreshToken string) (*domain.OAuthToken, error) {
	params := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	return c.postToken(ctx, provider, params, domain.ErrRefreshFailed)
}

// tokenResponse is the token endpoint body, success or error.
type tokenResponse struct {
	domain.OAuthToken
	Error     string `json:"error"`
	ErrorDesc string `json:"error_description"`
}

func (c *OAuthClient) postToken(ctx context.Context, provider *domain.AuthProvider, params url.Values, kind error) (*domain.OAuthToken, error) {
	params.Set("client_id", provider.ClientID)
	params.Set("client_secret", provider.ClientSecret)
	if provider.UserType != "" {
		params.Set("user_type", string(provider.UserType))
	}

	tokenURL := provider.TokenURL
	if tokenURL == "" {
		tokenURL = domain.DefaultTokenURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.ProviderError{Kind: kind, Err: errors.Join(domain.ErrServiceUnavailable, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &domain.ProviderError{Kind: kind, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.ProviderError{Kind: kind, StatusCode: resp.StatusCode, Body: truncate(body)}
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, &domain.ProviderError{Kind: kind, StatusCode: resp.StatusCode, Body: truncate(body)}
	}
	if tokenResp.Error != "" {
		return nil, &domain.ProviderError{
			Kind:       kind,
			StatusCode: resp.StatusCode,
			Body:       tokenResp.Error + ": " + tokenResp.ErrorDesc,
		}
	}
	if tokenResp.AccessToken == "" {
		return nil, &domain.ProviderError{Kind: kind, StatusCode: resp.StatusCode, Body: "response missing access_token"}
	}

	token := tokenResp.OAuthToken
	return &token, nil
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "..."
	}
	return string(body)
}
