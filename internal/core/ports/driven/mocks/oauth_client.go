package mocks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/custodia-labs/ghl-bridge/internal/core/domain"
)

// MockOAuthClient is a mock implementation of OAuthClient that counts
// network-bound calls so tests can assert on them.
type MockOAuthClient struct {
	ExchangeCodeFn func(ctx context.Context, code, redirectURI string) (*domain.OAuthToken, error)
	RefreshTokenFn func(ctx context.Context, refreshToken string) (*domain.OAuthToken, error)

	exchangeCalls atomic.Int32
	refreshCalls  atomic.Int32

	mu            sync.Mutex
	refreshTokens []string
}

// NewMockOAuthClient creates a new MockOAuthClient
func NewMockOAuthClient() *MockOAuthClient {
	return &MockOAuthClient{}
}

func (m *MockOAuthClient) BuildAuthURL(provider *domain.AuthProvider, state string) string {
	return provider.AuthURL + "?client_id=" + provider.ClientID + "&state=" + state
}

func (m *MockOAuthClient) ExchangeCode(ctx context.Context, provider *domain.AuthProvider, code, redirectURI string) (*domain.OAuthToken, error) {
	m.exchangeCalls.Add(1)
	if m.ExchangeCodeFn != nil {
		return m.ExchangeCodeFn(ctx, code, redirectURI)
	}
	return nil, errors.New("not implemented")
}

func (m *MockOAuthClient) RefreshToken(ctx context.Context, provider *domain.AuthProvider, refreshToken string) (*domain.OAuthToken, error) {
	m.refreshCalls.Add(1)
	m.mu.Lock()
	m.refreshTokens = append(m.refreshTokens, refreshToken)
	m.mu.Unlock()

	if m.RefreshTokenFn != nil {
		return m.RefreshTokenFn(ctx, refreshToken)
	}
	return nil, errors.New("not implemented")
}

// ExchangeCalls returns the number of ExchangeCode calls.
func (m *MockOAuthClient) ExchangeCalls() int {
	return int(m.exchangeCalls.Load())
}

// RefreshCalls returns the number of RefreshToken calls.
func (m *MockOAuthClient) RefreshCalls() int {
	return int(m.refreshCalls.Load())
}

// RefreshTokensSeen returns the refresh tokens sent, in call order.
func (m *MockOAuthClient) RefreshTokensSeen() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.refreshTokens...)
}
