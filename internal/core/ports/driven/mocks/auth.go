package mocks

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/ghl-bridge/internal/core/domain"
)

// MockAuthAdapter is a mock implementation of AuthAdapter.
// Tokens have the form "session:<installation>:<location>" and parse as
// valid for an hour.
type MockAuthAdapter struct {
	GenerateTokenFn func(claims *domain.SessionClaims) (string, error)
}

// NewMockAuthAdapter creates a new MockAuthAdapter
func NewMockAuthAdapter() *MockAuthAdapter {
	return &MockAuthAdapter{}
}

func (m *MockAuthAdapter) HashKey(key string) (string, error) {
	return "hashed:" + key, nil
}

func (m *MockAuthAdapter) VerifyKey(key, hash string) bool {
	return hash == "hashed:"+key
}

func (m *MockAuthAdapter) GenerateToken(claims *domain.SessionClaims) (string, error) {
	if m.GenerateTokenFn != nil {
		return m.GenerateTokenFn(claims)
	}
	return fmt.Sprintf("session:%s:%s", claims.InstallationID, claims.LocationID), nil
}

func (m *MockAuthAdapter) ParseToken(token string) (*domain.SessionClaims, error) {
	parts := strings.Split(token, ":")
	if len(parts) != 3 || parts[0] != "session" {
		return nil, errors.New("invalid token")
	}
	return &domain.SessionClaims{
		InstallationID: parts[1],
		LocationID:     parts[2],
		IssuedAt:       time.Now().Unix(),
		ExpiresAt:      time.Now().Add(time.Hour).Unix(),
	}, nil
}
