package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/ghl-bridge/internal/core/ports/driven"
)

// MockOAuthStateStore is a mock implementation of OAuthStateStore for testing
type MockOAuthStateStore struct {
	mu     sync.Mutex
	states map[string]*driven.OAuthState

	// Now decides expiry; defaults to time.Now.
	Now func() time.Time

	SaveFn func(state *driven.OAuthState) error
}

// NewMockOAuthStateStore creates a new MockOAuthStateStore
func NewMockOAuthStateStore() *MockOAuthStateStore {
	return &MockOAuthStateStore{
		states: make(map[string]*driven.OAuthState),
	}
}

func (m *MockOAuthStateStore) Save(ctx context.Context, state *driven.OAuthState) error {
	if m.SaveFn != nil {
		if err := m.SaveFn(state); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s := *state
	m.states[state.State] = &s
	return nil
}

func (m *MockOAuthStateStore) GetAndDelete(ctx context.Context, state string) (*driven.OAuthState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.states[state]
	if !ok {
		return nil, nil
	}
	delete(m.states, state)
	if !m.now().Before(s.ExpiresAt) {
		return nil, nil
	}
	return s, nil
}

func (m *MockOAuthStateStore) Cleanup(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, s := range m.states {
		if !now.Before(s.ExpiresAt) {
			delete(m.states, k)
		}
	}
	return nil
}

// Len returns the number of stored states.
func (m *MockOAuthStateStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.states)
}

func (m *MockOAuthStateStore) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}
