package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/ghl-bridge/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.OAuthStateStore = (*OAuthStateStore)(nil)

// OAuthStateStore keeps pending OAuth states in memory.
type OAuthStateStore struct {
	mu     sync.Mutex
	states map[string]driven.OAuthState
	now    func() time.Time
}

// NewOAuthStateStore creates an empty OAuthStateStore.
func NewOAuthStateStore() *OAuthStateStore {
	return &OAuthStateStore{
		states: make(map[string]driven.OAuthState),
		now:    time.Now,
	}
}

// Save stores a new OAuth state.
func (s *OAuthStateStore) Save(ctx context.Context, state *driven.OAuthState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.State] = *state
	return nil
}

// GetAndDelete retrieves and removes a state.
// Returns nil, nil if the state doesn't exist or has expired.
func (s *OAuthStateStore) GetAndDelete(ctx context.Context, state string) (*driven.OAuthState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[state]
	if !ok {
		return nil, nil
	}
	delete(s.states, state)

	if !s.now().Before(st.ExpiresAt) {
		return nil, nil
	}
	return &st, nil
}

// Cleanup removes expired states.
func (s *OAuthStateStore) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, st := range s.states {
		if !now.Before(st.ExpiresAt) {
			delete(s.states, key)
		}
	}
	return nil
}
