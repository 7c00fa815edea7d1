package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/ghl-bridge/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.OAuthStateStore = (*OAuthStateStore)(nil)

const oauthStatePrefix = KeyPrefix + "oauth_state:"

// OAuthStateStore keeps pending OAuth states as JSON values whose Redis TTL
// matches the state's expiry.
type OAuthStateStore struct {
	client redis.UniversalClient
}

// NewOAuthStateStore creates a new Redis-backed OAuthStateStore
func NewOAuthStateStore(client redis.UniversalClient) *OAuthStateStore {
	return &OAuthStateStore{client: client}
}

// Save stores a state until its ExpiresAt.
func (s *OAuthStateStore) Save(ctx context.Context, state *driven.OAuthState) error {
	ttl := time.Until(state.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal oauth state: %w", err)
	}

	if err := s.client.Set(ctx, oauthStatePrefix+state.State, data, ttl).Err(); err != nil {
		return fmt.Errorf("save oauth state: %w", err)
	}
	return nil
}

// GetAndDelete atomically retrieves and deletes the state with GETDEL.
func (s *OAuthStateStore) GetAndDelete(ctx context.Context, state string) (*driven.OAuthState, error) {
	data, err := s.client.GetDel(ctx, oauthStatePrefix+state).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get oauth state: %w", err)
	}

	var st driven.OAuthState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("unmarshal oauth state: %w", err)
	}
	if !time.Now().Before(st.ExpiresAt) {
		return nil, nil
	}
	return &st, nil
}

// Cleanup is a no-op: Redis expires states on its own.
func (s *OAuthStateStore) Cleanup(ctx context.Context) error {
	return nil
}
