package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/ghl-bridge/internal/core/ports/driven"
)

// Ensure OAuthStateStore implements the interface.
var _ driven.OAuthStateStore = (*OAuthStateStore)(nil)

// OAuthStateStore implements driven.OAuthStateStore using PostgreSQL.
type OAuthStateStore struct {
	db *DB
}

// NewOAuthStateStore creates a new PostgreSQL-backed OAuth state store.
func NewOAuthStateStore(db *DB) *OAuthStateStore {
	return &OAuthStateStore{db: db}
}

// Save stores a new OAuth state.
func (s *OAuthStateStore) Save(ctx context.Context, state *driven.OAuthState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ghl_oauth_states (state, location_id, user_id, redirect_after, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		state.State,
		state.LocationID,
		state.UserID,
		state.RedirectAfter,
		state.CreatedAt,
		state.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("save oauth state: %w", err)
	}
	return nil
}

// GetAndDelete atomically retrieves and deletes the state.
// DELETE ... RETURNING gives single-use semantics across instances.
func (s *OAuthStateStore) GetAndDelete(ctx context.Context, state string) (*driven.OAuthState, error) {
	var st driven.OAuthState
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM ghl_oauth_states
		WHERE state = $1 AND expires_at > NOW()
		RETURNING state, location_id, user_id, redirect_after, created_at, expires_at
	`, state).Scan(
		&st.State,
		&st.LocationID,
		&st.UserID,
		&st.RedirectAfter,
		&st.CreatedAt,
		&st.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get and delete oauth state: %w", err)
	}
	return &st, nil
}

// Cleanup removes expired states.
func (s *OAuthStateStore) Cleanup(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM ghl_oauth_states WHERE expires_at <= NOW()`); err != nil {
		return fmt.Errorf("cleanup oauth states: %w", err)
	}
	return nil
}
