package services

import (
	"context"
	"errors"
	"time"

	"github.com/custodia-labs/ghl-bridge/internal/core/domain"
	"github.com/custodia-labs/ghl-bridge/internal/core/ports/driven"
	"github.com/custodia-labs/ghl-bridge/internal/core/ports/driving"
)

// Ensure authService implements AuthService
var _ driving.AuthService = (*authService)(nil)

// DefaultSessionTTL is the lifetime of a frontend session token.
const DefaultSessionTTL = 24 * time.Hour

// AuthServiceConfig holds configuration for the auth service.
type AuthServiceConfig struct {
	AuthAdapter driven.AuthAdapter

	// InstallationStore, when set, rejects sessions whose installation is gone.
	InstallationStore driven.InstallationStore

	SessionTTL time.Duration

	// AdminKeyHash is the bcrypt hash of the admin API key.
	// Empty disables the admin endpoints.
	AdminKeyHash string

	Now func() time.Time
}

// authService implements the AuthService interface
type authService struct {
	authAdapter       driven.AuthAdapter
	installationStore driven.InstallationStore
	sessionTTL        time.Duration
	adminKeyHash      string
	now               func() time.Time
}

// NewAuthService creates a new AuthService
func NewAuthService(cfg AuthServiceConfig) driving.AuthService {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &authService{
		authAdapter:       cfg.AuthAdapter,
		installationStore: cfg.InstallationStore,
		sessionTTL:        ttl,
		adminKeyHash:      cfg.AdminKeyHash,
		now:               now,
	}
}

// IssueSession creates a session token for an installation
func (s *authService) IssueSession(ctx context.Context, inst *domain.Installation) (string, time.Time, error) {
	if inst == nil || inst.ID == "" {
		return "", time.Time{}, domain.ErrInvalidInput
	}

	now := s.now()
	expiresAt := now.Add(s.sessionTTL)
	claims := &domain.SessionClaims{
		InstallationID: inst.ID,
		LocationID:     inst.LocationID,
		IssuedAt:       now.Unix(),
		ExpiresAt:      expiresAt.Unix(),
	}

	token, err := s.authAdapter.GenerateToken(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// ValidateSession validates a session token and returns the auth context
func (s *authService) ValidateSession(ctx context.Context, token string) (*domain.AuthContext, error) {
	if token == "" {
		return nil, domain.ErrTokenInvalid
	}

	claims, err := s.authAdapter.ParseToken(token)
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrTokenInvalid
	}

	if s.now().Unix() >= claims.ExpiresAt {
		return nil, domain.ErrTokenExpired
	}

	if s.installationStore != nil {
		if _, err := s.installationStore.Get(ctx, claims.InstallationID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.ErrTokenInvalid
			}
			return nil, err
		}
	}

	return &domain.AuthContext{
		InstallationID: claims.InstallationID,
		LocationID:     claims.LocationID,
	}, nil
}

// ValidateAdminKey checks the admin key against the configured hash
func (s *authService) ValidateAdminKey(ctx context.Context, key string) bool {
	if key == "" || s.adminKeyHash == "" {
		return false
	}
	return s.authAdapter.VerifyKey(key, s.adminKeyHash)
}
