package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/ghl-bridge/internal/core/domain"
	"github.com/custodia-labs/ghl-bridge/internal/core/ports/driven"
	"github.com/custodia-labs/ghl-bridge/internal/core/ports/driving"
)

// Ensure tokenService implements TokenService
var _ driving.TokenService = (*tokenService)(nil)

const (
	defaultRefreshLockTTL  = 30 * time.Second
	defaultRefreshLockWait = 10 * time.Second
	refreshLockPoll        = 250 * time.Millisecond
)

// TokenServiceConfig holds configuration for the token service.
type TokenServiceConfig struct {
	// InstallationStore holds the token state.
	InstallationStore driven.InstallationStore

	// OAuthClient performs the refresh_token grant.
	OAuthClient driven.OAuthClient

	// Provider holds the client credentials.
	Provider *domain.AuthProvider

	// Lock serializes refreshes across instances sharing a persistent store.
	// Optional: in-process deduplication is always on.
	Lock driven.DistributedLock

	// RefreshThreshold is how long before expiry a token is refreshed.
	// Defaults to domain.DefaultRefreshThreshold.
	RefreshThreshold time.Duration

	// PinRefreshToken ignores refresh tokens returned by the refresh grant,
	// for providers that do not rotate them.
	PinRefreshToken bool

	// LockTTL and LockWait bound the cross-instance refresh lock.
	LockTTL  time.Duration
	LockWait time.Duration

	Logger *slog.Logger

	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// tokenService implements the TokenService interface.
// At most one refresh per installation is in flight in this process; later
// callers join the pending result.
type tokenService struct {
	installationStore driven.InstallationStore
	oauthClient       driven.OAuthClient
	provider          *domain.AuthProvider
	lock              driven.DistributedLock
	threshold         time.Duration
	pinRefreshToken   bool
	lockTTL           time.Duration
	lockWait          time.Duration
	logger            *slog.Logger
	now               func() time.Time

	inflight singleflight.Group
}

// NewTokenService creates a new token service.
func NewTokenService(cfg TokenServiceConfig) driving.TokenService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	threshold := cfg.RefreshThreshold
	if threshold <= 0 {
		threshold = domain.DefaultRefreshThreshold
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = defaultRefreshLockTTL
	}
	lockWait := cfg.LockWait
	if lockWait <= 0 {
		lockWait = defaultRefreshLockWait
	}

	return &tokenService{
		installationStore: cfg.InstallationStore,
		oauthClient:       cfg.OAuthClient,
		provider:          cfg.Provider,
		lock:              cfg.Lock,
		threshold:         threshold,
		pinRefreshToken:   cfg.PinRefreshToken,
		lockTTL:           lockTTL,
		lockWait:          lockWait,
		logger:            logger,
		now:               now,
	}
}

// EnsureFresh returns a usable access token, refreshing it first when it is
// within the refresh threshold of expiry.
func (s *tokenService) EnsureFresh(ctx context.Context, installationID string) (string, error) {
	inst, err := s.installationStore.Get(ctx, installationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", domain.ErrNotAuthenticated, installationID)
		}
		return "", fmt.Errorf("get installation: %w", err)
	}
	return s.freshToken(ctx, inst)
}

// EnsureFreshByLocation resolves the installation indexed for a location.
func (s *tokenService) EnsureFreshByLocation(ctx context.Context, locationID string) (string, error) {
	inst, err := s.installationStore.GetByLocation(ctx, locationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("%w: location %s", domain.ErrNotAuthenticated, locationID)
		}
		return "", fmt.Errorf("get installation by location: %w", err)
	}
	return s.freshToken(ctx, inst)
}

// Refresh performs the refresh_token grant for an installation.
func (s *tokenService) Refresh(ctx context.Context, installationID string) (*domain.Installation, error) {
	return s.refreshShared(ctx, installationID, true)
}

func (s *tokenService) freshToken(ctx context.Context, inst *domain.Installation) (string, error) {
	if inst.AccessToken == "" {
		return "", fmt.Errorf("%w: %s", domain.ErrNotAuthenticated, inst.ID)
	}

	if !inst.NeedsRefresh(s.now(), s.threshold) {
		return inst.AccessToken, nil
	}
	if !inst.CanRefresh() {
		return "", fmt.Errorf("%w: %s", domain.ErrNotRefreshable, inst.ID)
	}

	refreshed, err := s.refreshShared(ctx, inst.ID, false)
	if err != nil {
		return "", err
	}
	return refreshed.AccessToken, nil
}

// refreshShared joins or starts the single in-flight refresh for an installation.
// The flight runs detached from the caller's cancellation so joined callers
// still get a result; a caller whose context ends returns early.
func (s *tokenService) refreshShared(ctx context.Context, installationID string, force bool) (*domain.Installation, error) {
	ch := s.inflight.DoChan(installationID, func() (any, error) {
		return s.refresh(context.WithoutCancel(ctx), installationID, force)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.Installation).Clone(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *tokenService) refresh(ctx context.Context, installationID string, force bool) (*domain.Installation, error) {
	if s.lock != nil {
		current, release, err := s.acquireRefreshLock(ctx, installationID, force)
		if err != nil {
			return nil, err
		}
		if current != nil {
			return current, nil
		}
		defer release()
	}

	inst, err := s.installationStore.Get(ctx, installationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotAuthenticated, installationID)
		}
		return nil, fmt.Errorf("get installation: %w", err)
	}

	// Another flight may have completed between the caller's read and ours.
	if !force && inst.AccessToken != "" && !inst.NeedsRefresh(s.now(), s.threshold) {
		return inst, nil
	}

	if !inst.CanRefresh() {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotRefreshable, installationID)
	}
	if !s.provider.IsConfigured() {
		return nil, domain.ErrOAuthNotConfigured
	}

	token, err := s.oauthClient.RefreshToken(ctx, s.provider, inst.RefreshToken)
	if err != nil {
		var perr *domain.ProviderError
		if !errors.As(err, &perr) {
			err = &domain.ProviderError{Kind: domain.ErrRefreshFailed, Err: err}
		}
		s.logger.Warn("token refresh failed",
			"installation_id", installationID,
			"error", err,
		)
		return nil, err
	}
	if token.AccessToken == "" {
		return nil, &domain.ProviderError{Kind: domain.ErrRefreshFailed, Body: "response missing access_token"}
	}

	update := domain.TokenUpdate{
		AccessToken: token.AccessToken,
		ExpiresIn:   token.ExpiresIn,
		IssuedAt:    s.now(),
		TokenType:   token.TokenType,
		Scope:       token.Scope,
	}
	if !s.pinRefreshToken {
		update.RefreshToken = token.RefreshToken
	}

	updated, err := s.installationStore.UpdateTokens(ctx, installationID, update)
	if err != nil {
		return nil, fmt.Errorf("update tokens: %w", err)
	}

	s.logger.Info("token refreshed",
		"installation_id", installationID,
		"location_id", updated.LocationID,
		"expires_in", updated.ExpiresIn,
		"rotated", update.RefreshToken != "",
	)
	return updated, nil
}

// acquireRefreshLock takes the cross-instance refresh lock. While another
// instance holds it, the store is polled; if the record becomes fresh in the
// meantime it is returned instead and no refresh is needed.
func (s *tokenService) acquireRefreshLock(ctx context.Context, installationID string, force bool) (*domain.Installation, func(), error) {
	name := "refresh:" + installationID
	deadline := time.Now().Add(s.lockWait)

	var seen time.Time
	if inst, err := s.installationStore.Get(ctx, installationID); err == nil {
		seen = inst.IssuedAt
	}

	for {
		acquired, err := s.lock.Acquire(ctx, name, s.lockTTL)
		if err != nil {
			// Lock backend trouble must not block token access; fall back to
			// the in-process guard alone.
			s.logger.Warn("refresh lock unavailable", "installation_id", installationID, "error", err)
			return nil, func() {}, nil
		}
		if acquired {
			return nil, func() {
				if err := s.lock.Release(ctx, name); err != nil {
					s.logger.Warn("release refresh lock", "installation_id", installationID, "error", err)
				}
			}, nil
		}

		inst, err := s.installationStore.Get(ctx, installationID)
		if err == nil && inst.IssuedAt.After(seen) && (force || !inst.NeedsRefresh(s.now(), s.threshold)) {
			return inst, nil, nil
		}

		if !time.Now().Before(deadline) {
			return nil, nil, &domain.ProviderError{
				Kind: domain.ErrRefreshFailed,
				Body: "refresh lock held by another instance",
			}
		}

		select {
		case <-time.After(refreshLockPoll):
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
}
