package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/ghl-bridge/internal/core/domain"
	"github.com/custodia-labs/ghl-bridge/internal/core/ports/driven"
	"github.com/custodia-labs/ghl-bridge/internal/core/ports/driving"
)

// Ensure oauthService implements OAuthService
var _ driving.OAuthService = (*oauthService)(nil)

// DefaultStateTTL is how long an authorization state stays valid.
const DefaultStateTTL = 10 * time.Minute

// OAuthServiceConfig holds configuration for the OAuth service.
type OAuthServiceConfig struct {
	// Provider holds the GHL client credentials and endpoints.
	Provider *domain.AuthProvider

	// OAuthClient talks to the token endpoint.
	OAuthClient driven.OAuthClient

	// OAuthStateStore manages OAuth flow state.
	OAuthStateStore driven.OAuthStateStore

	// InstallationStore persists installations.
	InstallationStore driven.InstallationStore

	// ProviderAPI enriches new installations with location details. Optional.
	ProviderAPI driven.ProviderAPI

	// AuthService issues the post-login session token.
	AuthService driving.AuthService

	// RequireState rejects callbacks without a state issued by Authorize.
	// Marketplace-initiated installs carry no such state.
	RequireState bool

	StateTTL time.Duration
	Logger   *slog.Logger
	Now      func() time.Time
}

// oauthService implements the OAuthService interface.
type oauthService struct {
	provider          *domain.AuthProvider
	oauthClient       driven.OAuthClient
	oauthStateStore   driven.OAuthStateStore
	installationStore driven.InstallationStore
	providerAPI       driven.ProviderAPI
	authService       driving.AuthService
	requireState      bool
	stateTTL          time.Duration
	logger            *slog.Logger
	now               func() time.Time
}

// NewOAuthService creates a new OAuth service.
func NewOAuthService(cfg OAuthServiceConfig) driving.OAuthService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	ttl := cfg.StateTTL
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}

	return &oauthService{
		provider:          cfg.Provider,
		oauthClient:       cfg.OAuthClient,
		oauthStateStore:   cfg.OAuthStateStore,
		installationStore: cfg.InstallationStore,
		providerAPI:       cfg.ProviderAPI,
		authService:       cfg.AuthService,
		requireState:      cfg.RequireState,
		stateTTL:          ttl,
		logger:            logger,
		now:               now,
	}
}

// Authorize starts an OAuth authorization flow.
// It stores state correlating the callback with the caller and returns the consent URL.
func (s *oauthService) Authorize(ctx context.Context, req driving.AuthorizeRequest) (*driving.AuthorizeResponse, error) {
	if !s.provider.IsConfigured() {
		return nil, domain.ErrOAuthNotConfigured
	}

	state, err := generateRandomString(32)
	if err != nil {
		return nil, fmt.Errorf("generate state: %w", err)
	}

	now := s.now()
	expiresAt := now.Add(s.stateTTL)
	oauthState := &driven.OAuthState{
		State:         state,
		LocationID:    req.LocationID,
		UserID:        req.UserID,
		RedirectAfter: req.RedirectAfter,
		CreatedAt:     now,
		ExpiresAt:     expiresAt,
	}

	if err := s.oauthStateStore.Save(ctx, oauthState); err != nil {
		return nil, fmt.Errorf("save oauth state: %w", err)
	}

	return &driving.AuthorizeResponse{
		AuthorizationURL: s.oauthClient.BuildAuthURL(s.provider, state),
		State:            state,
		ExpiresAt:        expiresAt.Format(time.RFC3339),
	}, nil
}

// Callback handles the redirect back from GHL.
func (s *oauthService) Callback(ctx context.Context, req driving.CallbackRequest) (*driving.CallbackResponse, error) {
	if req.Error != "" {
		return nil, &driving.OAuthError{
			Code:        req.Error,
			Description: req.ErrorDescription,
		}
	}

	locationID, userID := req.LocationID, req.UserID
	var redirectAfter string

	switch {
	case req.State != "":
		oauthState, err := s.oauthStateStore.GetAndDelete(ctx, req.State)
		if err != nil {
			return nil, fmt.Errorf("get oauth state: %w", err)
		}
		if oauthState == nil {
			if s.requireState {
				return nil, driving.ErrOAuthInvalidState
			}
			s.logger.Warn("callback state not found, continuing without correlation")
			break
		}
		locationID = firstNonEmpty(locationID, oauthState.LocationID)
		userID = firstNonEmpty(userID, oauthState.UserID)
		redirectAfter = oauthState.RedirectAfter
	case s.requireState:
		return nil, driving.ErrOAuthInvalidState
	}

	inst, err := s.Exchange(ctx, driving.ExchangeRequest{
		Code:        req.Code,
		RedirectURI: s.provider.RedirectURL,
		LocationID:  locationID,
		UserID:      userID,
	})
	if err != nil {
		return nil, err
	}

	s.enrich(ctx, inst)

	token, _, err := s.authService.IssueSession(ctx, inst)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}

	return &driving.CallbackResponse{
		Installation:  inst.ToSummary(s.now()),
		SessionToken:  token,
		RedirectAfter: redirectAfter,
	}, nil
}

// Exchange performs the authorization-code grant and stores the first
// installation record. A prior installation for the same location is marked
// superseded; it stays retrievable by ID.
func (s *oauthService) Exchange(ctx context.Context, req driving.ExchangeRequest) (*domain.Installation, error) {
	if req.Code == "" {
		return nil, domain.ErrMissingCode
	}
	if !s.provider.IsConfigured() {
		return nil, domain.ErrOAuthNotConfigured
	}

	redirectURI := firstNonEmpty(req.RedirectURI, s.provider.RedirectURL)

	token, err := s.oauthClient.ExchangeCode(ctx, s.provider, req.Code, redirectURI)
	if err != nil {
		var perr *domain.ProviderError
		if !errors.As(err, &perr) {
			err = &domain.ProviderError{Kind: domain.ErrTokenExchangeFailed, Err: err}
		}
		s.logger.Warn("token exchange failed", "error", err)
		return nil, err
	}
	if token.AccessToken == "" {
		return nil, &domain.ProviderError{Kind: domain.ErrTokenExchangeFailed, Body: "response missing access_token"}
	}

	expiresIn := token.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = domain.DefaultExpiresIn
	}
	userType := token.UserType
	if userType == "" {
		userType = s.provider.UserType
	}

	now := s.now()
	inst := &domain.Installation{
		ID:            generateInstallationIDAt(now.UTC()),
		AccessToken:   token.AccessToken,
		RefreshToken:  token.RefreshToken,
		ExpiresIn:     expiresIn,
		IssuedAt:      now,
		TokenType:     token.TokenType,
		Scope:         token.Scope,
		UserType:      userType,
		LocationID:    firstNonEmpty(token.LocationID, req.LocationID),
		UserID:        firstNonEmpty(token.UserID, req.UserID),
		CompanyID:     token.CompanyID,
		Authenticated: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	created, supersededID, err := s.installationStore.Create(ctx, inst)
	if err != nil {
		return nil, fmt.Errorf("create installation: %w", err)
	}
	if supersededID != "" {
		s.logger.Info("installation superseded",
			"installation_id", supersededID,
			"superseded_by", created.ID,
			"location_id", created.LocationID,
		)
	}

	s.logger.Info("installation created",
		"installation_id", created.ID,
		"location_id", created.LocationID,
		"user_type", created.UserType,
		"refreshable", created.CanRefresh(),
	)
	return created, nil
}

// enrich fills in the company of a location-scoped installation.
// Failures are logged; the installation is usable without it.
func (s *oauthService) enrich(ctx context.Context, inst *domain.Installation) {
	if s.providerAPI == nil || inst.LocationID == "" || inst.CompanyID != "" {
		return
	}

	info, err := s.providerAPI.GetLocation(ctx, inst.AccessToken, inst.LocationID)
	if err != nil {
		s.logger.Warn("fetch location details",
			"installation_id", inst.ID,
			"location_id", inst.LocationID,
			"error", err,
		)
		return
	}
	if info.CompanyID == "" {
		return
	}

	if _, err := s.installationStore.SetLocation(ctx, inst.ID, inst.LocationID, info.CompanyID); err != nil {
		s.logger.Warn("store location details", "installation_id", inst.ID, "error", err)
		return
	}
	inst.CompanyID = info.CompanyID
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
