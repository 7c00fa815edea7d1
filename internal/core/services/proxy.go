package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/custodia-labs/ghl-bridge/internal/core/domain"
	"github.com/custodia-labs/ghl-bridge/internal/core/ports/driven"
	"github.com/custodia-labs/ghl-bridge/internal/core/ports/driving"
)

// Ensure proxyService implements ProxyService
var _ driving.ProxyService = (*proxyService)(nil)

// ProxyServiceConfig holds configuration for the proxy service.
type ProxyServiceConfig struct {
	InstallationStore driven.InstallationStore
	TokenService      driving.TokenService
	ProviderAPI       driven.ProviderAPI
	Logger            *slog.Logger
}

// proxyService forwards frontend calls to GHL with a fresh access token.
type proxyService struct {
	installationStore driven.InstallationStore
	tokenService      driving.TokenService
	providerAPI       driven.ProviderAPI
	logger            *slog.Logger
}

// NewProxyService creates a new proxy service.
func NewProxyService(cfg ProxyServiceConfig) driving.ProxyService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &proxyService{
		installationStore: cfg.InstallationStore,
		tokenService:      cfg.TokenService,
		providerAPI:       cfg.ProviderAPI,
		logger:            logger,
	}
}

// credential is a resolved installation ready to call GHL.
type credential struct {
	installationID string
	locationID     string
	accessToken    string
}

// ListProducts lists the location's products. Query parameters are forwarded.
func (s *proxyService) ListProducts(ctx context.Context, target driving.Target, query url.Values) (*domain.UpstreamResponse, error) {
	cred, err := s.resolve(ctx, target)
	if err != nil {
		return nil, err
	}
	q := cloneQuery(query)
	q.Set("locationId", cred.locationID)
	return s.do(ctx, cred, http.MethodGet, "/products/", q, nil)
}

// GetProduct fetches one product.
func (s *proxyService) GetProduct(ctx context.Context, target driving.Target, productID string) (*domain.UpstreamResponse, error) {
	if productID == "" {
		return nil, domain.ErrInvalidInput
	}
	cred, err := s.resolve(ctx, target)
	if err != nil {
		return nil, err
	}
	q := url.Values{"locationId": {cred.locationID}}
	return s.do(ctx, cred, http.MethodGet, "/products/"+url.PathEscape(productID), q, nil)
}

// CreateProduct creates a product with locationId set to the target location.
func (s *proxyService) CreateProduct(ctx context.Context, target driving.Target, body json.RawMessage) (*domain.UpstreamResponse, error) {
	cred, err := s.resolve(ctx, target)
	if err != nil {
		return nil, err
	}
	payload, err := withLocation(body, cred.locationID)
	if err != nil {
		return nil, err
	}
	return s.do(ctx, cred, http.MethodPost, "/products/", nil, payload)
}

// UpdateProduct replaces a product. The body must be a JSON object.
func (s *proxyService) UpdateProduct(ctx context.Context, target driving.Target, productID string, body json.RawMessage) (*domain.UpstreamResponse, error) {
	if productID == "" {
		return nil, domain.ErrInvalidInput
	}
	cred, err := s.resolve(ctx, target)
	if err != nil {
		return nil, err
	}
	payload, err := withLocation(body, cred.locationID)
	if err != nil {
		return nil, err
	}
	return s.do(ctx, cred, http.MethodPut, "/products/"+url.PathEscape(productID), nil, payload)
}

// DeleteProduct deletes a product.
func (s *proxyService) DeleteProduct(ctx context.Context, target driving.Target, productID string) (*domain.UpstreamResponse, error) {
	if productID == "" {
		return nil, domain.ErrInvalidInput
	}
	cred, err := s.resolve(ctx, target)
	if err != nil {
		return nil, err
	}
	q := url.Values{"locationId": {cred.locationID}}
	return s.do(ctx, cred, http.MethodDelete, "/products/"+url.PathEscape(productID), q, nil)
}

// ListMedia lists files in the location's media library.
func (s *proxyService) ListMedia(ctx context.Context, target driving.Target, query url.Values) (*domain.UpstreamResponse, error) {
	cred, err := s.resolve(ctx, target)
	if err != nil {
		return nil, err
	}
	q := cloneQuery(query)
	q.Set("altId", cred.locationID)
	q.Set("altType", "location")
	if q.Get("type") == "" {
		q.Set("type", "file")
	}
	return s.do(ctx, cred, http.MethodGet, "/medias/files", q, nil)
}

// UploadMedia uploads a file to the media library as multipart form data.
func (s *proxyService) UploadMedia(ctx context.Context, target driving.Target, upload *domain.MediaUpload) (*domain.UpstreamResponse, error) {
	if upload == nil || len(upload.Content) == 0 {
		return nil, fmt.Errorf("%w: empty upload", domain.ErrInvalidInput)
	}
	cred, err := s.resolve(ctx, target)
	if err != nil {
		return nil, err
	}
	resp, err := s.providerAPI.Upload(ctx, cred.accessToken, "/medias/upload-file", upload)
	return s.checkUpstream(cred, resp, err)
}

// DeleteMedia deletes a media file.
func (s *proxyService) DeleteMedia(ctx context.Context, target driving.Target, mediaID string) (*domain.UpstreamResponse, error) {
	if mediaID == "" {
		return nil, domain.ErrInvalidInput
	}
	cred, err := s.resolve(ctx, target)
	if err != nil {
		return nil, err
	}
	q := url.Values{"altId": {cred.locationID}, "altType": {"location"}}
	return s.do(ctx, cred, http.MethodDelete, "/medias/"+url.PathEscape(mediaID), q, nil)
}

// GetLocation fetches the target location.
func (s *proxyService) GetLocation(ctx context.Context, target driving.Target) (*domain.UpstreamResponse, error) {
	cred, err := s.resolve(ctx, target)
	if err != nil {
		return nil, err
	}
	return s.do(ctx, cred, http.MethodGet, "/locations/"+url.PathEscape(cred.locationID), nil, nil)
}

// resolve finds the installation for a target and returns a fresh token.
func (s *proxyService) resolve(ctx context.Context, target driving.Target) (*credential, error) {
	var (
		inst *domain.Installation
		err  error
	)
	switch {
	case target.InstallationID != "":
		inst, err = s.installationStore.Get(ctx, target.InstallationID)
	case target.LocationID != "":
		inst, err = s.installationStore.GetByLocation(ctx, target.LocationID)
	default:
		return nil, fmt.Errorf("%w: installation or location required", domain.ErrInvalidInput)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotAuthenticated
		}
		return nil, err
	}

	if inst.LocationID == "" {
		return nil, fmt.Errorf("%w: installation %s has no location", domain.ErrInvalidInput, inst.ID)
	}

	token, err := s.tokenService.EnsureFresh(ctx, inst.ID)
	if err != nil {
		return nil, err
	}

	return &credential{
		installationID: inst.ID,
		locationID:     inst.LocationID,
		accessToken:    token,
	}, nil
}

func (s *proxyService) do(ctx context.Context, cred *credential, method, path string, query url.Values, body json.RawMessage) (*domain.UpstreamResponse, error) {
	resp, err := s.providerAPI.Do(ctx, cred.accessToken, method, path, query, body)
	return s.checkUpstream(cred, resp, err)
}

// checkUpstream turns an upstream 401 into a re-authentication prompt.
// Other statuses pass through unchanged.
func (s *proxyService) checkUpstream(cred *credential, resp *domain.UpstreamResponse, err error) (*domain.UpstreamResponse, error) {
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		s.logger.Warn("upstream rejected access token",
			"installation_id", cred.installationID,
			"location_id", cred.locationID,
		)
		return nil, &domain.ProviderError{
			Kind:       domain.ErrNotAuthenticated,
			StatusCode: resp.StatusCode,
			Body:       string(resp.Body),
		}
	}
	return resp, nil
}

// withLocation sets locationId on a JSON object body.
func withLocation(body json.RawMessage, locationID string) (json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, fmt.Errorf("%w: body must be a JSON object", domain.ErrInvalidInput)
		}
	}
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}
	loc, _ := json.Marshal(locationID)
	fields["locationId"] = loc
	return json.Marshal(fields)
}

func cloneQuery(q url.Values) url.Values {
	out := url.Values{}
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}
	return out
}
