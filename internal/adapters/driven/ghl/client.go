package ghl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/ghl-bridge/internal/core/domain"
	"github.com/custodia-labs/ghl-bridge/internal/core/ports/driven"
)

// Ensure APIClient implements the interface.
var _ driven.ProviderAPI = (*APIClient)(nil)

// APIConfig configures the GHL REST client.
type APIConfig struct {
	BaseURL string
	Version string

	// RateLimit is the sustained request rate in requests per second.
	// Zero disables client-side limiting.
	RateLimit float64
	Burst     int

	// Timeout bounds one HTTP attempt.
	Timeout time.Duration

	// LookupAttempts and LookupBackoff shape the retry of location lookups:
	// the nth retry waits n*LookupBackoff.
	LookupAttempts int
	LookupBackoff  time.Duration

	HTTPClient *http.Client
}

// DefaultAPIConfig returns the production GHL settings.
func DefaultAPIConfig() APIConfig {
	return APIConfig{
		BaseURL:        domain.DefaultAPIBaseURL,
		Version:        domain.DefaultAPIVersion,
		RateLimit:      10,
		Burst:          20,
		Timeout:        30 * time.Second,
		LookupAttempts: 3,
		LookupBackoff:  time.Second,
	}
}

// APIClient forwards authenticated calls to the GHL REST API.
type APIClient struct {
	baseURL        string
	version        string
	timeout        time.Duration
	lookupAttempts int
	lookupBackoff  time.Duration
	httpClient     *http.Client
	limiter        *rate.Limiter
}

// NewAPIClient creates a GHL API client.
func NewAPIClient(cfg APIConfig) *APIClient {
	defaults := DefaultAPIConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.LookupAttempts <= 0 {
		cfg.LookupAttempts = defaults.LookupAttempts
	}
	if cfg.LookupBackoff <= 0 {
		cfg.LookupBackoff = defaults.LookupBackoff
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &APIClient{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		version:        cfg.Version,
		timeout:        cfg.Timeout,
		lookupAttempts: cfg.LookupAttempts,
		lookupBackoff:  cfg.LookupBackoff,
		httpClient:     cfg.HTTPClient,
		limiter:        limiter,
	}
}

// Do sends a JSON request with the bearer token and returns the raw response.
// Non-2xx statuses are returned as responses, not errors.
func (c *APIClient) Do(ctx context.Context, accessToken, method, path string, query url.Values, body json.RawMessage) (*domain.UpstreamResponse, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := c.newRequest(ctx, accessToken, method, path, query, reader)
	if err != nil {
		return nil, err
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req)
}

// Upload sends a multipart file upload.
func (c *APIClient) Upload(ctx context.Context, accessToken, path string, upload *domain.MediaUpload) (*domain.UpstreamResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, upload.FileName))
	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(upload.Content); err != nil {
		return nil, fmt.Errorf("write file part: %w", err)
	}
	if upload.Name != "" {
		_ = mw.WriteField("name", upload.Name)
	}
	if upload.ParentID != "" {
		_ = mw.WriteField("parentId", upload.ParentID)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := c.newRequest(ctx, accessToken, http.MethodPost, path, nil, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.send(req)
}

// GetLocation fetches location details. Transport failures, 429 and 5xx
// are retried with linear backoff; each attempt has its own timeout.
func (c *APIClient) GetLocation(ctx context.Context, accessToken, locationID string) (*domain.LocationInfo, error) {
	var info *domain.LocationInfo

	backoff := retry.WithMaxRetries(uint64(c.lookupAttempts-1), linearBackoff(c.lookupBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.Do(attemptCtx, accessToken, http.MethodGet, "/locations/"+url.PathEscape(locationID), nil, nil)
		if err != nil {
			return retry.RetryableError(err)
		}

		switch {
		case resp.OK():
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return retry.RetryableError(&domain.ProviderError{
				Kind:       domain.ErrServiceUnavailable,
				StatusCode: resp.StatusCode,
				Body:       truncate(resp.Body),
			})
		case resp.StatusCode == http.StatusUnauthorized:
			return &domain.ProviderError{Kind: domain.ErrNotAuthenticated, StatusCode: resp.StatusCode, Body: truncate(resp.Body)}
		default:
			return &domain.ProviderError{Kind: domain.ErrInvalidInput, StatusCode: resp.StatusCode, Body: truncate(resp.Body)}
		}

		var envelope struct {
			Location domain.LocationInfo `json:"location"`
		}
		if err := json.Unmarshal(resp.Body, &envelope); err != nil {
			return fmt.Errorf("decode location: %w", err)
		}
		info = &envelope.Location
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (c *APIClient) newRequest(ctx context.Context, accessToken, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Version", c.version)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *APIClient) send(req *http.Request) (*domain.UpstreamResponse, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Join(domain.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, errors.Join(domain.ErrServiceUnavailable, fmt.Errorf("read response: %w", err))
	}

	return &domain.UpstreamResponse{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// linearBackoff waits base, 2*base, 3*base, ... between attempts.
func linearBackoff(base time.Duration) retry.Backoff {
	var attempt atomic.Int64
	return retry.BackoffFunc(func() (time.Duration, bool) {
		return time.Duration(attempt.Add(1)) * base, false
	})
}
