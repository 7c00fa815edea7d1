package mocks

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"

	"github.com/custodia-labs/ghl-bridge/internal/core/domain"
)

// ProviderCall records one forwarded request.
type ProviderCall struct {
	AccessToken string
	Method      string
	Path        string
	Query       url.Values
	Body        json.RawMessage
}

// MockProviderAPI is a mock implementation of ProviderAPI for testing
type MockProviderAPI struct {
	DoFn          func(ctx context.Context, accessToken, method, path string, query url.Values, body json.RawMessage) (*domain.UpstreamResponse, error)
	UploadFn      func(ctx context.Context, accessToken, path string, upload *domain.MediaUpload) (*domain.UpstreamResponse, error)
	GetLocationFn func(ctx context.Context, accessToken, locationID string) (*domain.LocationInfo, error)

	mu    sync.Mutex
	calls []ProviderCall
}

func (m *MockProviderAPI) Do(ctx context.Context, accessToken, method, path string, query url.Values, body json.RawMessage) (*domain.UpstreamResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, ProviderCall{AccessToken: accessToken, Method: method, Path: path, Query: query, Body: body})
	m.mu.Unlock()

	if m.DoFn != nil {
		return m.DoFn(ctx, accessToken, method, path, query, body)
	}
	return &domain.UpstreamResponse{StatusCode: 200, ContentType: "application/json", Body: json.RawMessage(`{}`)}, nil
}

func (m *MockProviderAPI) Upload(ctx context.Context, accessToken, path string, upload *domain.MediaUpload) (*domain.UpstreamResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, ProviderCall{AccessToken: accessToken, Method: "POST", Path: path})
	m.mu.Unlock()

	if m.UploadFn != nil {
		return m.UploadFn(ctx, accessToken, path, upload)
	}
	return &domain.UpstreamResponse{StatusCode: 201, ContentType: "application/json", Body: json.RawMessage(`{}`)}, nil
}

func (m *MockProviderAPI) GetLocation(ctx context.Context, accessToken, locationID string) (*domain.LocationInfo, error) {
	if m.GetLocationFn != nil {
		return m.GetLocationFn(ctx, accessToken, locationID)
	}
	return nil, errors.New("not implemented")
}

// Calls returns the recorded calls.
func (m *MockProviderAPI) Calls() []ProviderCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ProviderCall(nil), m.calls...)
}
