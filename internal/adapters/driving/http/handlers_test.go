package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	_ "github.com/custodia-labs/ghl-bridge/docs"
	"github.com/custodia-labs/ghl-bridge/internal/core/domain"
	"github.com/custodia-labs/ghl-bridge/internal/core/ports/driving"
)

// Mock services for testing

type mockAuthService struct {
	validateSessionFn func(ctx context.Context, token string) (*domain.AuthContext, error)
	adminKey          string
}

func (m *mockAuthService) IssueSession(ctx context.Context, inst *domain.Installation) (string, time.Time, error) {
	return "session-" + inst.ID, time.Now().Add(time.Hour), nil
}

func (m *mockAuthService) ValidateSession(ctx context.Context, token string) (*domain.AuthContext, error) {
	if m.validateSessionFn != nil {
		return m.validateSessionFn(ctx, token)
	}
	if token == "session-inst_1" {
		return &domain.AuthContext{InstallationID: "inst_1", LocationID: "loc-1"}, nil
	}
	return nil, domain.ErrTokenInvalid
}

func (m *mockAuthService) ValidateAdminKey(ctx context.Context, key string) bool {
	return m.adminKey != "" && key == m.adminKey
}

type mockOAuthService struct {
	authorizeFn func(ctx context.Context, req driving.AuthorizeRequest) (*driving.AuthorizeResponse, error)
	callbackFn  func(ctx context.Context, req driving.CallbackRequest) (*driving.CallbackResponse, error)
}

func (m *mockOAuthService) Authorize(ctx context.Context, req driving.AuthorizeRequest) (*driving.AuthorizeResponse, error) {
	if m.authorizeFn != nil {
		return m.authorizeFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockOAuthService) Callback(ctx context.Context, req driving.CallbackRequest) (*driving.CallbackResponse, error) {
	if m.callbackFn != nil {
		return m.callbackFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockOAuthService) Exchange(ctx context.Context, req driving.ExchangeRequest) (*domain.Installation, error) {
	return nil, errors.New("not implemented")
}

type mockTokenService struct {
	ensureFreshFn func(ctx context.Context, id string) (string, error)
	refreshFn     func(ctx context.Context, id string) (*domain.Installation, error)
}

func (m *mockTokenService) EnsureFresh(ctx context.Context, id string) (string, error) {
	if m.ensureFreshFn != nil {
		return m.ensureFreshFn(ctx, id)
	}
	return "", errors.New("not implemented")
}

func (m *mockTokenService) EnsureFreshByLocation(ctx context.Context, locationID string) (string, error) {
	return "", errors.New("not implemented")
}

func (m *mockTokenService) Refresh(ctx context.Context, id string) (*domain.Installation, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, id)
	}
	return nil, errors.New("not implemented")
}

type mockInstallationService struct {
	summaries map[string]*domain.InstallationSummary
}

func (m *mockInstallationService) List(ctx context.Context) ([]*domain.InstallationSummary, error) {
	result := make([]*domain.InstallationSummary, 0, len(m.summaries))
	for _, s := range m.summaries {
		result = append(result, s)
	}
	return result, nil
}

func (m *mockInstallationService) Get(ctx context.Context, id string) (*domain.InstallationSummary, error) {
	if s, ok := m.summaries[id]; ok {
		return s, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockInstallationService) GetByLocation(ctx context.Context, locationID string) (*domain.InstallationSummary, error) {
	for _, s := range m.summaries {
		if s.LocationID == locationID {
			return s, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockInstallationService) Stats(ctx context.Context) (*driving.InstallationStats, error) {
	return &driving.InstallationStats{Total: len(m.summaries), Valid: len(m.summaries)}, nil
}

// mockProxyService records the target and arguments of each call.
type mockProxyService struct {
	lastTarget driving.Target
	lastQuery  url.Values
	lastBody   json.RawMessage
	lastUpload *domain.MediaUpload
	lastPath   string
	resp       *domain.UpstreamResponse
	err        error
}

func (m *mockProxyService) answer(path string, t driving.Target) (*domain.UpstreamResponse, error) {
	m.lastPath = path
	m.lastTarget = t
	if m.err != nil {
		return nil, m.err
	}
	if m.resp != nil {
		return m.resp, nil
	}
	return &domain.UpstreamResponse{StatusCode: http.StatusOK, ContentType: "application/json", Body: json.RawMessage(`{"ok":true}`)}, nil
}

func (m *mockProxyService) ListProducts(ctx context.Context, t driving.Target, q url.Values) (*domain.UpstreamResponse, error) {
	m.lastQuery = q
	return m.answer("list-products", t)
}

func (m *mockProxyService) GetProduct(ctx context.Context, t driving.Target, id string) (*domain.UpstreamResponse, error) {
	return m.answer("get-product:"+id, t)
}

func (m *mockProxyService) CreateProduct(ctx context.Context, t driving.Target, body json.RawMessage) (*domain.UpstreamResponse, error) {
	m.lastBody = body
	return m.answer("create-product", t)
}

func (m *mockProxyService) UpdateProduct(ctx context.Context, t driving.Target, id string, body json.RawMessage) (*domain.UpstreamResponse, error) {
	m.lastBody = body
	return m.answer("update-product:"+id, t)
}

func (m *mockProxyService) DeleteProduct(ctx context.Context, t driving.Target, id string) (*domain.UpstreamResponse, error) {
	return m.answer("delete-product:"+id, t)
}

func (m *mockProxyService) ListMedia(ctx context.Context, t driving.Target, q url.Values) (*domain.UpstreamResponse, error) {
	m.lastQuery = q
	return m.answer("list-media", t)
}

func (m *mockProxyService) UploadMedia(ctx context.Context, t driving.Target, upload *domain.MediaUpload) (*domain.UpstreamResponse, error) {
	m.lastUpload = upload
	return m.answer("upload-media", t)
}

func (m *mockProxyService) DeleteMedia(ctx context.Context, t driving.Target, id string) (*domain.UpstreamResponse, error) {
	return m.answer("delete-media:"+id, t)
}

func (m *mockProxyService) GetLocation(ctx context.Context, t driving.Target) (*domain.UpstreamResponse, error) {
	return m.answer("get-location", t)
}

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(ctx context.Context) error {
	return m.err
}

// testServer bundles a server with its mocks.
type testServer struct {
	server *Server
	oauth  *mockOAuthService
	tokens *mockTokenService
	insts  *mockInstallationService
	proxy  *mockProxyService
	store  *mockPinger
}

func newTestServer(mutate ...func(*Config)) *testServer {
	cfg := DefaultConfig()
	cfg.Version = "test"
	for _, m := range mutate {
		m(&cfg)
	}

	ts := &testServer{
		oauth:  &mockOAuthService{},
		tokens: &mockTokenService{},
		insts: &mockInstallationService{summaries: map[string]*domain.InstallationSummary{
			"inst_1": {ID: "inst_1", LocationID: "loc-1", Status: domain.TokenStatusValid},
		}},
		proxy: &mockProxyService{},
		store: &mockPinger{},
	}
	ts.server = NewServer(cfg, &mockAuthService{adminKey: "admin-secret"},
		ts.oauth, ts.tokens, ts.insts, ts.proxy, ts.store, nil)
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v (%s)", err, rr.Body.String())
	}
	return resp
}

// Health tests

func TestHandleHealth(t *testing.T) {
	ts := newTestServer()

	rr := ts.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
}

func TestHandleReady(t *testing.T) {
	ts := newTestServer()

	rr := ts.do(httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	ts.store.err = errors.New("connection refused")
	rr = ts.do(httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rr.Code)
	}
}

func TestHandleVersion(t *testing.T) {
	ts := newTestServer()

	rr := ts.do(httptest.NewRequest(http.MethodGet, "/version", nil))

	var resp VersionResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.Version != "test" {
		t.Errorf("expected version test, got %s", resp.Version)
	}
}

func TestHandleSwaggerDoc(t *testing.T) {
	ts := newTestServer()

	rr := ts.do(httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &doc); err != nil {
		t.Fatalf("doc is not valid JSON: %v", err)
	}
	if doc["swagger"] != "2.0" {
		t.Errorf("expected swagger 2.0 doc, got %v", doc["swagger"])
	}
}

// OAuth tests

func TestHandleOAuthAuthorize(t *testing.T) {
	ts := newTestServer()
	var got driving.AuthorizeRequest
	ts.oauth.authorizeFn = func(ctx context.Context, req driving.AuthorizeRequest) (*driving.AuthorizeResponse, error) {
		got = req
		return &driving.AuthorizeResponse{AuthorizationURL: "https://marketplace.example/consent?state=s1", State: "s1"}, nil
	}

	body := bytes.NewBufferString(`{"location_id":"loc-1","user_id":"user-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/oauth/authorize", body)
	req.Header.Set("Content-Type", "application/json")
	rr := ts.do(req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got.LocationID != "loc-1" || got.UserID != "user-1" {
		t.Errorf("unexpected authorize request %+v", got)
	}
}

func TestHandleOAuthAuthorize_NotConfigured(t *testing.T) {
	ts := newTestServer()
	ts.oauth.authorizeFn = func(ctx context.Context, req driving.AuthorizeRequest) (*driving.AuthorizeResponse, error) {
		return nil, domain.ErrOAuthNotConfigured
	}

	rr := ts.do(httptest.NewRequest(http.MethodPost, "/api/v1/oauth/authorize", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Error != "oauth_not_configured" {
		t.Errorf("expected oauth_not_configured, got %s", resp.Error)
	}
}

func TestHandleOAuthAuthorizeRedirect(t *testing.T) {
	ts := newTestServer()
	ts.oauth.authorizeFn = func(ctx context.Context, req driving.AuthorizeRequest) (*driving.AuthorizeResponse, error) {
		if req.LocationID != "loc-9" {
			t.Errorf("expected location loc-9, got %s", req.LocationID)
		}
		return &driving.AuthorizeResponse{AuthorizationURL: "https://marketplace.example/consent"}, nil
	}

	rr := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/oauth/authorize?locationId=loc-9", nil))

	if rr.Code != http.StatusFound {
		t.Fatalf("expected status 302, got %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "https://marketplace.example/consent" {
		t.Errorf("unexpected redirect %s", loc)
	}
}

func callbackSuccess(ctx context.Context, req driving.CallbackRequest) (*driving.CallbackResponse, error) {
	return &driving.CallbackResponse{
		Installation: &domain.InstallationSummary{ID: "inst_1", LocationID: "loc-1"},
		SessionToken: "session-inst_1",
	}, nil
}

func TestHandleOAuthCallback_JSON(t *testing.T) {
	ts := newTestServer()
	var got driving.CallbackRequest
	ts.oauth.callbackFn = func(ctx context.Context, req driving.CallbackRequest) (*driving.CallbackResponse, error) {
		got = req
		return callbackSuccess(ctx, req)
	}

	rr := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/oauth/callback?code=c1&state=s1&location_id=loc-1", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if got.Code != "c1" || got.State != "s1" || got.LocationID != "loc-1" {
		t.Errorf("unexpected callback request %+v", got)
	}
	var resp driving.CallbackResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.SessionToken != "session-inst_1" {
		t.Errorf("expected session token, got %q", resp.SessionToken)
	}
}

func TestHandleOAuthCallback_RedirectsToFrontend(t *testing.T) {
	ts := newTestServer(func(c *Config) { c.FrontendURL = "https://directory.example.com/connected" })
	ts.oauth.callbackFn = callbackSuccess

	rr := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/oauth/callback?code=c1", nil))

	if rr.Code != http.StatusFound {
		t.Fatalf("expected status 302, got %d", rr.Code)
	}
	loc, err := url.Parse(rr.Header().Get("Location"))
	if err != nil {
		t.Fatalf("invalid redirect: %v", err)
	}
	if loc.Host != "directory.example.com" || loc.Path != "/connected" {
		t.Errorf("unexpected redirect target %s", loc)
	}
	q := loc.Query()
	if q.Get("installation_id") != "inst_1" || q.Get("location_id") != "loc-1" || q.Get("session") != "session-inst_1" {
		t.Errorf("unexpected redirect query %s", loc.RawQuery)
	}
}

func TestHandleOAuthCallback_RedirectAfter(t *testing.T) {
	tests := []struct {
		name      string
		requested string
		wantPath  string
	}{
		{"same origin", "https://directory.example.com/dashboard", "/dashboard"},
		{"foreign origin", "https://evil.example.net/steal", "/connected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(func(c *Config) { c.FrontendURL = "https://directory.example.com/connected" })
			ts.oauth.callbackFn = func(ctx context.Context, req driving.CallbackRequest) (*driving.CallbackResponse, error) {
				resp, _ := callbackSuccess(ctx, req)
				resp.RedirectAfter = tt.requested
				return resp, nil
			}

			rr := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/oauth/callback?code=c1", nil))

			loc, _ := url.Parse(rr.Header().Get("Location"))
			if loc.Host != "directory.example.com" || loc.Path != tt.wantPath {
				t.Errorf("expected redirect to %s, got %s", tt.wantPath, loc)
			}
		})
	}
}

func TestHandleOAuthCallback_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"missing code", domain.ErrMissingCode, http.StatusBadRequest, "missing_code"},
		{"invalid state", driving.ErrOAuthInvalidState, http.StatusBadRequest, "invalid_state"},
		{"provider denied", &driving.OAuthError{Code: "access_denied"}, http.StatusBadRequest, "access_denied"},
		{"not configured", domain.ErrOAuthNotConfigured, http.StatusInternalServerError, "oauth_not_configured"},
		{"exchange failed", &domain.ProviderError{Kind: domain.ErrTokenExchangeFailed, StatusCode: 400, Body: `{"error":"invalid_grant"}`},
			http.StatusBadGateway, "token_exchange_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer()
			ts.oauth.callbackFn = func(ctx context.Context, req driving.CallbackRequest) (*driving.CallbackResponse, error) {
				return nil, tt.err
			}

			rr := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/oauth/callback?code=c1", nil))

			if rr.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			if resp := decodeError(t, rr); resp.Error != tt.wantCode {
				t.Errorf("expected error %s, got %s", tt.wantCode, resp.Error)
			}
		})
	}
}

func TestHandleOAuthCallback_ExchangeFailureCarriesUpstream(t *testing.T) {
	ts := newTestServer()
	ts.oauth.callbackFn = func(ctx context.Context, req driving.CallbackRequest) (*driving.CallbackResponse, error) {
		return nil, &domain.ProviderError{Kind: domain.ErrTokenExchangeFailed, StatusCode: 401, Body: `{"error":"invalid_client"}`}
	}

	rr := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/oauth/callback?code=c1", nil))

	resp := decodeError(t, rr)
	if resp.UpstreamStatus != 401 || !strings.Contains(resp.UpstreamBody, "invalid_client") {
		t.Errorf("expected upstream diagnostics, got %+v", resp)
	}
}

func TestHandleOAuthCallback_ErrorRedirectsToFrontend(t *testing.T) {
	ts := newTestServer(func(c *Config) { c.FrontendURL = "https://directory.example.com/connected" })
	ts.oauth.callbackFn = func(ctx context.Context, req driving.CallbackRequest) (*driving.CallbackResponse, error) {
		return nil, domain.ErrMissingCode
	}

	rr := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/oauth/callback", nil))

	if rr.Code != http.StatusFound {
		t.Fatalf("expected status 302, got %d", rr.Code)
	}
	loc, _ := url.Parse(rr.Header().Get("Location"))
	if loc.Query().Get("error") != "missing_code" {
		t.Errorf("expected error=missing_code, got %s", loc.RawQuery)
	}
}

// Installation tests

func adminRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set(AdminKeyHeader, "admin-secret")
	return req
}

func TestHandleListInstallations(t *testing.T) {
	ts := newTestServer()

	rr := ts.do(adminRequest(http.MethodGet, "/api/v1/installations"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp []*domain.InstallationSummary
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if len(resp) != 1 || resp[0].ID != "inst_1" {
		t.Errorf("unexpected installations %+v", resp)
	}
}

func TestHandleListInstallations_RequiresAdmin(t *testing.T) {
	ts := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/installations", nil)
	req.Header.Set("Authorization", "Bearer session-inst_1")
	rr := ts.do(req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", rr.Code)
	}
}

func TestHandleGetInstallation(t *testing.T) {
	ts := newTestServer()

	rr := ts.do(adminRequest(http.MethodGet, "/api/v1/installations/inst_1"))
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	rr = ts.do(adminRequest(http.MethodGet, "/api/v1/installations/missing"))
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestHandleGetInstallationByLocation(t *testing.T) {
	ts := newTestServer()

	rr := ts.do(adminRequest(http.MethodGet, "/api/v1/locations/loc-1/installation"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp domain.InstallationSummary
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.ID != "inst_1" {
		t.Errorf("expected inst_1, got %s", resp.ID)
	}
}

func TestHandleRefreshInstallation(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantReauth bool
	}{
		{"success", nil, http.StatusOK, false},
		{"not refreshable", domain.ErrNotRefreshable, http.StatusUnauthorized, true},
		{"not authenticated", domain.ErrNotAuthenticated, http.StatusUnauthorized, true},
		{"grant rejected", &domain.ProviderError{Kind: domain.ErrRefreshFailed, StatusCode: 400, Body: "invalid_grant"}, http.StatusUnauthorized, true},
		{"upstream down", &domain.ProviderError{Kind: domain.ErrRefreshFailed, StatusCode: 503}, http.StatusBadGateway, false},
		{"unreachable", &domain.ProviderError{Kind: domain.ErrRefreshFailed, Err: domain.ErrServiceUnavailable}, http.StatusBadGateway, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer()
			ts.tokens.refreshFn = func(ctx context.Context, id string) (*domain.Installation, error) {
				if tt.err != nil {
					return nil, tt.err
				}
				return &domain.Installation{ID: id, AccessToken: "secret", ExpiresIn: 86399, IssuedAt: time.Now()}, nil
			}

			rr := ts.do(adminRequest(http.MethodPost, "/api/v1/installations/inst_1/refresh"))

			if rr.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			if strings.Contains(rr.Body.String(), "secret") {
				t.Error("response must not contain the access token")
			}
			if tt.err != nil {
				if resp := decodeError(t, rr); resp.Reauthorize != tt.wantReauth {
					t.Errorf("expected reauthorize=%t, got %t", tt.wantReauth, resp.Reauthorize)
				}
			}
		})
	}
}

func TestHandleGetInstallationToken(t *testing.T) {
	ts := newTestServer()
	ts.tokens.ensureFreshFn = func(ctx context.Context, id string) (string, error) {
		return "access-fresh", nil
	}

	rr := ts.do(adminRequest(http.MethodGet, "/api/v1/installations/inst_1/token"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if rr.Header().Get("Cache-Control") != "no-store" {
		t.Error("expected Cache-Control: no-store")
	}
	var resp TokenResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.AccessToken != "access-fresh" || resp.InstallationID != "inst_1" {
		t.Errorf("unexpected token response %+v", resp)
	}
}

func TestHandleGetAdminStats(t *testing.T) {
	ts := newTestServer()

	rr := ts.do(adminRequest(http.MethodGet, "/api/v1/admin/stats"))

	var resp driving.InstallationStats
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if rr.Code != http.StatusOK || resp.Total != 1 {
		t.Errorf("unexpected stats %d %+v", rr.Code, resp)
	}
}

func TestHandleGetMe(t *testing.T) {
	ts := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer session-inst_1")
	rr := ts.do(req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp MeResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.Installation == nil || resp.Installation.LocationID != "loc-1" {
		t.Errorf("unexpected me response %+v", resp)
	}
}

// Proxy tests

func sessionRequest(method, target string, body *bytes.Buffer) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, body)
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("Authorization", "Bearer session-inst_1")
	return req
}

func TestProxy_SessionIsPinnedToItsInstallation(t *testing.T) {
	ts := newTestServer()

	rr := ts.do(sessionRequest(http.MethodGet, "/api/v1/products?limit=5&installation_id=inst_other&locationId=loc-other", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if ts.proxy.lastTarget.InstallationID != "inst_1" {
		t.Errorf("expected session installation, got %+v", ts.proxy.lastTarget)
	}
	if ts.proxy.lastQuery.Get("limit") != "5" {
		t.Errorf("expected limit forwarded, got %v", ts.proxy.lastQuery)
	}
	if ts.proxy.lastQuery.Has("installation_id") || ts.proxy.lastQuery.Has("locationId") {
		t.Errorf("selectors must not be forwarded: %v", ts.proxy.lastQuery)
	}
}

func TestProxy_AdminSelectsLocation(t *testing.T) {
	ts := newTestServer()

	rr := ts.do(adminRequest(http.MethodGet, "/api/v1/location?location_id=loc-7"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if ts.proxy.lastTarget.LocationID != "loc-7" || ts.proxy.lastPath != "get-location" {
		t.Errorf("unexpected call %s %+v", ts.proxy.lastPath, ts.proxy.lastTarget)
	}
}

func TestProxy_AdminRequiresSelector(t *testing.T) {
	ts := newTestServer()

	rr := ts.do(adminRequest(http.MethodGet, "/api/v1/products"))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestProxy_Unauthenticated(t *testing.T) {
	ts := newTestServer()

	rr := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rr.Code)
	}
}

func TestProxy_ProductRoutes(t *testing.T) {
	tests := []struct {
		method   string
		path     string
		body     string
		wantCall string
	}{
		{http.MethodGet, "/api/v1/products/p1", "", "get-product:p1"},
		{http.MethodPost, "/api/v1/products", `{"name":"Listing"}`, "create-product"},
		{http.MethodPut, "/api/v1/products/p1", `{"name":"Renamed"}`, "update-product:p1"},
		{http.MethodDelete, "/api/v1/products/p1", "", "delete-product:p1"},
		{http.MethodGet, "/api/v1/media", "", "list-media"},
		{http.MethodDelete, "/api/v1/media/m1", "", "delete-media:m1"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			ts := newTestServer()
			var body *bytes.Buffer
			if tt.body != "" {
				body = bytes.NewBufferString(tt.body)
			}

			rr := ts.do(sessionRequest(tt.method, tt.path, body))

			if rr.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
			}
			if ts.proxy.lastPath != tt.wantCall {
				t.Errorf("expected call %s, got %s", tt.wantCall, ts.proxy.lastPath)
			}
			if tt.body != "" && string(ts.proxy.lastBody) != tt.body {
				t.Errorf("expected body %s, got %s", tt.body, ts.proxy.lastBody)
			}
		})
	}
}

func TestProxy_InvalidJSONBody(t *testing.T) {
	ts := newTestServer()

	rr := ts.do(sessionRequest(http.MethodPost, "/api/v1/products", bytes.NewBufferString(`{not json`)))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
	if ts.proxy.lastPath != "" {
		t.Error("proxy must not be called with an invalid body")
	}
}

func TestProxy_UpstreamResponsePassesThrough(t *testing.T) {
	ts := newTestServer()
	ts.proxy.resp = &domain.UpstreamResponse{
		StatusCode:  http.StatusUnprocessableEntity,
		ContentType: "application/json; charset=utf-8",
		Body:        json.RawMessage(`{"message":"name is required"}`),
	}

	rr := ts.do(sessionRequest(http.MethodPost, "/api/v1/products", bytes.NewBufferString(`{}`)))

	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected status 422, got %d", rr.Code)
	}
	if rr.Body.String() != `{"message":"name is required"}` {
		t.Errorf("expected upstream body, got %s", rr.Body.String())
	}
	if rr.Header().Get("Content-Type") != "application/json; charset=utf-8" {
		t.Errorf("expected upstream content type, got %s", rr.Header().Get("Content-Type"))
	}
}

func TestProxy_Upstream401AsksForReauthorization(t *testing.T) {
	ts := newTestServer()
	ts.proxy.err = &domain.ProviderError{Kind: domain.ErrNotAuthenticated, StatusCode: 401, Body: `{"message":"Invalid JWT"}`}

	rr := ts.do(sessionRequest(http.MethodGet, "/api/v1/products", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
	if resp := decodeError(t, rr); !resp.Reauthorize {
		t.Error("expected reauthorize flag")
	}
}

func TestProxy_UploadMedia(t *testing.T) {
	ts := newTestServer()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "storefront.png")
	_, _ = part.Write([]byte("png-bytes"))
	_ = mw.WriteField("name", "Storefront")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/media", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer session-inst_1")
	rr := ts.do(req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	up := ts.proxy.lastUpload
	if up == nil || up.FileName != "storefront.png" || string(up.Content) != "png-bytes" || up.Name != "Storefront" {
		t.Errorf("unexpected upload %+v", up)
	}
}

func TestProxy_UploadMedia_TooLarge(t *testing.T) {
	ts := newTestServer(func(c *Config) { c.MaxUploadBytes = 16 })

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "big.png")
	_, _ = part.Write(bytes.Repeat([]byte("x"), 1024))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/media", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer session-inst_1")
	rr := ts.do(req)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected status 413, got %d", rr.Code)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not found", domain.ErrNotFound, http.StatusNotFound},
		{"invalid input", domain.ErrInvalidInput, http.StatusBadRequest},
		{"service unavailable", domain.ErrServiceUnavailable, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if status, _ := classifyError(tt.err); status != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, status)
			}
		})
	}
}
