package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/swaggo/swag"

	"github.com/custodia-labs/ghl-bridge/internal/core/domain"
	"github.com/custodia-labs/ghl-bridge/internal/core/ports/driving"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error       string `json:"error" example:"invalid request body"`
	Description string `json:"error_description,omitempty" example:"The state parameter is invalid or expired"`

	// Reauthorize tells the frontend to send the user through the OAuth flow again.
	Reauthorize bool `json:"reauthorize,omitempty" example:"false"`

	// Upstream diagnostics of a failed token endpoint call.
	UpstreamStatus int    `json:"upstream_status,omitempty" example:"400"`
	UpstreamBody   string `json:"upstream_body,omitempty" example:"{\"error\":\"invalid_grant\"}"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// TokenResponse carries a currently usable access token.
// @Description Usable GHL access token for an installation
type TokenResponse struct {
	InstallationID string    `json:"installation_id" example:"inst_01HQ3K4N5M6P7Q8R9S0T1V2W3X"`
	AccessToken    string    `json:"access_token"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// MeResponse describes the authenticated caller.
// @Description Authenticated caller
type MeResponse struct {
	Auth         *domain.AuthContext         `json:"auth"`
	Installation *domain.InstallationSummary `json:"installation,omitempty"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Checks the installation store and Redis connections
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  ErrorResponse  "Dependency unavailable"
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			s.logger.Warn("readiness: store ping failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "installation store unavailable")
			return
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Ping(r.Context()); err != nil {
			s.logger.Warn("readiness: redis ping failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "redis unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

func (s *Server) handleSwaggerDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		writeError(w, http.StatusNotFound, "api documentation not registered")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(doc))
}

// OAuth endpoints

// handleOAuthAuthorize godoc
// @Summary      Start OAuth flow
// @Description  Builds the GHL consent URL and stores a single-use state
// @Tags         OAuth
// @Accept       json
// @Produce      json
// @Param        request  body      driving.AuthorizeRequest  false  "Correlated location and landing page"
// @Success      200      {object}  driving.AuthorizeResponse
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      500      {object}  ErrorResponse  "OAuth not configured"
// @Router       /oauth/authorize [post]
func (s *Server) handleOAuthAuthorize(w http.ResponseWriter, r *http.Request) {
	var req driving.AuthorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && r.ContentLength > 0 {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.oauthService.Authorize(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleOAuthAuthorizeRedirect godoc
// @Summary      Start OAuth flow (browser)
// @Description  Same as POST /oauth/authorize but redirects the browser to the consent page
// @Tags         OAuth
// @Param        location_id     query  string  false  "Correlated location ID"
// @Param        user_id         query  string  false  "Correlated user ID"
// @Param        redirect_after  query  string  false  "Frontend landing URL"
// @Success      302
// @Failure      500  {object}  ErrorResponse  "OAuth not configured"
// @Router       /oauth/authorize [get]
func (s *Server) handleOAuthAuthorizeRedirect(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp, err := s.oauthService.Authorize(r.Context(), driving.AuthorizeRequest{
		LocationID:    firstNonEmpty(q.Get("location_id"), q.Get("locationId")),
		UserID:        firstNonEmpty(q.Get("user_id"), q.Get("userId")),
		RedirectAfter: q.Get("redirect_after"),
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	http.Redirect(w, r, resp.AuthorizationURL, http.StatusFound)
}

// handleOAuthCallback godoc
// @Summary      OAuth callback
// @Description  Receives the GHL redirect, exchanges the code and stores the installation.
// @Description  Redirects to the frontend with installation_id, location_id and session, or answers JSON when no frontend is configured.
// @Tags         OAuth
// @Produce      json
// @Param        code         query     string  true   "Authorization code"
// @Param        state        query     string  false  "State issued by /oauth/authorize"
// @Param        location_id  query     string  false  "Correlated location ID"
// @Param        user_id      query     string  false  "Correlated user ID"
// @Success      200          {object}  driving.CallbackResponse
// @Success      302
// @Failure      400          {object}  ErrorResponse  "Missing code or invalid state"
// @Failure      500          {object}  ErrorResponse  "OAuth not configured"
// @Failure      502          {object}  ErrorResponse  "Token exchange failed"
// @Router       /oauth/callback [get]
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := driving.CallbackRequest{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		LocationID:       firstNonEmpty(q.Get("location_id"), q.Get("locationId")),
		UserID:           firstNonEmpty(q.Get("user_id"), q.Get("userId")),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}

	resp, err := s.oauthService.Callback(r.Context(), req)
	if err != nil {
		if target := s.redirectTarget(""); target != nil {
			_, body := classifyError(err)
			params := url.Values{"error": {body.Error}}
			if body.Description != "" {
				params.Set("error_description", body.Description)
			}
			http.Redirect(w, r, withQuery(target, params), http.StatusFound)
			return
		}
		s.writeServiceError(w, err)
		return
	}

	target := s.redirectTarget(resp.RedirectAfter)
	if target == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	params := url.Values{
		"installation_id": {resp.Installation.ID},
		"session":         {resp.SessionToken},
	}
	if resp.Installation.LocationID != "" {
		params.Set("location_id", resp.Installation.LocationID)
	}
	http.Redirect(w, r, withQuery(target, params), http.StatusFound)
}

// Session endpoint

// handleGetMe godoc
// @Summary      Current caller
// @Description  Describes the session or admin caller
// @Tags         Session
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  MeResponse
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Router       /me [get]
func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	resp := MeResponse{Auth: authCtx}

	if authCtx != nil && authCtx.InstallationID != "" {
		summary, err := s.installationService.Get(r.Context(), authCtx.InstallationID)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		resp.Installation = summary
	}

	writeJSON(w, http.StatusOK, resp)
}

// Installation endpoints

// handleListInstallations godoc
// @Summary      List installations
// @Description  Lists all installations without secrets, in insertion order (admin only)
// @Tags         Installations
// @Produce      json
// @Security     AdminKey
// @Success      200  {array}   domain.InstallationSummary
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      403  {object}  ErrorResponse  "Forbidden - admin only"
// @Router       /installations [get]
func (s *Server) handleListInstallations(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.installationService.List(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summaries)
}

// handleGetInstallation godoc
// @Summary      Get installation
// @Tags         Installations
// @Produce      json
// @Security     AdminKey
// @Param        id   path      string  true  "Installation ID"
// @Success      200  {object}  domain.InstallationSummary
// @Failure      404  {object}  ErrorResponse  "Installation not found"
// @Router       /installations/{id} [get]
func (s *Server) handleGetInstallation(w http.ResponseWriter, r *http.Request) {
	summary, err := s.installationService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// handleGetInstallationByLocation godoc
// @Summary      Get installation by location
// @Tags         Installations
// @Produce      json
// @Security     AdminKey
// @Param        locationId  path      string  true  "GHL location ID"
// @Success      200         {object}  domain.InstallationSummary
// @Failure      404         {object}  ErrorResponse  "No installation for location"
// @Router       /locations/{locationId}/installation [get]
func (s *Server) handleGetInstallationByLocation(w http.ResponseWriter, r *http.Request) {
	summary, err := s.installationService.GetByLocation(r.Context(), r.PathValue("locationId"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// handleRefreshInstallation godoc
// @Summary      Force token refresh
// @Description  Runs the refresh_token grant regardless of freshness (admin only)
// @Tags         Installations
// @Produce      json
// @Security     AdminKey
// @Param        id   path      string  true  "Installation ID"
// @Success      200  {object}  domain.InstallationSummary
// @Failure      401  {object}  ErrorResponse  "Installation must be re-authorized"
// @Failure      502  {object}  ErrorResponse  "Token endpoint rejected the refresh"
// @Router       /installations/{id}/refresh [post]
func (s *Server) handleRefreshInstallation(w http.ResponseWriter, r *http.Request) {
	inst, err := s.tokenService.Refresh(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, inst.ToSummary(time.Now()))
}

// handleGetInstallationToken godoc
// @Summary      Get a usable access token
// @Description  Returns the access token, refreshing first when it is inside the refresh window (admin only)
// @Tags         Installations
// @Produce      json
// @Security     AdminKey
// @Param        id   path      string  true  "Installation ID"
// @Success      200  {object}  TokenResponse
// @Failure      401  {object}  ErrorResponse  "Installation must be re-authorized"
// @Router       /installations/{id}/token [get]
func (s *Server) handleGetInstallationToken(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	token, err := s.tokenService.EnsureFresh(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	resp := TokenResponse{InstallationID: id, AccessToken: token}
	if summary, err := s.installationService.Get(r.Context(), id); err == nil {
		resp.ExpiresAt = summary.ExpiresAt
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, resp)
}

// handleGetAdminStats godoc
// @Summary      Installation statistics
// @Tags         Admin
// @Produce      json
// @Security     AdminKey
// @Success      200  {object}  driving.InstallationStats
// @Router       /admin/stats [get]
func (s *Server) handleGetAdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.installationService.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// Helper functions

// redirectTarget picks the post-login landing URL. A requested URL is only
// honoured on the configured frontend's origin.
func (s *Server) redirectTarget(requested string) *url.URL {
	if s.frontendURL == "" {
		return nil
	}
	base, err := url.Parse(s.frontendURL)
	if err != nil {
		return nil
	}
	if requested != "" {
		if u, err := url.Parse(requested); err == nil && u.Scheme == base.Scheme && u.Host == base.Host {
			return u
		}
	}
	return base
}

func withQuery(u *url.URL, params url.Values) string {
	out := *u
	q := out.Query()
	for k, vs := range params {
		q[k] = vs
	}
	out.RawQuery = q.Encode()
	return out.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// classifyError maps a service error to a status code and body.
func classifyError(err error) (int, ErrorResponse) {
	var oauthErr *driving.OAuthError
	if errors.As(err, &oauthErr) {
		return http.StatusBadRequest, ErrorResponse{Error: oauthErr.Code, Description: oauthErr.Description}
	}

	var providerErr *domain.ProviderError
	errors.As(err, &providerErr)
	withUpstream := func(resp ErrorResponse) ErrorResponse {
		if providerErr != nil {
			resp.UpstreamStatus = providerErr.StatusCode
			resp.UpstreamBody = providerErr.Body
		}
		return resp
	}

	switch {
	case errors.Is(err, domain.ErrMissingCode):
		return http.StatusBadRequest, ErrorResponse{Error: "missing_code", Description: err.Error()}
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Description: err.Error()}
	case errors.Is(err, domain.ErrOAuthNotConfigured):
		return http.StatusInternalServerError, ErrorResponse{Error: "oauth_not_configured", Description: err.Error()}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "not_found"}
	case errors.Is(err, domain.ErrNotRefreshable):
		return http.StatusUnauthorized, ErrorResponse{Error: "not_refreshable", Description: err.Error(), Reauthorize: true}
	case errors.Is(err, domain.ErrNotAuthenticated):
		return http.StatusUnauthorized, withUpstream(ErrorResponse{Error: "not_authenticated", Description: err.Error(), Reauthorize: true})
	case errors.Is(err, domain.ErrTokenExchangeFailed):
		return http.StatusBadGateway, withUpstream(ErrorResponse{Error: "token_exchange_failed", Description: domain.ErrTokenExchangeFailed.Error()})
	case errors.Is(err, domain.ErrRefreshFailed):
		// A rejected grant means the refresh token is dead; anything else is transient.
		if providerErr != nil && (providerErr.StatusCode == http.StatusBadRequest || providerErr.StatusCode == http.StatusUnauthorized) {
			return http.StatusUnauthorized, withUpstream(ErrorResponse{Error: "refresh_failed", Description: domain.ErrRefreshFailed.Error(), Reauthorize: true})
		}
		return http.StatusBadGateway, withUpstream(ErrorResponse{Error: "refresh_failed", Description: domain.ErrRefreshFailed.Error()})
	case errors.Is(err, domain.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, ErrorResponse{Error: "service_unavailable"}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "internal_error"}
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	status, body := classifyError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
