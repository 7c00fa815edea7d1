package domain

// GHL defaults. The API version header is required on every API call.
const (
	DefaultAuthURL    = "https://marketplace.gohighlevel.com/oauth/chooselocation"
	DefaultTokenURL   = "https://services.leadconnectorhq.com/oauth/token"
	DefaultAPIBaseURL = "https://services.leadconnectorhq.com"
	DefaultAPIVersion = "2021-07-28"

	// DefaultExpiresIn is assumed when the token endpoint omits expires_in.
	DefaultExpiresIn = 86399
)

// AuthProvider holds OAuth configuration for GHL.
type AuthProvider struct {
	AuthURL      string   `json:"auth_url"`
	TokenURL     string   `json:"token_url"`
	Scopes       []string `json:"scopes"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"-"`
	RedirectURL  string   `json:"redirect_url"`
	UserType     UserType `json:"user_type,omitempty"`
}

// IsConfigured reports whether the client credentials are present.
func (p *AuthProvider) IsConfigured() bool {
	return p != nil && p.ClientID != "" && p.ClientSecret != ""
}

// OAuthToken is the token endpoint response.
type OAuthToken struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	TokenType    string   `json:"token_type,omitempty"`
	Scope        string   `json:"scope,omitempty"`
	ExpiresIn    int      `json:"expires_in,omitempty"`
	UserType     UserType `json:"userType,omitempty"`
	LocationID   string   `json:"locationId,omitempty"`
	CompanyID    string   `json:"companyId,omitempty"`
	UserID       string   `json:"userId,omitempty"`
}

// LocationInfo is the subset of the GHL location resource used for enrichment.
type LocationInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CompanyID string `json:"companyId"`
	Email     string `json:"email,omitempty"`
}
