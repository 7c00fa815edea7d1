package domain

import "time"

// DefaultRefreshThreshold is how long before expiry an access token is
// considered due for refresh.
const DefaultRefreshThreshold = 5 * time.Minute

// TokenStatus is the derived state of an installation's access token.
type TokenStatus string

const (
	TokenStatusValid   TokenStatus = "valid"
	TokenStatusExpired TokenStatus = "expired"
)

// UserType is the GHL token scope level requested at the token endpoint.
type UserType string

const (
	UserTypeLocation UserType = "Location"
	UserTypeCompany  UserType = "Company"
)

// Installation is one completed OAuth authorization against GHL.
// Token fields and IssuedAt are only ever rewritten together through
// InstallationStore.UpdateTokens.
type Installation struct {
	ID string `json:"id"`

	AccessToken  string `json:"-"`
	RefreshToken string `json:"-"`

	// ExpiresIn is the access token lifetime in seconds as declared by the provider.
	ExpiresIn int       `json:"expires_in"`
	IssuedAt  time.Time `json:"issued_at"`
	TokenType string    `json:"token_type,omitempty"`
	Scope     string    `json:"scope,omitempty"`
	UserType  UserType  `json:"user_type,omitempty"`

	// Upstream identifiers. LocationID may be empty at creation.
	LocationID string `json:"location_id,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	CompanyID  string `json:"company_id,omitempty"`

	Authenticated bool `json:"authenticated"`

	// SupersededBy is set when a later exchange took over this record's location.
	SupersededBy string     `json:"superseded_by,omitempty"`
	SupersededAt *time.Time `json:"superseded_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TokenUpdate carries the fields rewritten by a successful refresh.
// An empty RefreshToken keeps the stored one.
type TokenUpdate struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
	IssuedAt     time.Time
	TokenType    string
	Scope        string
}

// InstallationSummary is a safe view without secrets for listing.
type InstallationSummary struct {
	ID            string      `json:"id"`
	LocationID    string      `json:"location_id,omitempty"`
	UserID        string      `json:"user_id,omitempty"`
	CompanyID     string      `json:"company_id,omitempty"`
	UserType      UserType    `json:"user_type,omitempty"`
	Authenticated bool        `json:"authenticated"`
	Refreshable   bool        `json:"refreshable"`
	Status        TokenStatus `json:"status"`
	ExpiresAt     time.Time   `json:"expires_at"`
	IssuedAt      time.Time   `json:"issued_at"`
	SupersededBy  string      `json:"superseded_by,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// ExpiresAt returns the instant the current access token lapses.
func (i *Installation) ExpiresAt() time.Time {
	return i.IssuedAt.Add(time.Duration(i.ExpiresIn) * time.Second)
}

// Remaining returns the access token lifetime left at now. Negative once expired.
func (i *Installation) Remaining(now time.Time) time.Duration {
	return i.ExpiresAt().Sub(now)
}

// Status derives valid/expired from IssuedAt + ExpiresIn.
func (i *Installation) Status(now time.Time) TokenStatus {
	if i.AccessToken == "" || i.Remaining(now) <= 0 {
		return TokenStatusExpired
	}
	return TokenStatusValid
}

// NeedsRefresh reports whether the token is inside the refresh window.
func (i *Installation) NeedsRefresh(now time.Time, threshold time.Duration) bool {
	return i.Remaining(now) <= threshold
}

// CanRefresh reports whether a refresh token is available.
func (i *Installation) CanRefresh() bool {
	return i.RefreshToken != ""
}

// IsSuperseded reports whether a newer installation took over the location.
func (i *Installation) IsSuperseded() bool {
	return i.SupersededBy != ""
}

// ApplyTokens rewrites the token fields in place.
func (i *Installation) ApplyTokens(u TokenUpdate) {
	i.AccessToken = u.AccessToken
	i.IssuedAt = u.IssuedAt
	if u.ExpiresIn > 0 {
		i.ExpiresIn = u.ExpiresIn
	}
	if u.RefreshToken != "" {
		i.RefreshToken = u.RefreshToken
	}
	if u.TokenType != "" {
		i.TokenType = u.TokenType
	}
	if u.Scope != "" {
		i.Scope = u.Scope
	}
	i.UpdatedAt = u.IssuedAt
}

// Clone returns a copy safe to hand out of a store.
func (i *Installation) Clone() *Installation {
	c := *i
	if i.SupersededAt != nil {
		t := *i.SupersededAt
		c.SupersededAt = &t
	}
	return &c
}

// ToSummary converts Installation to InstallationSummary.
func (i *Installation) ToSummary(now time.Time) *InstallationSummary {
	return &InstallationSummary{
		ID:            i.ID,
		LocationID:    i.LocationID,
		UserID:        i.UserID,
		CompanyID:     i.CompanyID,
		UserType:      i.UserType,
		Authenticated: i.Authenticated,
		Refreshable:   i.CanRefresh(),
		Status:        i.Status(now),
		ExpiresAt:     i.ExpiresAt(),
		IssuedAt:      i.IssuedAt,
		SupersededBy:  i.SupersededBy,
		CreatedAt:     i.CreatedAt,
	}
}
