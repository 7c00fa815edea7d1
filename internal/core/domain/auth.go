package domain

import "time"

// SessionClaims is the payload of the session token handed to the frontend
// after a completed OAuth callback.
type SessionClaims struct {
	InstallationID string `json:"installation_id"`
	LocationID     string `json:"location_id,omitempty"`
	IssuedAt       int64  `json:"iat"`
	ExpiresAt      int64  `json:"exp"`
}

// IsExpired checks if the session has expired
func (c *SessionClaims) IsExpired() bool {
	return time.Now().Unix() >= c.ExpiresAt
}

// AuthContext identifies the caller of a proxied request.
type AuthContext struct {
	InstallationID string `json:"installation_id,omitempty"`
	LocationID     string `json:"location_id,omitempty"`
	Admin          bool   `json:"admin"`
}

// IsAdmin checks if the caller authenticated with the admin key
func (a *AuthContext) IsAdmin() bool {
	return a != nil && a.Admin
}
