package domain

import (
	"time"
)

// AccessCredential is the pair of tokens held for the current session.
// An empty string means the token is absent.
type AccessCredential struct {
	AccessToken  string
	RefreshToken string
}

// HasAccessToken reports whether an access token is stored
func (c AccessCredential) HasAccessToken() bool {
	return c.AccessToken != ""
}

// HasRefreshToken reports whether a refresh token is stored
func (c AccessCredential) HasRefreshToken() bool {
	return c.RefreshToken != ""
}

// IsZero reports whether no token at all is stored
func (c AccessCredential) IsZero() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// TokenResponse is the body returned by the login and refresh endpoints.
// The backend has used both naming schemes, so both are accepted.
type TokenResponse struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Access       string `json:"access,omitempty"`
	Refresh      string `json:"refresh,omitempty"`
}

// ToCredential converts the response to an AccessCredential
func (r *TokenResponse) ToCredential() AccessCredential {
	cred := AccessCredential{AccessToken: r.AccessToken, RefreshToken: r.RefreshToken}
	if cred.AccessToken == "" {
		cred.AccessToken = r.Access
	}
	if cred.RefreshToken == "" {
		cred.RefreshToken = r.Refresh
	}
	return cred
}

// RefreshRequest is the body sent to the refresh endpoint
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenClaims is the subset of access token claims shown to operators.
// It is read without signature verification and must never gate authorization.
type TokenClaims struct {
	Subject   string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// IsExpired reports whether the token expiry has passed at the given instant
func (c TokenClaims) IsExpired(now time.Time) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(c.ExpiresAt)
}

// TimeUntilExpiry returns the duration until the token expires
func (c TokenClaims) TimeUntilExpiry(now time.Time) time.Duration {
	if c.ExpiresAt.IsZero() {
		return 0
	}
	return c.ExpiresAt.Sub(now)
}
