package domain

import (
	"strings"
	"time"
)

// CsrfToken is a short-lived token required on state-changing requests
type CsrfToken struct {
	Value     string
	ExpiresAt time.Time
}

// ValidAt reports whether the token may be used at the given instant
func (t *CsrfToken) ValidAt(now time.Time) bool {
	if t == nil || t.Value == "" {
		return false
	}
	return now.Before(t.ExpiresAt)
}

// CsrfTokenResponse is the body returned by the CSRF token endpoint
type CsrfTokenResponse struct {
	CsrfToken string `json:"csrfToken"`
	ExpiresAt string `json:"expiresAt"`
}

// ToCsrfToken parses the response into a CsrfToken
func (r *CsrfTokenResponse) ToCsrfToken() (*CsrfToken, error) {
	if r.CsrfToken == "" {
		return nil, ErrEmptyCsrfToken
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, r.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &CsrfToken{Value: r.CsrfToken, ExpiresAt: expiresAt}, nil
}

// CsrfRejectedCode is the error code the backend sends in a 400 body when it
// rejects the X-CSRF-Token header.
const CsrfRejectedCode = "csrf_failed"

// RequiresCsrf reports whether the HTTP method changes server state
func RequiresCsrf(method string) bool {
	switch strings.ToUpper(method) {
	case "POST", "PUT", "PATCH", "DELETE":
		return true
	}
	return false
}
