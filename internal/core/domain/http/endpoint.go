package httpdomain

import "time"

// DefaultTimeout is the per-attempt budget used when a request sets none
const DefaultTimeout = 15 * time.Second

// BackendEndpoint describes the single admin backend targeted by the client.
type BackendEndpoint struct {
	BaseURL   string
	UserAgent string
}

// Paths of the authentication protocol endpoints, relative to BaseURL
const (
	RefreshPath   = "/auth/refresh"
	CsrfTokenPath = "/auth/csrf-token"
	LoginPath     = "/auth/login"
	LogoutPath    = "/auth/logout"
	MePath        = "/auth/me"
)
