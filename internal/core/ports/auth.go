package ports

import (
	"context"

	"ytd.app/adminctl/internal/core/domain"
)

// Storage is the persistent key/value store under the credential store
type Storage interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// CredentialStore holds the session tokens. Implementations never fail:
// backend errors degrade the store to in-memory operation.
type CredentialStore interface {
	// Get returns the current credential
	Get() domain.AccessCredential

	// Persist stores the non-empty tokens and leaves the others unchanged
	Persist(accessToken, refreshToken string)

	// Clear removes both tokens
	Clear()
}

// TokenProvider performs the refresh call against the backend
type TokenProvider interface {
	RefreshToken(ctx context.Context, refreshToken string) (domain.AccessCredential, error)
}

// Refresher renews the access token, collapsing concurrent calls
type Refresher interface {
	Refresh(ctx context.Context) error
}

// CsrfSource supplies a currently valid CSRF token
type CsrfSource interface {
	GetValidToken(ctx context.Context) (string, error)
	Invalidate()
	Clear()
}

// Notifier surfaces user-visible messages. Notify must not block.
type Notifier interface {
	Notify(message string, severity domain.Severity)
}
