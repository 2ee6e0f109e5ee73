package auth

import (
	"context"
	"sync"
	"time"

	"ytd.app/adminctl/internal/core/domain"
	"ytd.app/adminctl/internal/core/ports"
)

// Storage keys, shared with the browser dashboard's local storage layout
const (
	AccessTokenKey  = "auth_token"
	RefreshTokenKey = "refresh_token"
	APIKeyKey       = "api_key"
)

const storageOpTimeout = 3 * time.Second

// CredentialStore keeps the session tokens in memory and mirrors them to a
// persistent backend. The first backend failure switches the store to
// memory-only operation for the rest of its life; callers never see an error.
type CredentialStore struct {
	backend ports.Storage
	logger  ports.LoggingGateway

	mu       sync.RWMutex
	cred     domain.AccessCredential
	apiKey   string
	degraded bool
}

// NewCredentialStore creates a store over backend and loads any persisted tokens.
// A nil backend gives a memory-only store.
func NewCredentialStore(backend ports.Storage, logger ports.LoggingGateway) *CredentialStore {
	s := &CredentialStore{backend: backend, logger: logger}
	if backend == nil {
		s.degraded = true
		return s
	}

	s.cred.AccessToken = s.load(AccessTokenKey)
	s.cred.RefreshToken = s.load(RefreshTokenKey)
	s.apiKey = s.load(APIKeyKey)
	return s
}

// Get returns the current credential
func (s *CredentialStore) Get() domain.AccessCredential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred
}

// Persist stores the non-empty tokens and leaves the others unchanged
func (s *CredentialStore) Persist(accessToken, refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if accessToken != "" {
		s.cred.AccessToken = accessToken
		s.write(AccessTokenKey, accessToken)
	}
	if refreshToken != "" {
		s.cred.RefreshToken = refreshToken
		s.write(RefreshTokenKey, refreshToken)
	}
}

// Clear removes both tokens
func (s *CredentialStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cred = domain.AccessCredential{}
	s.remove(AccessTokenKey)
	s.remove(RefreshTokenKey)
}

// APIKey returns the stored API key, if any
func (s *CredentialStore) APIKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.apiKey
}

// SetAPIKey stores an API key; an empty key removes it
func (s *CredentialStore) SetAPIKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.apiKey = key
	if key == "" {
		s.remove(APIKeyKey)
		return
	}
	s.write(APIKeyKey, key)
}

// Degraded reports whether the store stopped using its backend
func (s *CredentialStore) Degraded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.degraded
}

func (s *CredentialStore) load(key string) string {
	if s.degraded {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.Background(), storageOpTimeout)
	defer cancel()

	v, _, err := s.backend.Get(ctx, key)
	if err != nil {
		s.degrade(err, "load", key)
		return ""
	}
	return v
}

// write and remove must be called with s.mu held

func (s *CredentialStore) write(key, value string) {
	if s.degraded {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storageOpTimeout)
	defer cancel()

	if err := s.backend.Set(ctx, key, value); err != nil {
		s.degrade(err, "write", key)
	}
}

func (s *CredentialStore) remove(key string) {
	if s.degraded {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storageOpTimeout)
	defer cancel()

	if err := s.backend.Delete(ctx, key); err != nil {
		s.degrade(err, "delete", key)
	}
}

func (s *CredentialStore) degrade(err error, op, key string) {
	if s.degraded {
		return
	}
	s.degraded = true
	if s.logger != nil {
		s.logger.Log(ports.LogLevelWarn, "credential storage unavailable, keeping tokens in memory only", map[string]interface{}{
			"op":    op,
			"key":   key,
			"error": err.Error(),
		})
	}
}

var _ ports.CredentialStore = (*CredentialStore)(nil)
