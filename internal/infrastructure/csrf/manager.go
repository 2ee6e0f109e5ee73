package csrf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"ytd.app/adminctl/internal/core/domain"
	httpdomain "ytd.app/adminctl/internal/core/domain/http"
	"ytd.app/adminctl/internal/core/flight"
	"ytd.app/adminctl/internal/core/ports"
)

// DefaultFetchTimeout bounds a single token fetch
const DefaultFetchTimeout = 10 * time.Second

// Config configures a Manager
type Config struct {
	Endpoint     httpdomain.BackendEndpoint
	HTTPClient   *http.Client
	FetchTimeout time.Duration

	// Credentials, when set, supplies the bearer token sent with the fetch
	Credentials ports.CredentialStore
	Logger      ports.LoggingGateway

	// Now overrides the clock, for tests
	Now func() time.Time
}

// Manager caches the CSRF token and fetches a new one when it is missing or expired.
// Concurrent callers share one fetch.
type Manager struct {
	endpoint     httpdomain.BackendEndpoint
	client       *http.Client
	fetchTimeout time.Duration
	creds        ports.CredentialStore
	logger       ports.LoggingGateway
	now          func() time.Time

	mu     sync.RWMutex
	token  *domain.CsrfToken
	flight flight.Group[string]
}

// NewManager creates a CSRF token manager
func NewManager(cfg Config) *Manager {
	m := &Manager{
		endpoint:     cfg.Endpoint,
		client:       cfg.HTTPClient,
		fetchTimeout: cfg.FetchTimeout,
		creds:        cfg.Credentials,
		logger:       cfg.Logger,
		now:          cfg.Now,
	}
	if m.client == nil {
		m.client = http.DefaultClient
	}
	if m.fetchTimeout <= 0 {
		m.fetchTimeout = DefaultFetchTimeout
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// GetValidToken returns a token that is valid now, fetching one if needed.
// Failures are *domain.CsrfFetchError; ctx only bounds this caller's wait.
func (m *Manager) GetValidToken(ctx context.Context) (string, error) {
	if v := m.cached(); v != "" {
		return v, nil
	}

	v, _, err := m.flight.Do(ctx, func() (string, error) {
		// another flight may have filled the cache since the check above
		if v := m.cached(); v != "" {
			return v, nil
		}
		return m.fetch()
	})
	if err != nil {
		var fetchErr *domain.CsrfFetchError
		if errors.As(err, &fetchErr) {
			return "", err
		}
		return "", &domain.CsrfFetchError{Cause: err}
	}
	return v, nil
}

// Invalidate drops the cached token after the server rejected it
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = nil
}

// Clear drops the cached token at logout
func (m *Manager) Clear() {
	m.Invalidate()
}

// Token returns a copy of the cached token, or nil
func (m *Manager) Token() *domain.CsrfToken {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == nil {
		return nil
	}
	t := *m.token
	return &t
}

// Flights returns how many fetch flights were started
func (m *Manager) Flights() uint64 {
	return m.flight.Started()
}

func (m *Manager) cached() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token.ValidAt(m.now()) {
		return m.token.Value
	}
	return ""
}

func (m *Manager) fetch() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.endpoint.BaseURL+httpdomain.CsrfTokenPath, nil)
	if err != nil {
		return "", &domain.CsrfFetchError{Cause: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if m.endpoint.UserAgent != "" {
		req.Header.Set("User-Agent", m.endpoint.UserAgent)
	}
	if m.creds != nil {
		if access := m.creds.Get().AccessToken; access != "" {
			req.Header.Set("Authorization", "Bearer "+access)
		}
	}

	resp, err := m.client.Do(req)
	if err != nil {
		m.log(err)
		return "", &domain.CsrfFetchError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		fetchErr := &domain.CsrfFetchError{StatusCode: resp.StatusCode}
		m.log(fetchErr)
		return "", fetchErr
	}

	var body domain.CsrfTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", &domain.CsrfFetchError{StatusCode: resp.StatusCode, Cause: fmt.Errorf("failed to decode response: %w", err)}
	}

	token, err := body.ToCsrfToken()
	if err != nil {
		return "", &domain.CsrfFetchError{StatusCode: resp.StatusCode, Cause: err}
	}
	if !token.ValidAt(m.now()) {
		return "", &domain.CsrfFetchError{StatusCode: resp.StatusCode, Cause: fmt.Errorf("token already expired at %s", token.ExpiresAt.Format(time.RFC3339))}
	}

	m.mu.Lock()
	m.token = token
	m.mu.Unlock()

	if m.logger != nil {
		m.logger.Log(ports.LogLevelDebug, "csrf token fetched", map[string]interface{}{"expires_at": token.ExpiresAt.Format(time.RFC3339)})
	}
	return token.Value, nil
}

func (m *Manager) log(err error) {
	if m.logger != nil {
		m.logger.LogError(err, "csrf token fetch failed", nil)
	}
}

var _ ports.CsrfSource = (*Manager)(nil)
