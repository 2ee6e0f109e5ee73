package services

import (
	"context"
	"net/http"
	"sync"
	"time"

	"ytd.app/adminctl/internal/core/domain"
	httpdomain "ytd.app/adminctl/internal/core/domain/http"
	"ytd.app/adminctl/internal/core/ports"
	httpports "ytd.app/adminctl/internal/core/ports/http"
	"ytd.app/adminctl/internal/infrastructure/auth"
	"ytd.app/adminctl/internal/infrastructure/csrf"
	httpinfra "ytd.app/adminctl/internal/infrastructure/http"
	"ytd.app/adminctl/internal/infrastructure/logging"
	"ytd.app/adminctl/internal/infrastructure/notify"
)

// SessionExpiredMessage is the info notification sent when a session ends
const SessionExpiredMessage = "Session expired, please sign in again."

// SessionConfig configures a Session
type SessionConfig struct {
	Endpoint httpdomain.BackendEndpoint

	// HTTPClient carries every backend call (default: logging transport over
	// http.DefaultTransport). Timeouts come from contexts, not from the client.
	HTTPClient *http.Client

	RequestTimeout time.Duration // per attempt (default: 15 seconds)
	RefreshTimeout time.Duration // per refresh call (default: 15 seconds)
	CsrfTimeout    time.Duration // per CSRF fetch (default: 10 seconds)

	Storage  ports.Storage // nil keeps credentials in memory only
	Notifier ports.Notifier
	Logger   ports.LoggingGateway

	// OnLogout runs after the session was terminated, once per termination
	OnLogout func(cause error)

	// Now overrides the clock of the CSRF cache, for tests
	Now func() time.Time
}

// Session owns the state of one authenticated session: credentials, the CSRF
// cache, the refresh coordinator and the request executor built over them.
// It is created at session start and torn down by Close.
type Session struct {
	credentials *auth.CredentialStore
	csrf        *csrf.Manager
	refresher   *AuthRefreshCoordinator
	client      *httpinfra.Client
	notifier    ports.Notifier
	logger      ports.LoggingGateway
	onLogout    func(cause error)

	mu     sync.Mutex
	closed bool
}

// NewSession wires a session from cfg
func NewSession(cfg SessionConfig) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NopLogger{}
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.Discard{}
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: httpinfra.NewLoggingRoundTripper(nil, logger)}
	}

	s := &Session{
		notifier: notifier,
		logger:   logger,
		onLogout: cfg.OnLogout,
	}
	s.credentials = auth.NewCredentialStore(cfg.Storage, logger)
	s.csrf = csrf.NewManager(csrf.Config{
		Endpoint:     cfg.Endpoint,
		HTTPClient:   httpClient,
		FetchTimeout: cfg.CsrfTimeout,
		Credentials:  s.credentials,
		Logger:       logger,
		Now:          cfg.Now,
	})
	s.refresher = NewAuthRefreshCoordinator(
		auth.NewHTTPTokenProvider(cfg.Endpoint, httpClient),
		s.credentials,
		s,
		logger,
		&RefreshConfig{Timeout: cfg.RefreshTimeout},
	)
	s.client = httpinfra.NewClient(httpinfra.ClientConfig{
		Endpoint:       cfg.Endpoint,
		Requester:      httpinfra.NewStdHttpRequester(httpClient),
		Credentials:    s.credentials,
		Refresher:      s.refresher,
		Csrf:           s.csrf,
		Notifier:       notifier,
		Logger:         logger,
		DefaultTimeout: cfg.RequestTimeout,
	})
	return s
}

// Terminate ends the session after an unrecoverable authentication failure.
// The refresh coordinator calls it once per failed refresh flight.
func (s *Session) Terminate(cause error) {
	s.credentials.Clear()
	s.csrf.Clear()
	fields := map[string]interface{}{}
	if cause != nil {
		fields["cause"] = cause.Error()
	}
	s.logger.Log(ports.LogLevelInfo, "session terminated", fields)
	s.notifier.Notify(SessionExpiredMessage, domain.SeverityInfo)
	if s.onLogout != nil {
		s.onLogout(cause)
	}
}

// Close tears the session down: credentials and the CSRF cache are cleared
// and every later request fails with domain.ErrSessionClosed. Close is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.credentials.Clear()
	s.csrf.Clear()
}

// Closed reports whether Close was called
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Credentials returns the session's credential store
func (s *Session) Credentials() *auth.CredentialStore { return s.credentials }

// Csrf returns the session's CSRF token manager
func (s *Session) Csrf() *csrf.Manager { return s.csrf }

// Refresher returns the session's refresh coordinator
func (s *Session) Refresher() *AuthRefreshCoordinator { return s.refresher }

// Do executes a request within the session
func (s *Session) Do(ctx context.Context, req httpdomain.RequestContext) (*httpdomain.Response, error) {
	if s.Closed() {
		return nil, domain.ErrSessionClosed
	}
	return s.client.Do(ctx, req)
}

// Get issues a GET request within the session
func (s *Session) Get(ctx context.Context, path string, opts ...httpports.RequestOption) (*httpdomain.Response, error) {
	if s.Closed() {
		return nil, domain.ErrSessionClosed
	}
	return s.client.Get(ctx, path, opts...)
}

// Post issues a POST request within the session
func (s *Session) Post(ctx context.Context, path string, body interface{}, opts ...httpports.RequestOption) (*httpdomain.Response, error) {
	if s.Closed() {
		return nil, domain.ErrSessionClosed
	}
	return s.client.Post(ctx, path, body, opts...)
}

// Put issues a PUT request within the session
func (s *Session) Put(ctx context.Context, path string, body interface{}, opts ...httpports.RequestOption) (*httpdomain.Response, error) {
	if s.Closed() {
		return nil, domain.ErrSessionClosed
	}
	return s.client.Put(ctx, path, body, opts...)
}

// Patch issues a PATCH request within the session
func (s *Session) Patch(ctx context.Context, path string, body interface{}, opts ...httpports.RequestOption) (*httpdomain.Response, error) {
	if s.Closed() {
		return nil, domain.ErrSessionClosed
	}
	return s.client.Patch(ctx, path, body, opts...)
}

// Delete issues a DELETE request within the session
func (s *Session) Delete(ctx context.Context, path string, opts ...httpports.RequestOption) (*httpdomain.Response, error) {
	if s.Closed() {
		return nil, domain.ErrSessionClosed
	}
	return s.client.Delete(ctx, path, opts...)
}

var (
	_ Terminator         = (*Session)(nil)
	_ httpports.Executor = (*Session)(nil)
)
