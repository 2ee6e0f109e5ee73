package services

import (
	"context"
	"errors"
	"time"

	"ytd.app/adminctl/internal/core/domain"
	"ytd.app/adminctl/internal/core/flight"
	"ytd.app/adminctl/internal/core/ports"
)

// DefaultRefreshTimeout bounds a single refresh call
const DefaultRefreshTimeout = 15 * time.Second

// Terminator ends the session after an unrecoverable authentication failure
type Terminator interface {
	Terminate(cause error)
}

// TerminatorFunc adapts a function to the Terminator interface
type TerminatorFunc func(cause error)

func (f TerminatorFunc) Terminate(cause error) { f(cause) }

// RefreshConfig configures the refresh coordinator
type RefreshConfig struct {
	Timeout time.Duration // bound on one refresh call (default: 15 seconds)
}

// AuthRefreshCoordinator renews the access token. At most one refresh call is
// in flight; callers arriving meanwhile receive the same outcome.
type AuthRefreshCoordinator struct {
	tokenProvider ports.TokenProvider
	credentials   ports.CredentialStore
	terminator    Terminator
	logger        ports.LoggingGateway
	timeout       time.Duration

	flight flight.Group[struct{}]
}

// NewAuthRefreshCoordinator creates a refresh coordinator
func NewAuthRefreshCoordinator(
	tokenProvider ports.TokenProvider,
	credentials ports.CredentialStore,
	terminator Terminator,
	logger ports.LoggingGateway,
	config *RefreshConfig,
) *AuthRefreshCoordinator {
	timeout := DefaultRefreshTimeout
	if config != nil && config.Timeout > 0 {
		timeout = config.Timeout
	}

	return &AuthRefreshCoordinator{
		tokenProvider: tokenProvider,
		credentials:   credentials,
		terminator:    terminator,
		logger:        logger,
		timeout:       timeout,
	}
}

// Refresh renews the access token. A nil error means new tokens were persisted.
// Any other result is terminal: credentials were cleared and the session was
// terminated once for the whole flight. ctx only bounds this caller's wait.
func (c *AuthRefreshCoordinator) Refresh(ctx context.Context) error {
	_, shared, err := c.flight.Do(ctx, func() (struct{}, error) {
		return struct{}{}, c.refresh()
	})
	if shared && err == nil {
		c.log(ports.LogLevelDebug, "joined in-flight token refresh", nil)
	}
	return err
}

// State returns the refresh flight state
func (c *AuthRefreshCoordinator) State() flight.State {
	return c.flight.State()
}

// Flights returns how many refresh flights were started
func (c *AuthRefreshCoordinator) Flights() uint64 {
	return c.flight.Started()
}

func (c *AuthRefreshCoordinator) refresh() error {
	refreshToken := c.credentials.Get().RefreshToken
	if refreshToken == "" {
		c.fail(domain.ErrNoRefreshToken)
		return domain.ErrNoRefreshToken
	}

	// Detached from every caller so one caller giving up cannot abort the shared call
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	start := time.Now()
	cred, err := c.tokenProvider.RefreshToken(ctx, refreshToken)
	if err != nil {
		var refreshErr *domain.RefreshFailedError
		if !errors.As(err, &refreshErr) {
			err = &domain.RefreshFailedError{Cause: err}
		}
		c.fail(err)
		return err
	}

	c.credentials.Persist(cred.AccessToken, cred.RefreshToken)
	c.log(ports.LogLevelInfo, "access token refreshed", map[string]interface{}{
		"rotated":  cred.RefreshToken != "",
		"duration": time.Since(start).String(),
	})
	return nil
}

func (c *AuthRefreshCoordinator) fail(cause error) {
	if c.logger != nil {
		c.logger.LogError(cause, "token refresh failed, ending session", nil)
	}
	c.credentials.Clear()
	if c.terminator != nil {
		c.terminator.Terminate(cause)
	}
}

func (c *AuthRefreshCoordinator) log(level ports.LogLevel, message string, fields map[string]interface{}) {
	if c.logger != nil {
		c.logger.Log(level, message, fields)
	}
}

var _ ports.Refresher = (*AuthRefreshCoordinator)(nil)
