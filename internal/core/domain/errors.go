package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoRefreshToken is returned when a refresh is requested without a stored refresh token
	ErrNoRefreshToken = errors.New("no refresh token available")

	// ErrEmptyCsrfToken is returned when the CSRF endpoint answers without a token
	ErrEmptyCsrfToken = errors.New("csrf endpoint returned an empty token")

	// ErrEmptyAccessToken is returned when the refresh endpoint answers without an access token
	ErrEmptyAccessToken = errors.New("refresh endpoint returned an empty access token")

	// ErrSessionClosed is returned by operations on a session that was torn down
	ErrSessionClosed = errors.New("session closed")
)

// UnauthorizedError means the request was rejected with 401 and could not be
// recovered by a refresh, either because retry was disabled or the refresh failed.
type UnauthorizedError struct {
	Method string
	Path   string
	Cause  error
}

func (e *UnauthorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("unauthorized: %s %s: %v", e.Method, e.Path, e.Cause)
	}
	return fmt.Sprintf("unauthorized: %s %s", e.Method, e.Path)
}

func (e *UnauthorizedError) Unwrap() error { return e.Cause }

// TimeoutError means no response arrived within the per-request budget
type TimeoutError struct {
	Method  string
	Path    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request timed out after %s: %s %s", e.Timeout, e.Method, e.Path)
}

// PlanLimitExceededError is returned for 429 responses
type PlanLimitExceededError struct {
	Message    string
	UpgradeURL string
}

func (e *PlanLimitExceededError) Error() string {
	if e.Message == "" {
		return "plan limit exceeded"
	}
	return e.Message
}

// ForbiddenError is returned for 403 responses
type ForbiddenError struct {
	Message string
	Reason  string
}

func (e *ForbiddenError) Error() string {
	if e.Message == "" {
		return "insufficient permissions"
	}
	return e.Message
}

// CsrfFetchError is returned when a CSRF token could not be obtained.
// StatusCode is zero for transport failures.
type CsrfFetchError struct {
	StatusCode int
	Cause      error
}

func (e *CsrfFetchError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Cause != nil:
		return fmt.Sprintf("csrf token fetch failed with status %d: %v", e.StatusCode, e.Cause)
	case e.StatusCode != 0:
		return fmt.Sprintf("csrf token fetch failed with status %d", e.StatusCode)
	case e.Cause != nil:
		return fmt.Sprintf("csrf token fetch failed: %v", e.Cause)
	}
	return "csrf token fetch failed"
}

func (e *CsrfFetchError) Unwrap() error { return e.Cause }

// RefreshFailedError is returned when the refresh endpoint call failed.
// The session has already been terminated when this error is observed.
type RefreshFailedError struct {
	StatusCode int
	Cause      error
}

func (e *RefreshFailedError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("token refresh failed with status %d", e.StatusCode)
	}
	if e.Cause != nil {
		return fmt.Sprintf("token refresh failed: %v", e.Cause)
	}
	return "token refresh failed"
}

func (e *RefreshFailedError) Unwrap() error { return e.Cause }

// RequestFailedError is the generic failure for any other non-2xx response
// or a transport error (StatusCode zero).
type RequestFailedError struct {
	StatusCode int
	Message    string
	Body       []byte
	Cause      error
}

func (e *RequestFailedError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "API request failed"
	}
	if e.StatusCode == 0 && e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *RequestFailedError) Unwrap() error { return e.Cause }

// IsSessionEnded reports whether err means the caller is no longer authenticated
func IsSessionEnded(err error) bool {
	var unauthorized *UnauthorizedError
	var refreshFailed *RefreshFailedError
	return errors.Is(err, ErrNoRefreshToken) ||
		errors.As(err, &unauthorized) ||
		errors.As(err, &refreshFailed)
}
