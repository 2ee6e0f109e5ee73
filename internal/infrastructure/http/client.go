package httpinfra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"ytd.app/adminctl/internal/core/domain"
	httpdomain "ytd.app/adminctl/internal/core/domain/http"
	"ytd.app/adminctl/internal/core/ports"
	httpports "ytd.app/adminctl/internal/core/ports/http"
)

// ClientConfig holds the collaborators of a Client
type ClientConfig struct {
	Endpoint    httpdomain.BackendEndpoint
	Requester   httpports.HttpRequester // nil means NewStdHttpRequester(nil)
	Credentials ports.CredentialStore
	Refresher   ports.Refresher
	Csrf        ports.CsrfSource // nil disables X-CSRF-Token
	Notifier    ports.Notifier
	Logger      ports.LoggingGateway

	// DefaultTimeout applies to requests that set no timeout (default: httpdomain.DefaultTimeout)
	DefaultTimeout time.Duration

	// NewRequestID generates the X-Request-ID of each call (default: uuid v4)
	NewRequestID func() string
}

// Client executes requests against the admin backend: it attaches auth and
// CSRF headers, bounds each attempt with a timeout, recovers from one expired
// access token and one rejected CSRF token, and classifies the result.
type Client struct {
	endpoint     httpdomain.BackendEndpoint
	requester    httpports.HttpRequester
	credentials  ports.CredentialStore
	refresher    ports.Refresher
	csrf         ports.CsrfSource
	notifier     ports.Notifier
	logger       ports.LoggingGateway
	timeout      time.Duration
	newRequestID func() string
}

// NewClient creates a request executor
func NewClient(cfg ClientConfig) *Client {
	c := &Client{
		endpoint:     cfg.Endpoint,
		requester:    cfg.Requester,
		credentials:  cfg.Credentials,
		refresher:    cfg.Refresher,
		csrf:         cfg.Csrf,
		notifier:     cfg.Notifier,
		logger:       cfg.Logger,
		timeout:      cfg.DefaultTimeout,
		newRequestID: cfg.NewRequestID,
	}
	if c.requester == nil {
		c.requester = NewStdHttpRequester(nil)
	}
	if c.newRequestID == nil {
		c.newRequestID = func() string { return uuid.NewString() }
	}
	return c
}

// Do executes req. At most one auth retry and one CSRF retry happen per call.
func (c *Client) Do(ctx context.Context, req httpdomain.RequestContext) (*httpdomain.Response, error) {
	req.Method = strings.ToUpper(req.Method)
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if req.Timeout <= 0 {
		req.Timeout = c.timeout
	}
	requestID := c.newRequestID()

	authRetried := false
	csrfRetried := false
	for {
		sentToken := c.accessToken()
		headers, err := c.buildHeaders(ctx, req, requestID, sentToken)
		if err != nil {
			return nil, err
		}

		status, header, body, err := c.attempt(ctx, req, headers)
		if err != nil {
			return nil, err
		}
		contentType := http.Header(header).Get(HeaderContentType)

		switch {
		case status == http.StatusUnauthorized:
			if req.NoRetry || authRetried {
				return nil, &domain.UnauthorizedError{Method: req.Method, Path: req.Path}
			}
			authRetried = true
			if current := c.accessToken(); current != "" && current != sentToken {
				c.log(ports.LogLevelDebug, "access token changed during request, retrying", requestFields(req, requestID))
				continue
			}
			if c.signedOut() {
				// the session already ended; a late 401 must not end it again
				return nil, &domain.UnauthorizedError{Method: req.Method, Path: req.Path, Cause: domain.ErrNoRefreshToken}
			}
			if err := c.refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				return nil, &domain.UnauthorizedError{Method: req.Method, Path: req.Path, Cause: err}
			}
			c.log(ports.LogLevelDebug, "retrying after token refresh", requestFields(req, requestID))
			continue

		case status == http.StatusBadRequest && !csrfRetried && c.csrfApplies(req.Method):
			eb := httpdomain.ParseErrorBody(contentType, body)
			if eb.Error == domain.CsrfRejectedCode {
				csrfRetried = true
				c.csrf.Invalidate()
				c.log(ports.LogLevelDebug, "csrf token rejected, retrying with a fresh token", requestFields(req, requestID))
				continue
			}
			return nil, requestFailed(status, eb, body)

		case status == http.StatusTooManyRequests:
			eb := httpdomain.ParseErrorBody(contentType, body)
			c.notifyPlanLimit(eb)
			return nil, &domain.PlanLimitExceededError{Message: eb.Message, UpgradeURL: eb.UpgradeURL}

		case status == http.StatusForbidden:
			eb := httpdomain.ParseErrorBody(contentType, body)
			c.notifyForbidden(eb)
			return nil, &domain.ForbiddenError{Message: eb.Message, Reason: eb.Reason}

		case status < 200 || status > 299:
			return nil, requestFailed(status, httpdomain.ParseErrorBody(contentType, body), body)
		}

		return &httpdomain.Response{StatusCode: status, Header: http.Header(header), Body: body}, nil
	}
}

// Get issues a GET request
func (c *Client) Get(ctx context.Context, path string, opts ...httpports.RequestOption) (*httpdomain.Response, error) {
	return c.Do(ctx, buildRequest(http.MethodGet, path, nil, opts))
}

// Post issues a POST request with body encoded as JSON
func (c *Client) Post(ctx context.Context, path string, body interface{}, opts ...httpports.RequestOption) (*httpdomain.Response, error) {
	return c.withBody(ctx, http.MethodPost, path, body, opts)
}

// Put issues a PUT request with body encoded as JSON
func (c *Client) Put(ctx context.Context, path string, body interface{}, opts ...httpports.RequestOption) (*httpdomain.Response, error) {
	return c.withBody(ctx, http.MethodPut, path, body, opts)
}

// Patch issues a PATCH request with body encoded as JSON
func (c *Client) Patch(ctx context.Context, path string, body interface{}, opts ...httpports.RequestOption) (*httpdomain.Response, error) {
	return c.withBody(ctx, http.MethodPatch, path, body, opts)
}

// Delete issues a DELETE request
func (c *Client) Delete(ctx context.Context, path string, opts ...httpports.RequestOption) (*httpdomain.Response, error) {
	return c.Do(ctx, buildRequest(http.MethodDelete, path, nil, opts))
}

func (c *Client) withBody(ctx context.Context, method, path string, body interface{}, opts []httpports.RequestOption) (*httpdomain.Response, error) {
	data, err := EncodeBody(body)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, buildRequest(method, path, data, opts))
}

// EncodeBody encodes a request body as JSON. Byte slices and raw messages pass
// through unchanged and nil gives no body.
func EncodeBody(body interface{}) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	return data, nil
}

func buildRequest(method, path string, body []byte, opts []httpports.RequestOption) httpdomain.RequestContext {
	req := httpdomain.RequestContext{Method: method, Path: path, Body: body}
	for _, opt := range opts {
		opt(&req)
	}
	return req
}

func (c *Client) buildHeaders(ctx context.Context, req httpdomain.RequestContext, requestID, accessToken string) (map[string]string, error) {
	var auth map[string]string
	if accessToken != "" {
		auth = map[string]string{HeaderAuthorization: "Bearer " + accessToken}
	}
	headers := MergeHeaders(DefaultHeaders(c.endpoint.UserAgent, requestID), auth, req.Headers)

	if c.csrfApplies(req.Method) {
		token, err := c.csrf.GetValidToken(ctx)
		if err != nil {
			return nil, err
		}
		headers[HeaderCsrfToken] = token
	}
	return headers, nil
}

func (c *Client) attempt(ctx context.Context, req httpdomain.RequestContext, headers map[string]string) (int, map[string][]string, []byte, error) {
	timeout := req.EffectiveTimeout()
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sent := req
	sent.Headers = headers
	status, header, body, err := c.requester.Do(attemptCtx, c.endpoint, sent)
	if err == nil {
		return status, header, body, nil
	}

	if ctx.Err() != nil {
		return 0, nil, nil, ctx.Err()
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		c.log(ports.LogLevelWarn, "request timed out", map[string]interface{}{
			"method":  req.Method,
			"path":    req.Path,
			"timeout": timeout.String(),
		})
		c.notify("Request timed out. Please check your network connection.", domain.SeverityWarning)
		return 0, nil, nil, &domain.TimeoutError{Method: req.Method, Path: req.Path, Timeout: timeout}
	}
	return 0, nil, nil, &domain.RequestFailedError{Cause: err}
}

func (c *Client) refresh(ctx context.Context) error {
	if c.refresher == nil {
		return domain.ErrNoRefreshToken
	}
	return c.refresher.Refresh(ctx)
}

func (c *Client) accessToken() string {
	if c.credentials == nil {
		return ""
	}
	return c.credentials.Get().AccessToken
}

// signedOut reports whether no token of any kind is stored
func (c *Client) signedOut() bool {
	return c.credentials == nil || c.credentials.Get().IsZero()
}

func (c *Client) csrfApplies(method string) bool {
	return c.csrf != nil && domain.RequiresCsrf(method)
}

func (c *Client) notifyPlanLimit(eb httpdomain.ErrorBody) {
	msg := "Plan limit exceeded"
	if eb.Message != "" {
		msg += ": " + eb.Message
	}
	if eb.UpgradeURL != "" {
		msg += fmt.Sprintf(" (upgrade at %s)", eb.UpgradeURL)
	}
	c.notify(msg, domain.SeverityWarning)
}

func (c *Client) notifyForbidden(eb httpdomain.ErrorBody) {
	msg := "You do not have permission for this action"
	if eb.Reason != "" {
		msg += fmt.Sprintf(" (reason: %s)", eb.Reason)
	}
	c.notify(msg+".", domain.SeverityError)
}

func (c *Client) notify(message string, severity domain.Severity) {
	if c.notifier != nil {
		c.notifier.Notify(message, severity)
	}
}

func (c *Client) log(level ports.LogLevel, message string, fields map[string]interface{}) {
	if c.logger != nil {
		c.logger.Log(level, message, fields)
	}
}

func requestFailed(status int, eb httpdomain.ErrorBody, body []byte) error {
	return &domain.RequestFailedError{StatusCode: status, Message: eb.Text(), Body: body}
}

func requestFields(req httpdomain.RequestContext, requestID string) map[string]interface{} {
	return map[string]interface{}{
		"method":     req.Method,
		"path":       req.Path,
		"request_id": requestID,
	}
}

var _ httpports.Executor = (*Client)(nil)
