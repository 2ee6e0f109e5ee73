package httpinfra

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	httpdomain "ytd.app/adminctl/internal/core/domain/http"
	httpports "ytd.app/adminctl/internal/core/ports/http"
)

// maxBodyBytes caps how much of a response body is read into memory
const maxBodyBytes = 16 << 20

// StdHttpRequester sends exactly one attempt per Do. Retries, timeouts and
// classification belong to the Client above it.
type StdHttpRequester struct {
	client *http.Client
}

// NewStdHttpRequester creates a requester over client (nil means a client
// with the logging transport over http.DefaultTransport and no logger)
func NewStdHttpRequester(client *http.Client) *StdHttpRequester {
	if client == nil {
		client = &http.Client{Transport: NewLoggingRoundTripper(nil, nil)}
	}
	return &StdHttpRequester{client: client}
}

func (r *StdHttpRequester) Do(ctx context.Context, endpoint httpdomain.BackendEndpoint, req httpdomain.RequestContext) (int, map[string][]string, []byte, error) {
	fullURL, err := joinURL(endpoint.BaseURL, req.Path, req.Query)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("invalid request URL: %w", err)
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if endpoint.UserAgent != "" && httpReq.Header.Get(HeaderUserAgent) == "" {
		httpReq.Header.Set(HeaderUserAgent, endpoint.UserAgent)
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, resp.Header, respBody, nil
}

func joinURL(base, p string, q map[string]string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(p)
	if err != nil {
		return "", err
	}
	u.Path = joinPath(u.Path, ref.Path)
	vals := u.Query()
	for k, v := range ref.Query() {
		vals[k] = v
	}
	for k, v := range q {
		vals.Set(k, v)
	}
	u.RawQuery = vals.Encode()
	return u.String(), nil
}

func joinPath(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	if a[len(a)-1] == '/' {
		a = a[:len(a)-1]
	}
	if b[0] != '/' {
		b = "/" + b
	}
	return a + b
}

var _ httpports.HttpRequester = (*StdHttpRequester)(nil)
