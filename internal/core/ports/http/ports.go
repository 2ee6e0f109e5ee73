package httpports

import (
	"context"

	httpdomain "ytd.app/adminctl/internal/core/domain/http"
)

// HttpRequester issues a single request attempt and returns the raw result
type HttpRequester interface {
	Do(ctx context.Context, endpoint httpdomain.BackendEndpoint, req httpdomain.RequestContext) (status int, headers map[string][]string, body []byte, err error)
}

// Executor is the public surface consumed by UI-side callers
type Executor interface {
	Do(ctx context.Context, req httpdomain.RequestContext) (*httpdomain.Response, error)
	Get(ctx context.Context, path string, opts ...RequestOption) (*httpdomain.Response, error)
	Post(ctx context.Context, path string, body interface{}, opts ...RequestOption) (*httpdomain.Response, error)
	Put(ctx context.Context, path string, body interface{}, opts ...RequestOption) (*httpdomain.Response, error)
	Patch(ctx context.Context, path string, body interface{}, opts ...RequestOption) (*httpdomain.Response, error)
	Delete(ctx context.Context, path string, opts ...RequestOption) (*httpdomain.Response, error)
}

// RequestOption adjusts a RequestContext built by a convenience wrapper
type RequestOption func(*httpdomain.RequestContext)
