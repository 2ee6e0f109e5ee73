package httpinfra

import (
	"time"

	httpdomain "ytd.app/adminctl/internal/core/domain/http"
	httpports "ytd.app/adminctl/internal/core/ports/http"
)

// WithHeader sets a caller header. Caller headers override the defaults.
func WithHeader(name, value string) httpports.RequestOption {
	return func(r *httpdomain.RequestContext) {
		if r.Headers == nil {
			r.Headers = map[string]string{}
		}
		r.Headers[name] = value
	}
}

// WithQuery sets a query parameter
func WithQuery(name, value string) httpports.RequestOption {
	return func(r *httpdomain.RequestContext) {
		if r.Query == nil {
			r.Query = map[string]string{}
		}
		r.Query[name] = value
	}
}

// WithTimeout overrides the per-attempt timeout
func WithTimeout(d time.Duration) httpports.RequestOption {
	return func(r *httpdomain.RequestContext) { r.Timeout = d }
}

// WithNoRetry disables the refresh-and-retry on 401
func WithNoRetry() httpports.RequestOption {
	return func(r *httpdomain.RequestContext) { r.NoRetry = true }
}
