package httpdomain

import "time"

// RequestContext describes one call to the backend. It is created per call
// and never shared; Body is kept as bytes so the call can be replayed once.
type RequestContext struct {
	Method  string
	Path    string
	Query   map[string]string
	Headers map[string]string
	Body    []byte
	Timeout time.Duration
	NoRetry bool
}

// EffectiveTimeout returns the timeout to apply to a single attempt
func (r RequestContext) EffectiveTimeout() time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return DefaultTimeout
}
