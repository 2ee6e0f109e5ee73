package httpinfra

import (
	"net/http"
	"time"

	"ytd.app/adminctl/internal/core/ports"
)

// LoggingRoundTripper logs every attempt at debug level. Header values are
// never logged, so tokens stay out of the log.
type LoggingRoundTripper struct {
	base   http.RoundTripper
	logger ports.LoggingGateway
}

// NewLoggingRoundTripper wraps base (nil means http.DefaultTransport)
func NewLoggingRoundTripper(base http.RoundTripper, logger ports.LoggingGateway) *LoggingRoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &LoggingRoundTripper{base: base, logger: logger}
}

func (t *LoggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	if t.logger == nil {
		return resp, err
	}

	fields := map[string]interface{}{
		"method":     req.Method,
		"path":       req.URL.Path,
		"request_id": req.Header.Get(HeaderRequestID),
		"duration":   time.Since(start).String(),
	}
	if err != nil {
		fields["error"] = err.Error()
		t.logger.Log(ports.LogLevelDebug, "http attempt failed", fields)
		return resp, err
	}
	fields["status"] = resp.StatusCode
	t.logger.Log(ports.LogLevelDebug, "http attempt", fields)
	return resp, nil
}
