package httpinfra

import "net/http"

// Header names set by the executor
const (
	HeaderAuthorization  = "Authorization"
	HeaderContentType    = "Content-Type"
	HeaderAccept         = "Accept"
	HeaderRequestedWith  = "X-Requested-With"
	HeaderRequestID      = "X-Request-ID"
	HeaderCsrfToken      = "X-CSRF-Token"
	HeaderUserAgent      = "User-Agent"
	jsonContentType      = "application/json"
	xmlHTTPRequestMarker = "XMLHttpRequest"
)

// DefaultHeaders returns the headers every request starts from
func DefaultHeaders(userAgent, requestID string) map[string]string {
	h := map[string]string{
		HeaderContentType:   jsonContentType,
		HeaderAccept:        jsonContentType,
		HeaderRequestedWith: xmlHTTPRequestMarker,
	}
	if userAgent != "" {
		h[HeaderUserAgent] = userAgent
	}
	if requestID != "" {
		h[HeaderRequestID] = requestID
	}
	return h
}

// MergeHeaders layers each map over the previous ones. Names are compared in
// canonical form, so a later "content-type" replaces an earlier "Content-Type".
// Empty values are kept.
func MergeHeaders(layers ...map[string]string) map[string]string {
	out := map[string]string{}
	for _, layer := range layers {
		for k, v := range layer {
			out[http.CanonicalHeaderKey(k)] = v
		}
	}
	return out
}
