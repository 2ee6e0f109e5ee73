package httpdomain

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"
)

// Response is a successfully classified 2xx response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// IsJSON reports whether the body was declared as JSON
func (r *Response) IsJSON() bool {
	return IsJSONContentType(r.Header.Get("Content-Type"))
}

// Text returns the raw body as a string
func (r *Response) Text() string {
	return string(r.Body)
}

// Decode unmarshals a JSON body into v
func (r *Response) Decode(v interface{}) error {
	if !r.IsJSON() {
		return fmt.Errorf("response is not JSON (content type %q)", r.Header.Get("Content-Type"))
	}
	if len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Value returns the parsed body: the decoded JSON value for JSON responses,
// the text otherwise.
func (r *Response) Value() (interface{}, error) {
	if !r.IsJSON() {
		return r.Text(), nil
	}
	if len(r.Body) == 0 {
		return nil, nil
	}
	var v interface{}
	if err := json.Unmarshal(r.Body, &v); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return v, nil
}

// IsJSONContentType reports whether a Content-Type header value denotes JSON
func IsJSONContentType(value string) bool {
	if value == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		return strings.Contains(strings.ToLower(value), "application/json")
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
