package mockapi

import (
	"net/http/httptest"
	"testing"
)

// Start serves a new Server on a local port for the duration of the test and
// returns it with its base URL
func Start(t testing.TB, opts Options) (*Server, string) {
	t.Helper()
	s := New(opts)
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	return s, ts.URL
}
