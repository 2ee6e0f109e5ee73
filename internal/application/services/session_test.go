package services

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytd.app/adminctl/internal/core/domain"
	httpdomain "ytd.app/adminctl/internal/core/domain/http"
	"ytd.app/adminctl/internal/infrastructure/notify"
	"ytd.app/adminctl/internal/testutil/mockapi"
)

// gatedTransport holds refresh calls until the gate is opened. When holdPath
// is set, the first request to it waits for resume after signalling held.
type gatedTransport struct {
	gate chan struct{}

	holdPath string
	held     chan struct{}
	resume   chan struct{}
	holdOnce sync.Once
}

func (t *gatedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Path == httpdomain.RefreshPath {
		<-t.gate
	}
	if t.holdPath != "" && req.URL.Path == t.holdPath {
		t.holdOnce.Do(func() {
			close(t.held)
			<-t.resume
		})
	}
	return http.DefaultTransport.RoundTrip(req)
}

type sessionFixture struct {
	srv       *mockapi.Server
	session   *Session
	notes     *notify.Recorder
	gate      chan struct{}
	transport *gatedTransport
	logouts   int32
}

func newSessionFixture(t *testing.T, email string) *sessionFixture {
	t.Helper()
	srv, url := mockapi.Start(t, mockapi.Options{})
	f := &sessionFixture{srv: srv, notes: notify.NewRecorder(), gate: make(chan struct{})}
	f.transport = &gatedTransport{gate: f.gate}
	f.session = NewSession(SessionConfig{
		Endpoint:   httpdomain.BackendEndpoint{BaseURL: url, UserAgent: "adminctl-test"},
		HTTPClient: &http.Client{Transport: f.transport},
		Notifier:   f.notes,
		OnLogout:   func(error) { atomic.AddInt32(&f.logouts, 1) },
	})
	if email != "" {
		tokens, err := srv.IssueTokens(email)
		require.NoError(t, err)
		f.session.Credentials().Persist(tokens.AccessToken, tokens.RefreshToken)
	}
	return f
}

func (f *sessionFixture) openGate() {
	select {
	case <-f.gate:
	default:
		close(f.gate)
	}
}

// concurrentGets issues n GET requests and holds the refresh call until all
// of them are waiting on it
func (f *sessionFixture) concurrentGets(t *testing.T, n int, path string) []error {
	t.Helper()
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.session.Get(context.Background(), path)
		}(i)
	}
	require.Eventually(t, func() bool {
		return f.session.Refresher().flight.Waiters() == n
	}, 5*time.Second, time.Millisecond)
	f.openGate()
	wg.Wait()
	return errs
}

func TestSession_ConcurrentUnauthorizedSharesOneRefresh(t *testing.T) {
	f := newSessionFixture(t, mockapi.AdminEmail)
	f.srv.ExpireAccessTokens()

	errs := f.concurrentGets(t, 12, "/plans")

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, f.srv.Hits(http.MethodPost, httpdomain.RefreshPath))
	assert.Equal(t, 24, f.srv.Hits(http.MethodGet, "/plans"))
	assert.Zero(t, atomic.LoadInt32(&f.logouts))
	assert.Empty(t, f.notes.All())
}

func TestSession_FailedRefreshLogsOutOnce(t *testing.T) {
	f := newSessionFixture(t, mockapi.AdminEmail)
	f.srv.ExpireAccessTokens()
	f.srv.RevokeRefreshTokens()

	errs := f.concurrentGets(t, 8, "/plans")

	for _, err := range errs {
		require.Error(t, err)
		assert.True(t, domain.IsSessionEnded(err), "unexpected error %v", err)
	}
	assert.Equal(t, 1, f.srv.Hits(http.MethodPost, httpdomain.RefreshPath))
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.logouts))
	assert.Equal(t, 1, f.notes.Count(domain.SeverityInfo))
	assert.True(t, f.notes.Contains(SessionExpiredMessage))
	assert.True(t, f.session.Credentials().Get().IsZero())
}

func TestSession_LateUnauthorizedAfterFailedRefreshDoesNotLogOutAgain(t *testing.T) {
	f := newSessionFixture(t, mockapi.AdminEmail)
	f.transport.holdPath = "/jobs"
	f.transport.held = make(chan struct{})
	f.transport.resume = make(chan struct{})
	f.openGate()
	f.srv.ExpireAccessTokens()
	f.srv.RevokeRefreshTokens()

	// the /jobs request leaves with the expired token but its 401 only
	// arrives after the refresh below has failed
	lateErr := make(chan error, 1)
	go func() {
		_, err := f.session.Get(context.Background(), "/jobs")
		lateErr <- err
	}()
	<-f.transport.held

	_, err := f.session.Get(context.Background(), "/plans")
	require.Error(t, err)
	assert.True(t, domain.IsSessionEnded(err))
	require.True(t, f.session.Credentials().Get().IsZero())

	close(f.transport.resume)
	err = <-lateErr

	var unauthorized *domain.UnauthorizedError
	require.ErrorAs(t, err, &unauthorized)
	assert.ErrorIs(t, err, domain.ErrNoRefreshToken)
	assert.Equal(t, 1, f.srv.Hits(http.MethodPost, httpdomain.RefreshPath))
	assert.Equal(t, uint64(1), f.session.Refresher().Flights())
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.logouts))
	assert.Equal(t, 1, f.notes.Count(domain.SeverityInfo))
}

func TestSession_UnauthorizedWithoutRefreshTokenLogsOut(t *testing.T) {
	f := newSessionFixture(t, "")
	f.openGate()
	tokens, err := f.srv.IssueTokens(mockapi.AdminEmail)
	require.NoError(t, err)
	f.session.Credentials().Persist(tokens.AccessToken, "")
	f.srv.ExpireAccessTokens()

	_, err = f.session.Get(context.Background(), "/plans")

	var unauthorized *domain.UnauthorizedError
	require.ErrorAs(t, err, &unauthorized)
	assert.ErrorIs(t, err, domain.ErrNoRefreshToken)
	assert.Zero(t, f.srv.Hits(http.MethodPost, httpdomain.RefreshPath))
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.logouts))
	assert.True(t, f.notes.Contains(SessionExpiredMessage))
}

func TestSession_TerminateClearsCsrfCache(t *testing.T) {
	f := newSessionFixture(t, mockapi.AdminEmail)
	f.openGate()
	_, err := f.session.Post(context.Background(), "/jobs", map[string]string{"name": "nightly"})
	require.NoError(t, err)
	require.NotNil(t, f.session.Csrf().Token())

	f.session.Terminate(domain.ErrNoRefreshToken)

	assert.Nil(t, f.session.Csrf().Token())
	assert.True(t, f.session.Credentials().Get().IsZero())
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.logouts))
}

func TestSession_RecoversAfterRefresh(t *testing.T) {
	f := newSessionFixture(t, mockapi.AdminEmail)
	f.openGate()

	created, err := f.session.Post(context.Background(), "/jobs", map[string]string{"name": "nightly"})
	require.NoError(t, err)
	var job mockapi.Job
	require.NoError(t, created.Decode(&job))

	f.srv.ExpireAccessTokens()
	resp, err := f.session.Patch(context.Background(), "/jobs/"+job.ID, map[string]string{"status": "done"})
	require.NoError(t, err)
	require.NoError(t, resp.Decode(&job))
	assert.Equal(t, "done", job.Status)
	assert.Equal(t, 1, f.srv.Hits(http.MethodPost, httpdomain.RefreshPath))

	_, err = f.session.Delete(context.Background(), "/jobs/"+job.ID)
	require.NoError(t, err)
	_, err = f.session.Get(context.Background(), "/jobs/"+job.ID)
	var failed *domain.RequestFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, http.StatusNotFound, failed.StatusCode)
}

func TestSession_Close(t *testing.T) {
	f := newSessionFixture(t, mockapi.AdminEmail)
	f.openGate()

	f.session.Close()
	f.session.Close()

	assert.True(t, f.session.Closed())
	assert.True(t, f.session.Credentials().Get().IsZero())

	_, err := f.session.Get(context.Background(), "/plans")
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
	_, err = f.session.Put(context.Background(), "/jobs/1", nil)
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
	_, err = f.session.Do(context.Background(), httpdomain.RequestContext{Method: http.MethodGet, Path: "/plans"})
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
	assert.Zero(t, f.srv.Hits(http.MethodGet, "/plans"))
	assert.Zero(t, atomic.LoadInt32(&f.logouts))
}
