package httpinfra

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytd.app/adminctl/internal/core/domain"
	httpdomain "ytd.app/adminctl/internal/core/domain/http"
	"ytd.app/adminctl/internal/infrastructure/auth"
	"ytd.app/adminctl/internal/infrastructure/csrf"
	"ytd.app/adminctl/internal/infrastructure/logging"
	"ytd.app/adminctl/internal/infrastructure/notify"
	"ytd.app/adminctl/internal/testutil/mockapi"
)

// countingRefresher refreshes through the real token provider without
// collapsing concurrent calls
type countingRefresher struct {
	calls    int32
	provider *auth.HTTPTokenProvider
	store    *auth.CredentialStore
}

func (r *countingRefresher) Refresh(ctx context.Context) error {
	atomic.AddInt32(&r.calls, 1)
	refresh := r.store.Get().RefreshToken
	if refresh == "" {
		r.store.Clear()
		return domain.ErrNoRefreshToken
	}
	cred, err := r.provider.RefreshToken(ctx, refresh)
	if err != nil {
		r.store.Clear()
		return err
	}
	r.store.Persist(cred.AccessToken, cred.RefreshToken)
	return nil
}

type fixture struct {
	srv       *mockapi.Server
	store     *auth.CredentialStore
	csrf      *csrf.Manager
	refresher *countingRefresher
	notes     *notify.Recorder
	client    *Client
}

func newFixture(t *testing.T, email string) *fixture {
	t.Helper()
	srv, url := mockapi.Start(t, mockapi.Options{})
	endpoint := httpdomain.BackendEndpoint{BaseURL: url, UserAgent: "adminctl-test"}

	store := auth.NewCredentialStore(nil, logging.NopLogger{})
	if email != "" {
		tokens, err := srv.IssueTokens(email)
		require.NoError(t, err)
		store.Persist(tokens.AccessToken, tokens.RefreshToken)
	}

	f := &fixture{
		srv:   srv,
		store: store,
		csrf:  csrf.NewManager(csrf.Config{Endpoint: endpoint, Credentials: store}),
		refresher: &countingRefresher{
			provider: auth.NewHTTPTokenProvider(endpoint, nil),
			store:    store,
		},
		notes: notify.NewRecorder(),
	}
	f.client = NewClient(ClientConfig{
		Endpoint:    endpoint,
		Credentials: store,
		Refresher:   f.refresher,
		Csrf:        f.csrf,
		Notifier:    f.notes,
		Logger:      logging.NopLogger{},
	})
	return f
}

func (f *fixture) refreshCalls() int32 {
	return atomic.LoadInt32(&f.refresher.calls)
}

func TestClient_GetDecodesJSON(t *testing.T) {
	f := newFixture(t, mockapi.AdminEmail)

	resp, err := f.client.Get(context.Background(), "/plans")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, resp.IsJSON())

	var plans []mockapi.Plan
	require.NoError(t, resp.Decode(&plans))
	assert.Len(t, plans, 2)
	assert.Zero(t, f.refreshCalls())
}

func TestClient_TextResponse(t *testing.T) {
	f := newFixture(t, mockapi.AdminEmail)

	resp, err := f.client.Get(context.Background(), "/text")
	require.NoError(t, err)
	assert.False(t, resp.IsJSON())
	assert.Equal(t, "plain text body", resp.Text())

	value, err := resp.Value()
	require.NoError(t, err)
	assert.Equal(t, "plain text body", value)
}

func TestClient_PlanLimitExceeded(t *testing.T) {
	f := newFixture(t, mockapi.AdminEmail)
	f.srv.Script(http.MethodGet, "/plans", mockapi.Reply{
		Status: http.StatusTooManyRequests,
		Body:   map[string]string{"message": "limit reached", "upgrade_url": "/upgrade"},
	})

	_, err := f.client.Get(context.Background(), "/plans")

	var limitErr *domain.PlanLimitExceededError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, "limit reached", err.Error())
	assert.Equal(t, "/upgrade", limitErr.UpgradeURL)
	assert.Equal(t, 1, f.notes.Count(domain.SeverityWarning))
	assert.True(t, f.notes.Contains("limit reached"))
	assert.True(t, f.notes.Contains("/upgrade"))
}

func TestClient_Forbidden(t *testing.T) {
	f := newFixture(t, mockapi.ViewerEmail)

	_, err := f.client.Get(context.Background(), "/admin/x")

	var forbidden *domain.ForbiddenError
	require.ErrorAs(t, err, &forbidden)
	assert.Equal(t, "not_admin", forbidden.Reason)
	assert.Equal(t, 1, f.notes.Count(domain.SeverityError))
	assert.True(t, f.notes.Contains("not_admin"))
}

func TestClient_Timeout(t *testing.T) {
	f := newFixture(t, mockapi.AdminEmail)
	f.srv.Script(http.MethodGet, "/plans", mockapi.Reply{Status: http.StatusOK, Delay: 2 * time.Second})

	_, err := f.client.Get(context.Background(), "/plans", WithTimeout(50*time.Millisecond))

	var timeoutErr *domain.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 50*time.Millisecond, timeoutErr.Timeout)
	assert.Equal(t, 1, f.notes.Count(domain.SeverityWarning))
	assert.Equal(t, 1, f.srv.Hits(http.MethodGet, "/plans"))
}

func TestClient_CallerCancellation(t *testing.T) {
	f := newFixture(t, mockapi.AdminEmail)
	f.srv.Script(http.MethodGet, "/plans", mockapi.Reply{Status: http.StatusOK, Delay: 2 * time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := f.client.Get(ctx, "/plans")

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	var timeoutErr *domain.TimeoutError
	assert.False(t, errors.As(err, &timeoutErr))
	assert.Empty(t, f.notes.All())
}

func TestClient_RefreshesOnceOnUnauthorized(t *testing.T) {
	f := newFixture(t, mockapi.AdminEmail)
	before := f.store.Get()
	f.srv.ExpireAccessTokens()

	resp, err := f.client.Get(context.Background(), "/plans")

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(1), f.refreshCalls())
	assert.Equal(t, 2, f.srv.Hits(http.MethodGet, "/plans"))
	assert.NotEqual(t, before.AccessToken, f.store.Get().AccessToken)
	assert.NotEqual(t, before.RefreshToken, f.store.Get().RefreshToken)
}

func TestClient_SecondUnauthorizedIsTerminal(t *testing.T) {
	f := newFixture(t, mockapi.AdminEmail)
	unauthorized := mockapi.Reply{Status: http.StatusUnauthorized, Body: map[string]string{"error": "token_expired"}}
	f.srv.Script(http.MethodGet, "/plans", unauthorized, unauthorized, unauthorized)

	_, err := f.client.Get(context.Background(), "/plans")

	var unauthorizedErr *domain.UnauthorizedError
	require.ErrorAs(t, err, &unauthorizedErr)
	assert.Equal(t, int32(1), f.refreshCalls())
	assert.Equal(t, 2, f.srv.Hits(http.MethodGet, "/plans"))
}

func TestClient_NoRetry(t *testing.T) {
	f := newFixture(t, mockapi.AdminEmail)
	f.srv.ExpireAccessTokens()

	_, err := f.client.Get(context.Background(), "/plans", WithNoRetry())

	var unauthorizedErr *domain.UnauthorizedError
	require.ErrorAs(t, err, &unauthorizedErr)
	assert.Zero(t, f.refreshCalls())
	assert.Equal(t, 1, f.srv.Hits(http.MethodGet, "/plans"))
}

func TestClient_UnauthorizedWithoutRefreshToken(t *testing.T) {
	f := newFixture(t, "")
	tokens, err := f.srv.IssueTokens(mockapi.AdminEmail)
	require.NoError(t, err)
	f.store.Persist(tokens.AccessToken, "")
	f.srv.ExpireAccessTokens()

	_, err = f.client.Get(context.Background(), "/plans")

	var unauthorizedErr *domain.UnauthorizedError
	require.ErrorAs(t, err, &unauthorizedErr)
	assert.ErrorIs(t, err, domain.ErrNoRefreshToken)
	assert.Zero(t, f.srv.Hits(http.MethodPost, httpdomain.RefreshPath))
	assert.True(t, f.store.Get().IsZero())
}

func TestClient_UnauthorizedWhenSignedOutSkipsRefresh(t *testing.T) {
	f := newFixture(t, "")

	_, err := f.client.Get(context.Background(), "/plans")

	var unauthorizedErr *domain.UnauthorizedError
	require.ErrorAs(t, err, &unauthorizedErr)
	assert.ErrorIs(t, err, domain.ErrNoRefreshToken)
	assert.Zero(t, f.refreshCalls())
	assert.Equal(t, 1, f.srv.Hits(http.MethodGet, "/plans"))
}

func TestClient_RefreshRejected(t *testing.T) {
	f := newFixture(t, mockapi.AdminEmail)
	f.srv.ExpireAccessTokens()
	f.srv.RevokeRefreshTokens()

	_, err := f.client.Get(context.Background(), "/plans")

	var refreshErr *domain.RefreshFailedError
	require.ErrorAs(t, err, &refreshErr)
	assert.Equal(t, http.StatusUnauthorized, refreshErr.StatusCode)
	assert.True(t, domain.IsSessionEnded(err))
	assert.Equal(t, 1, f.srv.Hits(http.MethodGet, "/plans"))
}

// tokenSwapRequester persists a new access token while the first attempt is
// in flight, as a concurrent refresh by another caller would
type tokenSwapRequester struct {
	next    *StdHttpRequester
	swapped bool
	swap    func()
}

func (r *tokenSwapRequester) Do(ctx context.Context, endpoint httpdomain.BackendEndpoint, req httpdomain.RequestContext) (int, map[string][]string, []byte, error) {
	status, header, body, err := r.next.Do(ctx, endpoint, req)
	if !r.swapped {
		r.swapped = true
		r.swap()
	}
	return status, header, body, err
}

func TestClient_RetriesWithoutRefreshWhenTokenChanged(t *testing.T) {
	f := newFixture(t, mockapi.AdminEmail)
	f.srv.ExpireAccessTokens()

	requester := &tokenSwapRequester{next: NewStdHttpRequester(nil), swap: func() {
		tokens, err := f.srv.IssueTokens(mockapi.AdminEmail)
		require.NoError(t, err)
		f.store.Persist(tokens.AccessToken, tokens.RefreshToken)
	}}
	f.client.requester = requester

	resp, err := f.client.Get(context.Background(), "/plans")

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, f.refreshCalls())
	assert.Equal(t, 2, f.srv.Hits(http.MethodGet, "/plans"))
}

func TestClient_CsrfTokenIsFetchedOnceAndReused(t *testing.T) {
	f := newFixture(t, mockapi.AdminEmail)

	for _, name := range []string{"nightly", "weekly"} {
		resp, err := f.client.Post(context.Background(), "/jobs", map[string]string{"name": name})
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	}
	assert.Equal(t, 1, f.srv.Hits(http.MethodGet, httpdomain.CsrfTokenPath))

	// safe methods never need the token
	_, err := f.client.Get(context.Background(), "/jobs")
	require.NoError(t, err)
	assert.Equal(t, 1, f.srv.Hits(http.MethodGet, httpdomain.CsrfTokenPath))
}

func TestClient_CsrfRejectedRetriesWithFreshToken(t *testing.T) {
	f := newFixture(t, mockapi.AdminEmail)
	_, err := f.client.Post(context.Background(), "/jobs", map[string]string{"name": "first"})
	require.NoError(t, err)
	f.srv.RotateCsrf()

	resp, err := f.client.Post(context.Background(), "/jobs", map[string]string{"name": "second"})

	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 2, f.srv.Hits(http.MethodGet, httpdomain.CsrfTokenPath))
	assert.Equal(t, 3, f.srv.Hits(http.MethodPost, "/jobs"))
}

func TestClient_CsrfRetryIsBounded(t *testing.T) {
	f := newFixture(t, mockapi.AdminEmail)
	rejected := mockapi.Reply{Status: http.StatusBadRequest, Body: map[string]string{"error": "csrf_failed"}}
	f.srv.Script(http.MethodPost, "/jobs", rejected, rejected, rejected)

	_, err := f.client.Post(context.Background(), "/jobs", map[string]string{"name": "nightly"})

	var failed *domain.RequestFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, http.StatusBadRequest, failed.StatusCode)
	assert.Equal(t, "csrf_failed", failed.Message)
	assert.Equal(t, 2, f.srv.Hits(http.MethodPost, "/jobs"))
}

func TestClient_CsrfFetchFailureFailsTheCall(t *testing.T) {
	f := newFixture(t, mockapi.AdminEmail)
	f.srv.Script(http.MethodGet, httpdomain.CsrfTokenPath, mockapi.Reply{Status: http.StatusServiceUnavailable})

	_, err := f.client.Delete(context.Background(), "/jobs/123")

	var fetchErr *domain.CsrfFetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusServiceUnavailable, fetchErr.StatusCode)
	assert.Zero(t, f.srv.Hits(http.MethodDelete, "/jobs/123"))
}

func TestClient_RequestFailedMessage(t *testing.T) {
	tests := []struct {
		name     string
		reply    mockapi.Reply
		expected string
	}{
		{"error field", mockapi.Reply{Status: http.StatusConflict, Body: map[string]string{"error": "duplicate", "message": "ignored"}}, "duplicate"},
		{"message field", mockapi.Reply{Status: http.StatusUnprocessableEntity, Body: map[string]string{"message": "name is required"}}, "name is required"},
		{"detail field", mockapi.Reply{Status: http.StatusNotFound, Body: map[string]string{"detail": "job not found"}}, "job not found"},
		{"empty body", mockapi.Reply{Status: http.StatusInternalServerError}, "API request failed"},
		{"text body", mockapi.Reply{Status: http.StatusBadGateway, Body: "upstream down"}, "upstream down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, mockapi.AdminEmail)
			f.srv.Script(http.MethodGet, "/jobs", tt.reply)

			_, err := f.client.Get(context.Background(), "/jobs")

			var failed *domain.RequestFailedError
			require.ErrorAs(t, err, &failed)
			assert.Equal(t, tt.reply.Status, failed.StatusCode)
			assert.Equal(t, tt.expected, err.Error())
			assert.Empty(t, f.notes.All())
		})
	}
}

func TestClient_TransportError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	client := NewClient(ClientConfig{
		Endpoint:    httpdomain.BackendEndpoint{BaseURL: url},
		Credentials: auth.NewCredentialStore(nil, nil),
	})
	_, err := client.Get(context.Background(), "/plans")

	var failed *domain.RequestFailedError
	require.ErrorAs(t, err, &failed)
	assert.Zero(t, failed.StatusCode)
	assert.Error(t, failed.Cause)
}

func TestClient_Headers(t *testing.T) {
	var (
		mu   sync.Mutex
		seen = map[string]http.Header{}
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == httpdomain.CsrfTokenPath {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"csrfToken":"csrf-1","expiresAt":"2999-01-01T00:00:00Z"}`))
			return
		}
		mu.Lock()
		seen[r.Method] = r.Header.Clone()
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	endpoint := httpdomain.BackendEndpoint{BaseURL: ts.URL, UserAgent: "adminctl-test"}
	store := auth.NewCredentialStore(nil, nil)
	store.Persist("access-1", "refresh-1")
	client := NewClient(ClientConfig{
		Endpoint:    endpoint,
		Credentials: store,
		Csrf:        csrf.NewManager(csrf.Config{Endpoint: endpoint}),
	})

	_, err := client.Get(context.Background(), "/things", WithQuery("page", "2"))
	require.NoError(t, err)
	_, err = client.Post(context.Background(), "/things", []byte("a=1"), WithHeader("content-type", "application/x-www-form-urlencoded"))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	get := seen[http.MethodGet]
	assert.Equal(t, "Bearer access-1", get.Get(HeaderAuthorization))
	assert.Equal(t, "application/json", get.Get(HeaderContentType))
	assert.Equal(t, "application/json", get.Get(HeaderAccept))
	assert.Equal(t, "XMLHttpRequest", get.Get(HeaderRequestedWith))
	assert.Equal(t, "adminctl-test", get.Get(HeaderUserAgent))
	assert.Empty(t, get.Get(HeaderCsrfToken))
	_, err = uuid.Parse(get.Get(HeaderRequestID))
	assert.NoError(t, err)

	post := seen[http.MethodPost]
	assert.Equal(t, "application/x-www-form-urlencoded", post.Get(HeaderContentType))
	assert.Equal(t, "csrf-1", post.Get(HeaderCsrfToken))
	assert.NotEqual(t, get.Get(HeaderRequestID), post.Get(HeaderRequestID))
}

func TestClient_NoAuthorizationWithoutToken(t *testing.T) {
	authHeader := make(chan string, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader <- r.Header.Get(HeaderAuthorization)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewClient(ClientConfig{Endpoint: httpdomain.BackendEndpoint{BaseURL: ts.URL}})
	_, err := client.Get(context.Background(), "/public")
	require.NoError(t, err)
	assert.Empty(t, <-authHeader)
}
