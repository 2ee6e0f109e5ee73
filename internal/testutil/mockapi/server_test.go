package mockapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func post(t *testing.T, url string, body interface{}, headers map[string]string) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestServer_LoginAndRefreshRotation(t *testing.T) {
	srv, url := Start(t, Options{})

	resp := post(t, url+"/auth/login", map[string]string{"email": AdminEmail, "password": AdminPassword}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tokens Tokens
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tokens))
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)

	resp = post(t, url+"/auth/refresh", map[string]string{"refresh_token": tokens.RefreshToken}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rotated Tokens
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rotated))
	assert.NotEqual(t, tokens.RefreshToken, rotated.RefreshToken)

	// the old refresh token is single use
	resp = post(t, url+"/auth/refresh", map[string]string{"refresh_token": tokens.RefreshToken}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 2, srv.Hits(http.MethodPost, "/auth/refresh"))
}

func TestServer_LoginRejectsBadPassword(t *testing.T) {
	_, url := Start(t, Options{})
	resp := post(t, url+"/auth/login", map[string]string{"email": AdminEmail, "password": "nope"}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_ProtectedRoutes(t *testing.T) {
	srv, url := Start(t, Options{})
	admin, err := srv.IssueTokens(AdminEmail)
	require.NoError(t, err)
	viewer, err := srv.IssueTokens(ViewerEmail)
	require.NoError(t, err)

	get := func(path, token string) int {
		req, err := http.NewRequest(http.MethodGet, url+path, nil)
		require.NoError(t, err)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusUnauthorized, get("/plans", ""))
	assert.Equal(t, http.StatusOK, get("/plans", admin.AccessToken))
	assert.Equal(t, http.StatusOK, get("/admin/users", admin.AccessToken))
	assert.Equal(t, http.StatusForbidden, get("/admin/users", viewer.AccessToken))

	srv.ExpireAccessTokens()
	assert.Equal(t, http.StatusUnauthorized, get("/plans", admin.AccessToken))
}

func TestServer_MutationsRequireCsrf(t *testing.T) {
	srv, url := Start(t, Options{})
	tokens, err := srv.IssueTokens(AdminEmail)
	require.NoError(t, err)
	bearer := map[string]string{"Authorization": "Bearer " + tokens.AccessToken}

	resp := post(t, url+"/jobs", map[string]string{"name": "nightly"}, bearer)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "csrf_failed", body["error"])

	csrfResp, err := http.Get(url + "/auth/csrf-token")
	require.NoError(t, err)
	defer csrfResp.Body.Close()
	var csrf struct {
		CsrfToken string `json:"csrfToken"`
	}
	require.NoError(t, json.NewDecoder(csrfResp.Body).Decode(&csrf))

	bearer["X-CSRF-Token"] = csrf.CsrfToken
	resp = post(t, url+"/jobs", map[string]string{"name": "nightly"}, bearer)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestServer_ScriptedReplies(t *testing.T) {
	srv, url := Start(t, Options{})
	srv.Script(http.MethodGet, "/plans", Reply{Status: http.StatusTooManyRequests, Body: map[string]string{"message": "limit reached"}})

	resp, err := http.Get(url + "/plans")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// queue drained: normal handler answers
	resp, err = http.Get(url + "/plans")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 2, srv.Hits(http.MethodGet, "/plans"))
}
