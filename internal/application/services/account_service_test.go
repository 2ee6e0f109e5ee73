package services

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytd.app/adminctl/internal/core/domain"
	httpdomain "ytd.app/adminctl/internal/core/domain/http"
	"ytd.app/adminctl/internal/infrastructure/logging"
	"ytd.app/adminctl/internal/testutil/mockapi"
)

func newAccountFixture(t *testing.T) (*sessionFixture, *AccountService) {
	f := newSessionFixture(t, "")
	f.openGate()
	return f, NewAccountService(f.session, logging.NopLogger{})
}

func TestAccountService_Login(t *testing.T) {
	tests := []struct {
		name      string
		email     string
		password  string
		expectErr bool
	}{
		{"exact email", mockapi.AdminEmail, mockapi.AdminPassword, false},
		{"email is normalized", "  Admin@Example.COM ", mockapi.AdminPassword, false},
		{"wrong password", mockapi.AdminEmail, "wrong", true},
		{"unknown account", "nobody@example.com", "x", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, accounts := newAccountFixture(t)

			err := accounts.Login(context.Background(), tt.email, tt.password)

			if tt.expectErr {
				var unauthorized *domain.UnauthorizedError
				require.ErrorAs(t, err, &unauthorized)
				assert.True(t, f.session.Credentials().Get().IsZero())
				assert.Zero(t, f.srv.Hits(http.MethodPost, httpdomain.RefreshPath))
				assert.Zero(t, atomic.LoadInt32(&f.logouts))
				return
			}
			require.NoError(t, err)
			cred := f.session.Credentials().Get()
			assert.True(t, cred.HasAccessToken())
			assert.True(t, cred.HasRefreshToken())
		})
	}
}

func TestAccountService_LoginRequiresCredentials(t *testing.T) {
	_, accounts := newAccountFixture(t)
	assert.ErrorIs(t, accounts.Login(context.Background(), "   ", "x"), ErrMissingCredentials)
	assert.ErrorIs(t, accounts.Login(context.Background(), mockapi.AdminEmail, ""), ErrMissingCredentials)
}

func TestAccountService_CurrentUser(t *testing.T) {
	_, accounts := newAccountFixture(t)
	require.NoError(t, accounts.Login(context.Background(), mockapi.ViewerEmail, mockapi.ViewerPassword))

	user, err := accounts.CurrentUser(context.Background())

	require.NoError(t, err)
	assert.Equal(t, mockapi.ViewerEmail, user.Email)
	assert.Equal(t, "viewer", user.Role)
	assert.NotEmpty(t, user.ID)
}

func TestAccountService_Logout(t *testing.T) {
	f, accounts := newAccountFixture(t)
	require.NoError(t, accounts.Login(context.Background(), mockapi.AdminEmail, mockapi.AdminPassword))
	refreshToken := f.session.Credentials().Get().RefreshToken

	require.NoError(t, accounts.Logout(context.Background()))

	assert.True(t, f.session.Credentials().Get().IsZero())
	assert.Nil(t, f.session.Csrf().Token())
	assert.Equal(t, 1, f.srv.Hits(http.MethodPost, httpdomain.LogoutPath))

	// the backend revoked the refresh token
	f.session.Credentials().Persist("stale", refreshToken)
	assert.Error(t, f.session.Refresher().Refresh(context.Background()))
}

func TestAccountService_LogoutClearsTokensOnError(t *testing.T) {
	f, accounts := newAccountFixture(t)
	require.NoError(t, accounts.Login(context.Background(), mockapi.AdminEmail, mockapi.AdminPassword))
	f.srv.Script(http.MethodPost, httpdomain.LogoutPath, mockapi.Reply{Status: http.StatusInternalServerError})

	err := accounts.Logout(context.Background())

	var failed *domain.RequestFailedError
	require.ErrorAs(t, err, &failed)
	assert.True(t, f.session.Credentials().Get().IsZero())
}

func TestAccountService_LogoutWithoutSessionSkipsBackend(t *testing.T) {
	f, accounts := newAccountFixture(t)

	require.NoError(t, accounts.Logout(context.Background()))
	assert.Zero(t, f.srv.Hits(http.MethodPost, httpdomain.LogoutPath))
}

func TestAccountService_ValidateCsrf(t *testing.T) {
	f, accounts := newAccountFixture(t)

	require.NoError(t, accounts.ValidateCsrf(context.Background()))
	f.srv.RotateCsrf()
	require.NoError(t, accounts.ValidateCsrf(context.Background()))
	assert.Equal(t, 2, f.srv.Hits(http.MethodGet, httpdomain.CsrfTokenPath))
}
