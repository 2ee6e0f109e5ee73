package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ytd.app/adminctl/internal/core/domain"
	httpdomain "ytd.app/adminctl/internal/core/domain/http"
	"ytd.app/adminctl/internal/core/ports"
	httpinfra "ytd.app/adminctl/internal/infrastructure/http"
)

// CsrfValidatePath checks a CSRF token without side effects
const CsrfValidatePath = "/auth/csrf-validate"

// ErrMissingCredentials is returned by Login when email or password is empty
var ErrMissingCredentials = errors.New("email and password are required")

// User is the account returned by the backend
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// AccountService signs in and out of the admin backend
type AccountService struct {
	session *Session
	logger  ports.LoggingGateway
}

// NewAccountService creates an account service over session
func NewAccountService(session *Session, logger ports.LoggingGateway) *AccountService {
	return &AccountService{session: session, logger: logger}
}

// Login exchanges email and password for a token pair and stores it.
// The email is trimmed and lowercased before it is sent.
func (s *AccountService) Login(ctx context.Context, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return ErrMissingCredentials
	}

	resp, err := s.session.Post(ctx, httpdomain.LoginPath, map[string]string{
		"email":    email,
		"password": password,
	}, httpinfra.WithNoRetry())
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	var tokens domain.TokenResponse
	if err := resp.Decode(&tokens); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	cred := tokens.ToCredential()
	if !cred.HasAccessToken() {
		return fmt.Errorf("login failed: %w", domain.ErrEmptyAccessToken)
	}

	s.session.Credentials().Persist(cred.AccessToken, cred.RefreshToken)
	// the CSRF token may be bound to the previous identity
	s.session.Csrf().Invalidate()
	s.log(ports.LogLevelInfo, "login successful", map[string]interface{}{"email": email})
	return nil
}

// Logout tells the backend to end the session, then clears the local
// tokens whatever the outcome. The backend error, if any, is returned.
func (s *AccountService) Logout(ctx context.Context) error {
	creds := s.session.Credentials()
	refreshToken := creds.Get().RefreshToken

	var err error
	if creds.Get().HasAccessToken() {
		_, err = s.session.Post(ctx, httpdomain.LogoutPath, domain.RefreshRequest{RefreshToken: refreshToken}, httpinfra.WithNoRetry())
	}

	creds.Clear()
	s.session.Csrf().Clear()
	if err != nil {
		if s.logger != nil {
			s.logger.LogError(err, "logout request failed, local tokens cleared", nil)
		}
		return fmt.Errorf("logout failed: %w", err)
	}
	s.log(ports.LogLevelInfo, "logout successful", nil)
	return nil
}

// CurrentUser returns the signed-in account
func (s *AccountService) CurrentUser(ctx context.Context) (*User, error) {
	resp, err := s.session.Get(ctx, httpdomain.MePath)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	var user User
	if err := resp.Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return &user, nil
}

// ValidateCsrf asks the backend to check the current CSRF token
func (s *AccountService) ValidateCsrf(ctx context.Context) error {
	if _, err := s.session.Post(ctx, CsrfValidatePath, nil); err != nil {
		return fmt.Errorf("csrf validation failed: %w", err)
	}
	return nil
}

func (s *AccountService) log(level ports.LogLevel, message string, fields map[string]interface{}) {
	if s.logger != nil {
		s.logger.Log(level, message, fields)
	}
}
