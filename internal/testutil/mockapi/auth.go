package mockapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type accessClaims struct {
	Email      string `json:"email"`
	Role       string `json:"role"`
	Generation uint64 `json:"gen"`
	jwt.RegisteredClaims
}

// Tokens is a login or refresh response
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// User is the body of GET /auth/me
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type ctxKey struct{}

// IssueTokens creates a fresh token pair for email without going through login
func (s *Server) IssueTokens(email string) (Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(email)
}

func (s *Server) issueLocked(email string) (Tokens, error) {
	acct, ok := s.accounts[email]
	if !ok {
		return Tokens{}, errors.New("unknown account")
	}
	now := s.now()
	claims := accessClaims{
		Email:      email,
		Role:       acct.role,
		Generation: s.generation,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Tokens{}, err
	}
	refresh := uuid.NewString()
	s.refreshTokens[refresh] = email
	return Tokens{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be JSON")
		return
	}

	s.mu.Lock()
	acct, ok := s.accounts[body.Email]
	if !ok || acct.password != body.Password {
		s.mu.Unlock()
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		return
	}
	tokens, err := s.issueLocked(body.Email)
	s.mu.Unlock()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "refresh_token is required")
		return
	}

	s.mu.Lock()
	email, ok := s.refreshTokens[body.RefreshToken]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusUnauthorized, "invalid_refresh_token", "")
		return
	}
	// rotation: the presented refresh token is single use
	delete(s.refreshTokens, body.RefreshToken)
	tokens, err := s.issueLocked(email)
	s.mu.Unlock()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	delete(s.refreshTokens, body.RefreshToken)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	writeJSON(w, http.StatusOK, User{ID: claims.ID, Email: claims.Email, Role: claims.Role})
}

func (s *Server) csrfToken(w http.ResponseWriter, r *http.Request) {
	token := uuid.NewString()
	expiresAt := s.now().Add(s.csrfTTL)

	s.mu.Lock()
	s.csrfTokens[token] = expiresAt
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{
		"csrfToken": token,
		"expiresAt": expiresAt.UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) csrfValidate(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, "missing_token", "")
			return
		}

		claims := &accessClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			return s.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token", "")
			return
		}

		s.mu.Lock()
		stale := claims.Generation != s.generation
		s.mu.Unlock()
		if stale {
			writeError(w, http.StatusUnauthorized, "token_expired", "")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, claims)))
	})
}

func (s *Server) requireCsrf(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get("X-CSRF-Token")
		s.mu.Lock()
		expiresAt, ok := s.csrfTokens[token]
		s.mu.Unlock()
		if token == "" || !ok || !s.now().Before(expiresAt) {
			writeError(w, http.StatusBadRequest, "csrf_failed", "CSRF token missing or invalid")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claimsFrom(r.Context()).Role != role {
				writeJSON(w, http.StatusForbidden, map[string]string{"reason": "not_" + role})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func claimsFrom(ctx context.Context) *accessClaims {
	if c, ok := ctx.Value(ctxKey{}).(*accessClaims); ok {
		return c
	}
	return &accessClaims{}
}
