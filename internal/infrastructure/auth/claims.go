package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"ytd.app/adminctl/internal/core/domain"
)

// InspectAccessToken reads the registered claims of a JWT access token without
// verifying its signature. The result is for display only.
func InspectAccessToken(token string) (domain.TokenClaims, error) {
	parser := jwt.NewParser()
	claims := jwt.RegisteredClaims{}
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return domain.TokenClaims{}, fmt.Errorf("failed to parse access token: %w", err)
	}

	out := domain.TokenClaims{Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}
