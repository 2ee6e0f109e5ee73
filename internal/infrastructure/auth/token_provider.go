package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"ytd.app/adminctl/internal/core/domain"
	httpdomain "ytd.app/adminctl/internal/core/domain/http"
	"ytd.app/adminctl/internal/core/ports"
)

// HTTPTokenProvider performs the refresh call against the admin backend
type HTTPTokenProvider struct {
	endpoint   httpdomain.BackendEndpoint
	httpClient *http.Client
}

// NewHTTPTokenProvider creates a new HTTP-based token provider.
// A nil client uses http.DefaultClient; timeouts come from the caller's context.
func NewHTTPTokenProvider(endpoint httpdomain.BackendEndpoint, client *http.Client) *HTTPTokenProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTokenProvider{endpoint: endpoint, httpClient: client}
}

// RefreshToken exchanges a refresh token for a new credential.
// Any non-2xx status or a response without an access token is a *domain.RefreshFailedError.
func (p *HTTPTokenProvider) RefreshToken(ctx context.Context, refreshToken string) (domain.AccessCredential, error) {
	requestBody, err := json.Marshal(domain.RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return domain.AccessCredential{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := p.endpoint.BaseURL + httpdomain.RefreshPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestBody))
	if err != nil {
		return domain.AccessCredential{}, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if p.endpoint.UserAgent != "" {
		req.Header.Set("User-Agent", p.endpoint.UserAgent)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return domain.AccessCredential{}, &domain.RefreshFailedError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.AccessCredential{}, &domain.RefreshFailedError{
			StatusCode: resp.StatusCode,
			Cause:      fmt.Errorf("refresh request failed with status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var tokenResp domain.TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return domain.AccessCredential{}, &domain.RefreshFailedError{Cause: fmt.Errorf("failed to decode response: %w", err)}
	}

	cred := tokenResp.ToCredential()
	if cred.AccessToken == "" {
		return domain.AccessCredential{}, &domain.RefreshFailedError{Cause: domain.ErrEmptyAccessToken}
	}
	return cred, nil
}

var _ ports.TokenProvider = (*HTTPTokenProvider)(nil)
