package apiclient

import (
	"context"
	"net/http"
)

// TokenRefreshTriggerStatus is the response status that starts a token refresh.
const TokenRefreshTriggerStatus = http.StatusUnauthorized

// IsRetryHeader marks the request re-issued after a token refresh. Its
// presence suppresses any further refresh for that call.
const IsRetryHeader = "X-Is-Retry"

// TokenRefreshConfig lets the application plug in its own credentials. The
// client knows nothing about the auth scheme beyond a token string and the
// header built from it. An empty token means "no token".
type TokenRefreshConfig struct {
	// GetAccessToken returns the current access token.
	GetAccessToken func(ctx context.Context) (string, error)
	// GetAuthorizationHeader builds the auth headers for token. Defaults to
	// BearerAuthorization.
	GetAuthorizationHeader func(token string) http.Header
	// RefreshToken obtains a new access token. An empty token or an error
	// counts as a failed refresh.
	RefreshToken func(ctx context.Context) (string, error)
}

// BearerAuthorization returns an "Authorization: Bearer <token>" header.
func BearerAuthorization(token string) http.Header {
	h := make(http.Header, 1)
	h.Set("Authorization", "Bearer "+token)
	return h
}

func (t *TokenRefreshConfig) withDefaults() *TokenRefreshConfig {
	if t == nil {
		return nil
	}
	cp := *t
	if cp.GetAuthorizationHeader == nil {
		cp.GetAuthorizationHeader = BearerAuthorization
	}
	if cp.GetAccessToken == nil {
		cp.GetAccessToken = func(context.Context) (string, error) { return "", nil }
	}
	if cp.RefreshToken == nil {
		cp.RefreshToken = func(context.Context) (string, error) { return "", nil }
	}
	return &cp
}
