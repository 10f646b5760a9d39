package tokenauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/shopfront-dev/apiclient"
)

// ErrNoRefreshToken is returned by Refresh when the store holds no refresh
// token to exchange.
var ErrNoRefreshToken = errors.New("tokenauth: no refresh token stored")

// Provider reads access tokens from a FileStore and refreshes them through an
// OAuth2 token endpoint, persisting every new token.
type Provider struct {
	store      *FileStore
	oauth      *oauth2.Config
	httpClient *http.Client
	logger     zerolog.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithHTTPClient sets the client used to reach the token endpoint.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = client
	}
}

// WithLogger sets the logger for refresh events.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// NewProvider returns a Provider over store and the OAuth2 client config.
func NewProvider(store *FileStore, config *oauth2.Config, opts ...Option) *Provider {
	p := &Provider{
		store:  store,
		oauth:  config,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AccessToken returns the stored access token, or "" when there is none.
// Expired tokens are returned as is; the server's 401 drives the refresh.
func (p *Provider) AccessToken(ctx context.Context) (string, error) {
	tok, err := p.store.Load(ctx)
	if err != nil {
		return "", err
	}
	if tok == nil {
		return "", nil
	}
	return tok.AccessToken, nil
}

// Refresh exchanges the stored refresh token for a new access token and
// saves the result.
func (p *Provider) Refresh(ctx context.Context) (string, error) {
	current, err := p.store.Load(ctx)
	if err != nil {
		return "", err
	}
	if current == nil || current.RefreshToken == "" {
		return "", ErrNoRefreshToken
	}

	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}

	// an expired copy forces the token source to hit the endpoint
	stale := *current
	stale.Expiry = time.Now().Add(-time.Minute)

	tok, err := p.oauth.TokenSource(ctx, &stale).Token()
	if err != nil {
		p.logger.Warn().Err(err).Msg("token refresh failed")
		return "", fmt.Errorf("refreshing token: %w", err)
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = current.RefreshToken
	}

	if err := p.store.Save(ctx, tok); err != nil {
		// the new token is still usable for this process
		p.logger.Warn().Err(err).Str("path", p.store.Path()).Msg("failed to persist refreshed token")
	}

	p.logger.Debug().Time("expiry", tok.Expiry).Msg("token refreshed")
	return tok.AccessToken, nil
}

// Config returns a TokenRefreshConfig wired to this provider.
func (p *Provider) Config() *apiclient.TokenRefreshConfig {
	return &apiclient.TokenRefreshConfig{
		GetAccessToken:         p.AccessToken,
		GetAuthorizationHeader: apiclient.BearerAuthorization,
		RefreshToken:           p.Refresh,
	}
}
