package auth

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/custodia-labs/syncd/internal/core/domain"
	"github.com/custodia-labs/syncd/internal/core/ports/driven"
)

// Ensure RefreshTokenProvider implements the TokenProvider interface.
var _ driven.TokenProvider = (*RefreshTokenProvider)(nil)

// OAuthSettings are the connection settings for refresh-token auth.
type OAuthSettings struct {
	ClientID     string
	ClientSecret string
	RefreshToken string

	// TokenURL defaults to Google's token endpoint.
	TokenURL string
}

// RefreshTokenProvider exchanges a long-lived refresh token for access
// tokens, caching each until shortly before it expires.
type RefreshTokenProvider struct {
	mu     sync.Mutex
	source oauth2.TokenSource
	last   *oauth2.Token
}

// NewRefreshTokenProvider creates a provider for settings.
func NewRefreshTokenProvider(settings OAuthSettings) (*RefreshTokenProvider, error) {
	if settings.ClientID == "" || settings.RefreshToken == "" {
		return nil, fmt.Errorf("%w: client_id and refresh_token are required", domain.ErrAuthInvalid)
	}
	endpoint := google.Endpoint
	if settings.TokenURL != "" {
		endpoint = oauth2.Endpoint{TokenURL: settings.TokenURL, AuthStyle: oauth2.AuthStyleInParams}
	}
	cfg := &oauth2.Config{
		ClientID:     settings.ClientID,
		ClientSecret: settings.ClientSecret,
		Endpoint:     endpoint,
	}
	// The token source outlives any single request context.
	src := cfg.TokenSource(context.Background(), &oauth2.Token{RefreshToken: settings.RefreshToken})
	return &RefreshTokenProvider{source: oauth2.ReuseTokenSource(nil, src)}, nil
}

// GetToken returns a valid access token, refreshing if necessary.
func (p *RefreshTokenProvider) GetToken(_ context.Context) (string, error) {
	tok, err := p.source.Token()
	if err != nil {
		return "", fmt.Errorf("%w: refreshing token: %v", domain.ErrAuthInvalid, err)
	}
	p.mu.Lock()
	p.last = tok
	p.mu.Unlock()
	return tok.AccessToken, nil
}

// IsAuthenticated returns true if the last token obtained is still valid.
func (p *RefreshTokenProvider) IsAuthenticated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last.Valid()
}

// TokenSource exposes the underlying oauth2 source for clients that take
// one directly.
func (p *RefreshTokenProvider) TokenSource() oauth2.TokenSource {
	return p.source
}
