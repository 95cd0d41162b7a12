package google

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/syncd/internal/core/domain"
	"github.com/custodia-labs/syncd/internal/core/ports/driven"
)

// tokenSource adapts driven.TokenProvider to oauth2.TokenSource so Google
// API clients share the connection's credential handling.
type tokenSource struct {
	ctx      context.Context
	provider driven.TokenProvider
}

// NewTokenSource creates an oauth2.TokenSource from a TokenProvider.
// The provider is asked for a token on every request and is expected to
// cache and refresh it itself.
func NewTokenSource(ctx context.Context, provider driven.TokenProvider) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, provider: provider}
}

// Token implements oauth2.TokenSource.
func (t *tokenSource) Token() (*oauth2.Token, error) {
	if t.provider == nil {
		return nil, domain.ErrAuthRequired
	}
	accessToken, err := t.provider.GetToken(t.ctx)
	if err != nil {
		return nil, fmt.Errorf("google token: %w", err)
	}
	if accessToken == "" {
		return nil, domain.ErrAuthRequired
	}
	return &oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}, nil
}
