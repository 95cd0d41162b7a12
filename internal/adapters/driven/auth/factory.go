package auth

import (
	"fmt"
	"os"
	"strings"

	"github.com/custodia-labs/syncd/internal/core/domain"
	"github.com/custodia-labs/syncd/internal/core/ports/driven"
)

// Connection settings read by ForConnection.
const (
	SettingClientID     = "client_id"
	SettingClientSecret = "client_secret"
	SettingRefreshToken = "refresh_token"
	SettingTokenURL     = "token_url"
)

// envPrefix marks a value to be read from the environment ("env:GITHUB_TOKEN").
const envPrefix = "env:"

// ForConnection creates the TokenProvider a connection's credentials call
// for: refresh-token OAuth when a refresh token is configured, a static
// token when one is set, and no auth otherwise.
func ForConnection(conn domain.Connection) (driven.TokenProvider, error) {
	refresh := resolve(conn.Setting(SettingRefreshToken, ""))
	if refresh != "" {
		return NewRefreshTokenProvider(OAuthSettings{
			ClientID:     resolve(conn.Setting(SettingClientID, "")),
			ClientSecret: resolve(conn.Setting(SettingClientSecret, "")),
			RefreshToken: refresh,
			TokenURL:     conn.Setting(SettingTokenURL, ""),
		})
	}

	if token := resolve(conn.Token); token != "" {
		return NewStaticTokenProvider(token), nil
	}
	if strings.HasPrefix(conn.Token, envPrefix) {
		return nil, fmt.Errorf("%w: %s is not set for connection %q",
			domain.ErrAuthRequired, strings.TrimPrefix(conn.Token, envPrefix), conn.ID)
	}

	return NewNullTokenProvider(), nil
}

// resolve expands env: references.
func resolve(value string) string {
	if name, ok := strings.CutPrefix(value, envPrefix); ok {
		return os.Getenv(name)
	}
	return value
}
