package github

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/custodia-labs/syncd/internal/core/domain"
)

// Setting keys understood by the GitHub connector.
const (
	SettingRepos           = "repos"
	SettingIncludePulls    = "include_pulls"
	SettingIncludeForks    = "include_forks"
	SettingIncludeArchived = "include_archived"
	SettingBaseURL         = "base_url"
)

// Config holds the parsed settings for a GitHub connection.
type Config struct {
	// Repos restricts resources to these owner/name pairs. Empty means all.
	Repos []string

	// IncludePulls syncs pull requests alongside issues.
	IncludePulls bool

	IncludeForks    bool
	IncludeArchived bool

	// BaseURL overrides the API root (GitHub Enterprise Server, tests).
	BaseURL string
}

// ConfigKeys describes the settings for the connector registry.
func ConfigKeys() []domain.ConfigKey {
	return []domain.ConfigKey{
		{Key: SettingRepos, Description: "Comma-separated owner/name allowlist"},
		{Key: SettingIncludePulls, Description: "Sync pull requests", Default: "true"},
		{Key: SettingIncludeForks, Description: "List forked repositories", Default: "false"},
		{Key: SettingIncludeArchived, Description: "List archived repositories", Default: "false"},
		{Key: SettingBaseURL, Description: "API base URL for GitHub Enterprise Server"},
	}
}

// ParseConfig parses a connection's settings into a Config.
// Every setting is optional.
func ParseConfig(conn domain.Connection) (*Config, error) {
	cfg := &Config{
		Repos:   parseList(conn.Setting(SettingRepos, "")),
		BaseURL: conn.Setting(SettingBaseURL, ""),
	}

	var err error
	if cfg.IncludePulls, err = parseBool(conn, SettingIncludePulls, true); err != nil {
		return nil, err
	}
	if cfg.IncludeForks, err = parseBool(conn, SettingIncludeForks, false); err != nil {
		return nil, err
	}
	if cfg.IncludeArchived, err = parseBool(conn, SettingIncludeArchived, false); err != nil {
		return nil, err
	}

	for _, repo := range cfg.Repos {
		if owner, name, ok := strings.Cut(repo, "/"); !ok || owner == "" || name == "" {
			return nil, fmt.Errorf("%w: github repo %q must be owner/name", domain.ErrInvalidInput, repo)
		}
	}
	return cfg, nil
}

// Allows reports whether the repository passes the allowlist.
func (c *Config) Allows(fullName string) bool {
	if len(c.Repos) == 0 {
		return true
	}
	for _, r := range c.Repos {
		if strings.EqualFold(r, fullName) {
			return true
		}
	}
	return false
}

func parseBool(conn domain.Connection, key string, def bool) (bool, error) {
	raw := conn.Setting(key, "")
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: github setting %s: %q is not a boolean", domain.ErrInvalidInput, key, raw)
	}
	return v, nil
}

// parseList parses a comma-separated string, dropping blanks.
func parseList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
