package file

import (
	"fmt"
	"time"

	"github.com/custodia-labs/syncd/internal/core/domain"
)

// Duration is a time.Duration written as a Go duration string in TOML
// ("15m", "24h").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q", domain.ErrInvalidInput, text)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the on-disk configuration.
type Config struct {
	// DataDir holds the SQLite database. Empty means ~/.syncd/data.
	DataDir string `toml:"data_dir,omitempty"`

	// StateDSN selects a separate state backend (postgres://, memory://).
	StateDSN string `toml:"state_dsn,omitempty"`

	Engine      EngineConfig        `toml:"engine"`
	Scheduler   SchedulerConfig     `toml:"scheduler"`
	Webhooks    WebhookConfig       `toml:"webhooks"`
	Connections []domain.Connection `toml:"connections"`
}

// EngineConfig tunes the sync engine.
type EngineConfig struct {
	PageSize      int      `toml:"page_size,omitempty"`
	RenewalMargin Duration `toml:"renewal_margin,omitempty"`
	PollInterval  Duration `toml:"poll_interval,omitempty"`
}

// SchedulerConfig tunes the task scheduler.
type SchedulerConfig struct {
	Tick        Duration `toml:"tick,omitempty"`
	MaxAttempts int      `toml:"max_attempts,omitempty"`
	BaseBackoff Duration `toml:"base_backoff,omitempty"`
	MaxBackoff  Duration `toml:"max_backoff,omitempty"`
	HistoryKeep int      `toml:"history_keep,omitempty"`
}

// WebhookConfig configures the inbound gateway.
type WebhookConfig struct {
	// Listen is the gateway's bind address.
	Listen string `toml:"listen,omitempty"`

	// PublicURL is the externally reachable base URL. Providers cannot
	// deliver to a loopback URL; those resources fall back to polling.
	PublicURL string `toml:"public_url,omitempty"`

	// AllowedOrigins enables CORS on the status endpoints.
	AllowedOrigins []string `toml:"allowed_origins,omitempty"`
}

// DefaultListen is the gateway bind address when none is configured.
const DefaultListen = "127.0.0.1:8787"

// SyncConfig returns the engine settings with defaults applied.
func (c *Config) SyncConfig() domain.SyncConfig {
	cfg := domain.DefaultSyncConfig()
	if c.Engine.PageSize > 0 {
		cfg.PageSize = c.Engine.PageSize
	}
	if c.Engine.RenewalMargin.Duration > 0 {
		cfg.RenewalMargin = c.Engine.RenewalMargin.Duration
	}
	if c.Engine.PollInterval.Duration != 0 {
		cfg.PollInterval = c.Engine.PollInterval.Duration
	}
	if cfg.PollInterval < 0 {
		cfg.PollInterval = 0
	}
	return cfg
}

// SchedulerConfig returns the scheduler settings with defaults applied.
func (c *Config) SchedulerConfig() domain.SchedulerConfig {
	cfg := domain.DefaultSchedulerConfig()
	s := c.Scheduler
	if s.Tick.Duration > 0 {
		cfg.Tick = s.Tick.Duration
	}
	if s.MaxAttempts > 0 {
		cfg.MaxAttempts = s.MaxAttempts
	}
	if s.BaseBackoff.Duration > 0 {
		cfg.BaseBackoff = s.BaseBackoff.Duration
	}
	if s.MaxBackoff.Duration > 0 {
		cfg.MaxBackoff = s.MaxBackoff.Duration
	}
	if s.HistoryKeep > 0 {
		cfg.HistoryKeep = s.HistoryKeep
	}
	return cfg
}

// ListenAddr returns the gateway bind address.
func (c *Config) ListenAddr() string {
	if c.Webhooks.Listen != "" {
		return c.Webhooks.Listen
	}
	return DefaultListen
}

// BaseURL returns the URL providers are given, defaulting to the listen
// address.
func (c *Config) BaseURL() string {
	if c.Webhooks.PublicURL != "" {
		return c.Webhooks.PublicURL
	}
	return "http://" + c.ListenAddr()
}

// Validate checks connections for missing or duplicate IDs.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Connections))
	for i, conn := range c.Connections {
		if conn.ID == "" {
			return fmt.Errorf("%w: connection %d has no id", domain.ErrInvalidInput, i)
		}
		if conn.Type == "" {
			return fmt.Errorf("%w: connection %q has no type", domain.ErrInvalidInput, conn.ID)
		}
		if seen[conn.ID] {
			return fmt.Errorf("%w: duplicate connection id %q", domain.ErrInvalidInput, conn.ID)
		}
		seen[conn.ID] = true
	}
	return nil
}
