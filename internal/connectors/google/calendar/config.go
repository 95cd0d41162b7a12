package calendar

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/custodia-labs/syncd/internal/connectors/google"
	"github.com/custodia-labs/syncd/internal/core/domain"
)

// Setting keys understood by the calendar connector.
const (
	SettingCalendarIDs  = "calendar_ids"
	SettingSingleEvents = "single_events"
)

// Config holds Google Calendar connector configuration.
type Config struct {
	// CalendarIDs limits resources to specific calendars. Empty means all.
	CalendarIDs []string

	// SingleEvents expands recurring events into instances.
	SingleEvents bool

	// Endpoint overrides the API root.
	Endpoint string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{SingleEvents: true}
}

// ConfigKeys describes the settings for the connector registry.
func ConfigKeys() []domain.ConfigKey {
	return []domain.ConfigKey{
		{Key: SettingCalendarIDs, Description: "Comma-separated calendar IDs to offer as channels"},
		{Key: SettingSingleEvents, Description: "Expand recurring events into instances", Default: "true"},
		{Key: google.SettingEndpoint, Description: "Calendar API endpoint override"},
	}
}

// ParseConfig extracts configuration from a connection.
func ParseConfig(conn domain.Connection) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Endpoint = conn.Setting(google.SettingEndpoint, "")

	if val := conn.Setting(SettingCalendarIDs, ""); val != "" {
		for _, id := range strings.Split(val, ",") {
			if id = strings.TrimSpace(id); id != "" {
				cfg.CalendarIDs = append(cfg.CalendarIDs, id)
			}
		}
	}

	if val := conn.Setting(SettingSingleEvents, ""); val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return nil, fmt.Errorf("%w: calendar setting %s: %q is not a boolean", domain.ErrInvalidInput, SettingSingleEvents, val)
		}
		cfg.SingleEvents = b
	}
	return cfg, nil
}

// Allows reports whether a calendar passes the allowlist.
func (c *Config) Allows(calendarID string) bool {
	if len(c.CalendarIDs) == 0 {
		return true
	}
	for _, id := range c.CalendarIDs {
		if id == calendarID {
			return true
		}
	}
	return false
}
