package domain

// Connection is a configured connector instance: one provider account
// with its credentials and settings. All per-resource state is
// namespaced by the connection ID.
type Connection struct {
	// ID is the unique identifier for the connection.
	ID string `toml:"id" json:"id"`

	// Type identifies the connector type (e.g., "github", "google-calendar").
	Type string `toml:"type" json:"type"`

	// Name is the human-readable name for this connection.
	Name string `toml:"name" json:"name,omitempty"`

	// Token is the access token or PAT used by the provider client.
	Token string `toml:"token" json:"-"`

	// Settings contains connector-specific configuration.
	Settings map[string]string `toml:"settings" json:"settings,omitempty"`
}

// Setting returns a setting value or def when unset.
func (c *Connection) Setting(key, def string) string {
	if v, ok := c.Settings[key]; ok && v != "" {
		return v
	}
	return def
}

// DisplayName returns Name, falling back to ID.
func (c *Connection) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}
