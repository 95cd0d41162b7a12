package domain

// Capabilities describes optional behaviour a connector supports beyond
// batch fetching.
type Capabilities struct {
	// Webhooks indicates push notifications can be registered.
	Webhooks bool
	// WatchRenewal indicates webhook subscriptions expire and must be renewed.
	WatchRenewal bool
	// DeltaSync indicates the provider issues delta tokens for incremental passes.
	DeltaSync bool
	// Comments indicates comments can be written back to items.
	Comments bool
}

// ConnectorType describes a supported connector.
type ConnectorType struct {
	// ID is the unique identifier (e.g., "github", "google-calendar").
	ID string
	// Name is the human-readable display name.
	Name string
	// Description provides a brief explanation of the connector.
	Description string
	// Capabilities lists what the connector can do.
	Capabilities Capabilities
	// ConfigKeys lists the settings accepted by this connector.
	ConfigKeys []ConfigKey
}

// ConfigKey describes a configuration field for a connector.
type ConfigKey struct {
	// Key is the configuration key name.
	Key string
	// Description explains what this field is for.
	Description string
	// Default is the default value for this field.
	Default string
	// Required indicates whether this field must be provided.
	Required bool
}
