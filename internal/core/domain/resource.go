package domain

import "time"

// Resource is a syncable container in a provider: a repository,
// a calendar or a drive. Hosts call these channels.
type Resource struct {
	// ID is the provider's stable identifier for the resource.
	ID string `json:"id"`

	// Name is the human-readable name.
	Name string `json:"name"`

	// Kind describes the container (e.g., "repository", "calendar").
	Kind string `json:"kind,omitempty"`

	// Primary marks the provider's default resource, if any.
	Primary bool `json:"primary,omitempty"`
}

// ResourceRef addresses a resource within a connection.
// It is the bound argument of every engine operation.
type ResourceRef struct {
	ConnectionID string `json:"connectionId"`
	ResourceID   string `json:"resourceId"`
}

// ResourceState is the lifecycle state of a resource.
type ResourceState string

// Resource lifecycle states.
const (
	ResourceStateDisabled     ResourceState = "disabled"
	ResourceStateEnabling     ResourceState = "enabling"
	ResourceStateSyncing      ResourceState = "syncing"
	ResourceStateIdle         ResourceState = "idle"
	ResourceStateDisabling    ResourceState = "disabling"
	ResourceStateErrorBackoff ResourceState = "error_backoff"
)

// ResourceStatus summarises a resource's sync progress for display.
type ResourceStatus struct {
	Ref            ResourceRef
	State          ResourceState
	Enabled        bool
	BatchNumber    int
	ItemsProcessed int
	InitialSync    bool
	Sequence       int
	WebhookURL     string
	WatchExpiry    *time.Time
	HasCheckpoint  bool
	LastError      string
}
