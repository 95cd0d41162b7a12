package driving

import (
	"context"

	"github.com/custodia-labs/syncd/internal/core/domain"
)

// SyncOptions starts a sync for one resource.
type SyncOptions struct {
	ConnectionID string
	ResourceID   string
	Window       domain.SyncWindow
}

// BatchResult reports what one batch did.
type BatchResult struct {
	BatchNumber    int
	ItemsProcessed int
	Failed         int
	Done           bool
	Resynced       bool
}

// SyncEngine drives resource lifecycle, batch syncs and webhook ingestion.
type SyncEngine interface {
	// GetChannels lists the resources a connection can sync.
	GetChannels(ctx context.Context, connectionID string) ([]domain.Resource, error)

	// OnChannelEnabled enables a resource with the default host callbacks.
	OnChannelEnabled(ctx context.Context, connectionID string, channel domain.Resource) error

	// OnChannelDisabled disables a resource and clears its state.
	OnChannelDisabled(ctx context.Context, connectionID string, channel domain.Resource) error

	// StartSync enables a resource delivering items to onItem. onDisable,
	// when set, runs once with the resource ID after the resource is disabled.
	StartSync(ctx context.Context, opts SyncOptions, onItem domain.CallbackRef, onDisable *domain.CallbackRef) error

	// StopSync disables a resource.
	StopSync(ctx context.Context, connectionID, resourceID string) error

	// SyncBatch runs one batch for a resource.
	SyncBatch(ctx context.Context, connectionID, resourceID string) (*BatchResult, error)

	// StartIncrementalSync begins a delta pass unless one is running.
	StartIncrementalSync(ctx context.Context, connectionID, resourceID string) error

	// OnWebhook ingests a provider notification.
	OnWebhook(ctx context.Context, connectionID, resourceID string, req *domain.WebhookRequest) (*domain.WebhookResponse, error)

	// RenewWatch replaces an expiring subscription.
	RenewWatch(ctx context.Context, connectionID, resourceID string) error

	// AddComment writes a comment back to an item.
	AddComment(ctx context.Context, connectionID, resourceID, itemID, body string) (*domain.Note, error)

	// Status returns sync status for a resource.
	Status(ctx context.Context, connectionID, resourceID string) (*domain.ResourceStatus, error)
}
