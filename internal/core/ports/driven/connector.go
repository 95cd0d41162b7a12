package driven

import (
	"context"

	"github.com/custodia-labs/syncd/internal/core/domain"
)

// Connector fetches items from one provider account.
// Each connector type (github, google-calendar, google-drive) implements this
// interface; optional behaviour is exposed through the capability interfaces
// below and discovered with type assertions.
type Connector interface {
	// Type returns the connector type identifier.
	Type() string

	// Capabilities returns what this connector supports.
	Capabilities() domain.Capabilities

	// ListResources returns the syncable containers visible to the account.
	ListResources(ctx context.Context) ([]domain.Resource, error)

	// FetchPage fetches one bounded page for a resource.
	// An empty state.Cursor starts from the beginning (or from the window in
	// state.Min/Max for initial passes). A provider rejecting the cursor
	// returns an error wrapping domain.ErrCursorExpired.
	FetchPage(ctx context.Context, resourceID string, state domain.SyncState, pageSize int) (*Page, error)

	// Transform maps a raw provider item to a canonical activity.
	// Unread and Archived are left nil; the engine applies the
	// initial/incremental policy.
	Transform(ctx context.Context, resourceID string, item RawItem) (*domain.Activity, error)

	// Close releases resources.
	Close() error
}

// Page is one page of provider items.
type Page struct {
	// Items are the raw items in provider order.
	Items []RawItem

	// NextCursor resumes pagination. Meaningful only when More is true.
	NextCursor string

	// More reports whether further pages remain in this pass.
	More bool

	// Checkpoint is the delta token to resume from on the next
	// incremental pass. Set on the last page only.
	Checkpoint string
}

// RawItem is a provider item before transformation.
type RawItem struct {
	// ID is the provider's immutable identifier.
	ID string

	// Deleted marks a removed or cancelled item.
	Deleted bool

	// Payload is the connector's typed provider struct.
	Payload any
}

// WebhookEvent is a verified, parsed webhook notification.
type WebhookEvent struct {
	Kind domain.EventKind

	// Activity is a partial activity for EventChange and EventDelete.
	// Fields not present in the notification stay nil.
	Activity *domain.Activity

	// Reply overrides the default response, e.g. for handshakes.
	Reply *domain.WebhookResponse
}

// WebhookConnector is implemented by connectors that support push
// notifications.
type WebhookConnector interface {
	// RegisterWebhook subscribes url to changes on resourceID. secret is
	// the shared secret or channel token the provider echoes back.
	RegisterWebhook(ctx context.Context, resourceID, url, secret string) (*domain.WebhookRegistration, error)

	// UnregisterWebhook removes a subscription.
	UnregisterWebhook(ctx context.Context, resourceID string, reg domain.WebhookRegistration) error

	// VerifyWebhook checks the request against secret in constant time.
	// Returns an error wrapping domain.ErrSignatureInvalid on mismatch.
	VerifyWebhook(req *domain.WebhookRequest, secret string) error

	// ParseWebhook classifies a verified request.
	ParseWebhook(ctx context.Context, resourceID string, req *domain.WebhookRequest) (*WebhookEvent, error)
}

// WatchRenewer is implemented by connectors whose subscriptions expire.
type WatchRenewer interface {
	// RenewWatch replaces reg with a fresh subscription.
	RenewWatch(ctx context.Context, resourceID, secret string, reg domain.WebhookRegistration) (*domain.WebhookRegistration, error)
}

// Commenter is implemented by connectors that can write comments back.
type Commenter interface {
	// AddComment posts body on the item and returns the new comment's note.
	AddComment(ctx context.Context, resourceID, itemID, body string) (*domain.Note, error)
}
