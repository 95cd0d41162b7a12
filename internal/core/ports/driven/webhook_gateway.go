package driven

import (
	"context"

	"github.com/custodia-labs/syncd/internal/core/domain"
)

// WebhookGateway allocates public URLs that route inbound HTTP requests
// to a callback token.
type WebhookGateway interface {
	// CreateWebhook returns a URL whose requests run handler with a
	// domain.WebhookRequest payload.
	CreateWebhook(ctx context.Context, handler domain.CallbackToken) (string, error)

	// DeleteWebhook releases a URL. Unknown URLs are not an error.
	DeleteWebhook(ctx context.Context, url string) error
}
