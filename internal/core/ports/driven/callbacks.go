package driven

import (
	"context"
	"encoding/json"

	"github.com/custodia-labs/syncd/internal/core/domain"
)

// CallbackRegistry turns operation references into persistable tokens
// and executes them later, possibly in another process.
type CallbackRegistry interface {
	// Create persists ref and returns a token for it.
	Create(ctx context.Context, ref domain.CallbackRef) (domain.CallbackToken, error)

	// Run executes the operation behind token with a runtime payload and
	// returns the handler's JSON-encoded result, if any.
	// Returns domain.ErrCallbackNotFound for unknown or deleted tokens.
	Run(ctx context.Context, token domain.CallbackToken, payload any) (json.RawMessage, error)

	// Delete removes token. Deleting an unknown token is not an error.
	Delete(ctx context.Context, token domain.CallbackToken) error
}
