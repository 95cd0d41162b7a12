package driven

import (
	"context"

	"github.com/custodia-labs/syncd/internal/core/domain"
)

// ConnectionStore resolves configured connector instances.
type ConnectionStore interface {
	// Get returns a connection by ID or domain.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.Connection, error)

	// List returns all configured connections.
	List(ctx context.Context) ([]domain.Connection, error)
}
