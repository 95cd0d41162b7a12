package driven

import (
	"context"

	"github.com/custodia-labs/syncd/internal/core/domain"
)

// ConnectorBuilder creates a Connector from a Connection.
// TokenProvider may be nil for connectors that don't require authentication.
type ConnectorBuilder func(conn domain.Connection, tokenProvider TokenProvider) (Connector, error)

// ConnectorFactory creates connectors from connection configuration.
// It maintains a registry of connector types and their builders.
type ConnectorFactory interface {
	// Create returns a Connector for the given connection.
	// Returns ErrUnsupportedType if the connection type is unknown.
	Create(ctx context.Context, conn domain.Connection) (Connector, error)

	// Register adds a connector builder for the given type.
	Register(connectorType domain.ConnectorType, builder ConnectorBuilder)

	// SupportedTypes returns all registered connector types sorted by ID.
	SupportedTypes() []domain.ConnectorType
}
