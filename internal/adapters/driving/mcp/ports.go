package mcp

import (
	"github.com/custodia-labs/syncd/internal/core/ports/driven"
	"github.com/custodia-labs/syncd/internal/core/ports/driving"
)

// Ports aggregates the interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Engine drives channel lifecycle and status.
	Engine driving.SyncEngine

	// Connections lists configured connections.
	Connections driven.ConnectionStore

	// Activities reads synced activities.
	Activities driven.ActivityStore
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Engine == nil {
		return ErrMissingEngine
	}
	// Connections and Activities are optional.
	return nil
}
