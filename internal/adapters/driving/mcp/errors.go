// Package mcp provides an MCP (Model Context Protocol) server adapter for syncd.
// It lets AI assistants inspect connections, toggle channels and read
// synced activities.
package mcp

import "errors"

// ErrMissingEngine is returned when the sync engine is not provided.
var ErrMissingEngine = errors.New("mcp: sync engine is required")
