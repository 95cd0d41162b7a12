// Package domain defines the core business entities for syncd.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Activity: A canonical record upserted into the destination
//   - Note: A keyed body or comment attached to an activity
//   - Resource: A syncable container in a provider (repo, calendar, drive)
//   - SyncState: The cursor state machine for one resource
//   - CallbackRef/CallbackToken: Persistable references to operations
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
