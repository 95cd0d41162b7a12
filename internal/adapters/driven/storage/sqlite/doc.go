// Package sqlite provides a SQLite-backed implementation of the engine's
// persistence ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. One database connection serves:
//
//   - StateStore: connector state (cursors, checkpoints, callback tokens)
//   - ActivityStore: canonical activities merged by source key
//   - SchedulerStore: durable tasks and their execution history
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.syncd/data/syncd.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
