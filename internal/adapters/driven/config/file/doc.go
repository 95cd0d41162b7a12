// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data to the local filesystem.
//
// Adapters:
//   - Store: TOML configuration (engine, scheduler and webhook settings,
//     connections) with live reload through fsnotify
//   - Store also serves as the driven.ConnectionStore
package file
