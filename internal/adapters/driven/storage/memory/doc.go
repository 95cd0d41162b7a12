// Package memory provides in-memory implementations of the persistence
// ports. Nothing survives a restart; they back `syncd run --ephemeral`
// and tests.
package memory
