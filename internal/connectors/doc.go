// Package connectors wires the provider connectors into a
// driven.ConnectorFactory. Each subpackage implements driven.Connector for
// one provider (github, google/calendar, google/drive) plus whichever
// optional capabilities it supports.
//
// Connectors are registered with the Factory at startup; the sync engine
// creates one per batch and closes it afterwards.
package connectors
