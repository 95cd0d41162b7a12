// Package driven defines the interfaces that core calls OUT to infrastructure:
// state and activity storage, the task queue, the webhook gateway, and the
// provider connectors.
package driven
