// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The sync engine is split by concern: lifecycle.go enables and disables
// resources, batch.go runs the cursor state machine, webhook.go ingests
// provider notifications and renews watches. Every deferred step goes
// through the callback registry and the durable task scheduler so that
// no single invocation loops over a whole resource.
package services
