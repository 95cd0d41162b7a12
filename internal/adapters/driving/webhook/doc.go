// Package webhook implements the inbound webhook gateway.
//
// CreateWebhook hands out URLs of the form <base>/webhooks/<uuid>. Each
// route maps to a callback token in the state store. A request to the
// route runs that callback with a domain.WebhookRequest, and the
// callback's domain.WebhookResponse is written back to the provider.
package webhook
