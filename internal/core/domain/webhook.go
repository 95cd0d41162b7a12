package domain

import (
	"net/http"
	"net/url"
	"time"
)

// WebhookRequest is an inbound provider notification as received by the gateway.
type WebhookRequest struct {
	Method  string      `json:"method"`
	Headers http.Header `json:"headers,omitempty"`
	Query   url.Values  `json:"query,omitempty"`
	Body    []byte      `json:"body,omitempty"`
}

// Header returns the first value of the named header.
func (r *WebhookRequest) Header(name string) string {
	return r.Headers.Get(name)
}

// WebhookResponse is what the gateway writes back to the provider.
type WebhookResponse struct {
	Status      int    `json:"status"`
	Body        string `json:"body,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

// WebhookAccepted is the response for processed or ignored notifications.
func WebhookAccepted() *WebhookResponse {
	return &WebhookResponse{Status: http.StatusOK}
}

// WebhookRejected is returned when verification fails. It carries no body
// so nothing about the failure leaks to the caller.
func WebhookRejected() *WebhookResponse {
	return &WebhookResponse{Status: http.StatusUnauthorized}
}

// WebhookRegistration records a provider-side subscription.
type WebhookRegistration struct {
	// ID is the provider's subscription or channel identifier.
	ID string `json:"id"`

	// URL is the gateway URL the provider delivers to.
	URL string `json:"url"`

	// ProviderResourceID is a secondary handle some providers require to
	// stop a subscription (e.g., Google's channel resourceId).
	ProviderResourceID string `json:"providerResourceId,omitempty"`

	// Expiry is when the subscription lapses. Nil means it does not expire.
	Expiry *time.Time `json:"expiry,omitempty"`
}

// EventKind classifies a parsed webhook notification.
type EventKind string

// Webhook event kinds.
const (
	// EventHandshake is a subscription confirmation needing no sync.
	EventHandshake EventKind = "handshake"
	// EventSignal says "something changed" without saying what.
	EventSignal EventKind = "signal"
	// EventChange carries the changed item.
	EventChange EventKind = "change"
	// EventDelete reports a removed item.
	EventDelete EventKind = "delete"
	// EventIgnored is a notification that needs no action.
	EventIgnored EventKind = "ignored"
)
