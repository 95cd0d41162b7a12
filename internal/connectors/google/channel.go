package google

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/syncd/internal/core/domain"
)

// Push notification headers.
const (
	HeaderChannelID     = "X-Goog-Channel-ID"
	HeaderChannelToken  = "X-Goog-Channel-Token"
	HeaderResourceState = "X-Goog-Resource-State"
	HeaderResourceID    = "X-Goog-Resource-ID"
)

// ChannelType is the delivery mechanism requested for watch channels.
const ChannelType = "web_hook"

// ChannelTTL is the lifetime requested for new channels. Google may grant
// less; the registration records what was granted.
const ChannelTTL = 7 * 24 * time.Hour

// NewChannelID returns a fresh channel identifier.
func NewChannelID() string {
	return uuid.NewString()
}

// ChannelExpiration returns the requested expiry in Unix milliseconds.
func ChannelExpiration(now time.Time) int64 {
	return now.Add(ChannelTTL).UnixMilli()
}

// Registration converts a granted channel into a webhook registration.
func Registration(channelID, resourceID, address string, expirationMillis int64) *domain.WebhookRegistration {
	reg := &domain.WebhookRegistration{
		ID:                 channelID,
		URL:                address,
		ProviderResourceID: resourceID,
	}
	if expirationMillis > 0 {
		reg.Expiry = domain.Ptr(time.UnixMilli(expirationMillis).UTC())
	}
	return reg
}

// VerifyChannel compares the echoed channel token with secret in constant
// time.
func VerifyChannel(req *domain.WebhookRequest, secret string) error {
	token := req.Header(HeaderChannelToken)
	if token == "" || secret == "" {
		return fmt.Errorf("%w: missing channel token", domain.ErrSignatureInvalid)
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
		return fmt.Errorf("%w: channel token mismatch", domain.ErrSignatureInvalid)
	}
	return nil
}

// ClassifyChannel maps X-Goog-Resource-State onto an event kind. Push
// notifications never carry the changed item, so every change is a signal.
func ClassifyChannel(req *domain.WebhookRequest) domain.EventKind {
	switch req.Header(HeaderResourceState) {
	case "sync":
		return domain.EventHandshake
	case "":
		return domain.EventIgnored
	default:
		return domain.EventSignal
	}
}
