package calendar

import (
	"context"
	"net/http"

	"google.golang.org/api/calendar/v3"

	"github.com/custodia-labs/syncd/internal/connectors/google"
	"github.com/custodia-labs/syncd/internal/core/domain"
	"github.com/custodia-labs/syncd/internal/core/ports/driven"
	"github.com/custodia-labs/syncd/internal/logger"
)

// RegisterWebhook opens a push channel on the calendar's events. The
// secret travels as the channel token and is echoed on every notification.
func (c *Connector) RegisterWebhook(ctx context.Context, resourceID, url, secret string) (*domain.WebhookRegistration, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	req := &calendar.Channel{
		Id:         google.NewChannelID(),
		Type:       google.ChannelType,
		Address:    url,
		Token:      secret,
		Expiration: google.ChannelExpiration(c.now()),
	}
	var ch *calendar.Channel
	err := c.limiter.Do(ctx, "events.watch", func() error {
		var err error
		ch, err = c.svc.Events.Watch(resourceID, req).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	return google.Registration(ch.Id, ch.ResourceId, url, ch.Expiration), nil
}

// UnregisterWebhook stops a channel. A channel Google already forgot is
// treated as stopped.
func (c *Connector) UnregisterWebhook(ctx context.Context, _ string, reg domain.WebhookRegistration) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	return c.stopChannel(ctx, reg)
}

func (c *Connector) stopChannel(ctx context.Context, reg domain.WebhookRegistration) error {
	err := c.limiter.Do(ctx, "channels.stop", func() error {
		return c.svc.Channels.Stop(&calendar.Channel{Id: reg.ID, ResourceId: reg.ProviderResourceID}).Context(ctx).Do()
	})
	if err != nil && !google.IsNotFound(err) {
		return err
	}
	return nil
}

// RenewWatch opens a fresh channel before stopping the old one so no
// notification window is lost.
func (c *Connector) RenewWatch(ctx context.Context, resourceID, secret string, reg domain.WebhookRegistration) (*domain.WebhookRegistration, error) {
	fresh, err := c.RegisterWebhook(ctx, resourceID, reg.URL, secret)
	if err != nil {
		return nil, err
	}
	if err := c.stopChannel(ctx, reg); err != nil {
		logger.Warn("calendar %s: stop expired channel %s: %v", resourceID, reg.ID, err)
	}
	return fresh, nil
}

// VerifyWebhook checks the echoed channel token.
func (c *Connector) VerifyWebhook(req *domain.WebhookRequest, secret string) error {
	return google.VerifyChannel(req, secret)
}

// ParseWebhook classifies a push notification. Calendar notifications
// name no event, so changes trigger an incremental pass.
func (c *Connector) ParseWebhook(_ context.Context, _ string, req *domain.WebhookRequest) (*driven.WebhookEvent, error) {
	kind := google.ClassifyChannel(req)
	event := &driven.WebhookEvent{Kind: kind}
	if kind == domain.EventHandshake {
		event.Reply = &domain.WebhookResponse{Status: http.StatusOK}
	}
	return event, nil
}
