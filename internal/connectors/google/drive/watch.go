package drive

import (
	"context"
	"net/http"

	"google.golang.org/api/drive/v3"

	"github.com/custodia-labs/syncd/internal/connectors/google"
	"github.com/custodia-labs/syncd/internal/core/domain"
	"github.com/custodia-labs/syncd/internal/core/ports/driven"
	"github.com/custodia-labs/syncd/internal/logger"
)

// RegisterWebhook watches the drive's change feed from the current start
// token. The secret travels as the channel token.
func (c *Connector) RegisterWebhook(ctx context.Context, resourceID, url, secret string) (*domain.WebhookRegistration, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	driveID := sharedDriveID(resourceID)
	start, err := c.startPageToken(ctx, driveID)
	if err != nil {
		return nil, err
	}

	call := c.svc.Changes.Watch(start, &drive.Channel{
		Id:         google.NewChannelID(),
		Type:       google.ChannelType,
		Address:    url,
		Token:      secret,
		Expiration: google.ChannelExpiration(c.now()),
	}).Context(ctx).SupportsAllDrives(true)
	if driveID != "" {
		call = call.DriveId(driveID).IncludeItemsFromAllDrives(true)
	}

	var ch *drive.Channel
	err = c.limiter.Do(ctx, "changes.watch", func() error {
		var err error
		ch, err = call.Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	return google.Registration(ch.Id, ch.ResourceId, url, ch.Expiration), nil
}

// UnregisterWebhook stops a channel. Unknown channels count as stopped.
func (c *Connector) UnregisterWebhook(ctx context.Context, _ string, reg domain.WebhookRegistration) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	return c.stopChannel(ctx, reg)
}

func (c *Connector) stopChannel(ctx context.Context, reg domain.WebhookRegistration) error {
	err := c.limiter.Do(ctx, "channels.stop", func() error {
		return c.svc.Channels.Stop(&drive.Channel{Id: reg.ID, ResourceId: reg.ProviderResourceID}).Context(ctx).Do()
	})
	if err != nil && !google.IsNotFound(err) {
		return err
	}
	return nil
}

// RenewWatch opens a replacement channel, then stops the old one.
func (c *Connector) RenewWatch(ctx context.Context, resourceID, secret string, reg domain.WebhookRegistration) (*domain.WebhookRegistration, error) {
	fresh, err := c.RegisterWebhook(ctx, resourceID, reg.URL, secret)
	if err != nil {
		return nil, err
	}
	if err := c.stopChannel(ctx, reg); err != nil {
		logger.Warn("drive %s: stop expired channel %s: %v", resourceID, reg.ID, err)
	}
	return fresh, nil
}

// VerifyWebhook checks the echoed channel token.
func (c *Connector) VerifyWebhook(req *domain.WebhookRequest, secret string) error {
	return google.VerifyChannel(req, secret)
}

// ParseWebhook classifies a change notification. Drive notifications
// carry no file, so changes trigger an incremental pass.
func (c *Connector) ParseWebhook(_ context.Context, _ string, req *domain.WebhookRequest) (*driven.WebhookEvent, error) {
	kind := google.ClassifyChannel(req)
	event := &driven.WebhookEvent{Kind: kind}
	if kind == domain.EventHandshake {
		event.Reply = &domain.WebhookResponse{Status: http.StatusOK}
	}
	return event, nil
}
