package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/syncd/internal/core/domain"
	"github.com/custodia-labs/syncd/internal/core/ports/driven"
	"github.com/custodia-labs/syncd/internal/logger"
)

// secretBytes is the size of generated webhook secrets.
const secretBytes = 32

// setupWebhook allocates a gateway URL, registers it with the provider and
// schedules renewal. Connectors without webhook support, a missing gateway
// or a loopback URL all leave the resource on polling.
func (e *SyncEngine) setupWebhook(
	ctx context.Context,
	st driven.StateStore,
	connector driven.Connector,
	ref domain.ResourceRef,
) error {
	wc, ok := connector.(driven.WebhookConnector)
	if !ok || e.gateway == nil {
		logger.Debug("webhooks unavailable for %s/%s; polling only", ref.ConnectionID, ref.ResourceID)
		return nil
	}

	existing, err := getJSON[domain.WebhookRegistration](ctx, st, domain.ResourceKey(domain.KeyWebhookID, ref.ResourceID))
	if err != nil {
		return err
	}
	if existing != nil {
		logger.Debug("webhook %s already registered for %s/%s", existing.ID, ref.ConnectionID, ref.ResourceID)
		return nil
	}

	tok, err := e.ensureToken(ctx, st, domain.KeyWebhookCallback, domain.OpSyncWebhook, ref)
	if err != nil {
		return fmt.Errorf("webhook callback: %w", err)
	}
	hookURL, err := e.gateway.CreateWebhook(ctx, tok)
	if err != nil {
		return fmt.Errorf("allocating webhook url: %w", err)
	}

	if IsLoopbackURL(hookURL) {
		logger.Info("skipping webhook for %s/%s: %s is not reachable by the provider",
			ref.ConnectionID, ref.ResourceID, hookURL)
		e.releaseWebhookRoute(ctx, st, ref, hookURL)
		return nil
	}

	secret, err := newSecret()
	if err != nil {
		e.releaseWebhookRoute(ctx, st, ref, hookURL)
		return err
	}

	reg, err := wc.RegisterWebhook(ctx, ref.ResourceID, hookURL, secret)
	if err != nil {
		e.releaseWebhookRoute(ctx, st, ref, hookURL)
		return fmt.Errorf("registering webhook: %w", err)
	}
	reg.URL = hookURL

	if err := setJSON(ctx, st, domain.ResourceKey(domain.KeyWebhookSecret, ref.ResourceID), secret); err != nil {
		return err
	}
	if err := setJSON(ctx, st, domain.ResourceKey(domain.KeyWebhookID, ref.ResourceID), *reg); err != nil {
		return err
	}
	logger.Info("Registered webhook %s for %s/%s", reg.ID, ref.ConnectionID, ref.ResourceID)

	if reg.Expiry != nil {
		return e.scheduleRenewal(ctx, st, ref, *reg.Expiry)
	}
	return nil
}

// releaseWebhookRoute undoes a gateway allocation that will not be used.
func (e *SyncEngine) releaseWebhookRoute(ctx context.Context, st driven.StateStore, ref domain.ResourceRef, hookURL string) {
	if err := e.gateway.DeleteWebhook(ctx, hookURL); err != nil {
		logger.Warn("releasing webhook url %s: %v", hookURL, err)
	}
	tok, _ := e.token(ctx, st, domain.KeyWebhookCallback, ref.ResourceID) //nolint:errcheck // best effort
	if err := e.callbacks.Delete(ctx, tok); err != nil {
		logger.Warn("deleting webhook callback for %s/%s: %v", ref.ConnectionID, ref.ResourceID, err)
	}
	if err := st.Clear(ctx, domain.ResourceKey(domain.KeyWebhookCallback, ref.ResourceID)); err != nil {
		logger.Warn("clearing webhook callback key for %s/%s: %v", ref.ConnectionID, ref.ResourceID, err)
	}
}

// scheduleRenewal queues a watch renewal RenewalMargin before expiry,
// replacing any previously queued renewal.
func (e *SyncEngine) scheduleRenewal(ctx context.Context, st driven.StateStore, ref domain.ResourceRef, expiry time.Time) error {
	taskKey := domain.ResourceKey(domain.KeyWatchRenewalTask, ref.ResourceID)
	if prev, err := getString(ctx, st, taskKey); err == nil && prev != "" {
		if err := e.tasks.CancelTask(ctx, prev); err != nil {
			logger.Warn("cancelling previous renewal for %s/%s: %v", ref.ConnectionID, ref.ResourceID, err)
		}
	}

	runAt := expiry.Add(-e.config.RenewalMargin)
	if now := e.now(); runAt.Before(now) {
		runAt = now
	}
	tok, err := e.ensureToken(ctx, st, domain.KeyRenewCallback, domain.OpSyncRenewWatch, ref)
	if err != nil {
		return err
	}
	id, err := e.tasks.RunTask(ctx, tok, domain.RunOptions{Name: string(domain.OpSyncRenewWatch), RunAt: runAt})
	if err != nil {
		return fmt.Errorf("scheduling watch renewal: %w", err)
	}
	logger.Debug("watch renewal for %s/%s at %s", ref.ConnectionID, ref.ResourceID, runAt.Format(time.RFC3339))
	return setJSON(ctx, st, taskKey, id)
}

// OnWebhook verifies and dispatches a provider notification. Verification
// failures are logged and answered with an empty rejection; they never
// return an error.
func (e *SyncEngine) OnWebhook(
	ctx context.Context,
	connectionID, resourceID string,
	req *domain.WebhookRequest,
) (*domain.WebhookResponse, error) {
	st := e.scoped(connectionID)

	secret, err := getString(ctx, st, domain.ResourceKey(domain.KeyWebhookSecret, resourceID))
	if err != nil {
		return nil, err
	}
	if secret == "" {
		logger.Warn("webhook for %s/%s has no stored secret; dropping", connectionID, resourceID)
		return domain.WebhookRejected(), nil
	}

	connector, err := e.connector(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	defer connector.Close()

	wc, ok := connector.(driven.WebhookConnector)
	if !ok {
		logger.Warn("webhook for %s/%s but %s has no webhook support", connectionID, resourceID, connector.Type())
		return domain.WebhookRejected(), nil
	}

	if err := wc.VerifyWebhook(req, secret); err != nil {
		logger.Warn("rejecting webhook for %s/%s: %v", connectionID, resourceID, err)
		return domain.WebhookRejected(), nil
	}

	event, err := wc.ParseWebhook(ctx, resourceID, req)
	if err != nil {
		logger.Warn("unparseable webhook for %s/%s: %v", connectionID, resourceID, err)
		return domain.WebhookAccepted(), nil
	}

	logger.Debug("webhook %s for %s/%s", event.Kind, connectionID, resourceID)
	switch event.Kind {
	case domain.EventSignal:
		e.signal(ctx, connectionID, resourceID)
	case domain.EventChange, domain.EventDelete:
		if event.Activity == nil {
			e.signal(ctx, connectionID, resourceID)
			break
		}
		e.deliverPartial(ctx, st, connectionID, resourceID, event)
	case domain.EventHandshake, domain.EventIgnored:
	}

	if event.Reply != nil {
		return event.Reply, nil
	}
	return domain.WebhookAccepted(), nil
}

func (e *SyncEngine) signal(ctx context.Context, connectionID, resourceID string) {
	err := e.StartIncrementalSync(ctx, connectionID, resourceID)
	if errors.Is(err, domain.ErrSyncInProgress) {
		logger.Debug("%s/%s: change signalled during a pass", connectionID, resourceID)
		return
	}
	if err != nil {
		logger.Warn("starting incremental sync for %s/%s: %v", connectionID, resourceID, err)
	}
}

// deliverPartial sends a webhook's partial activity straight to the item
// callback with the incremental policy applied.
func (e *SyncEngine) deliverPartial(
	ctx context.Context,
	st driven.StateStore,
	connectionID, resourceID string,
	event *driven.WebhookEvent,
) {
	itemToken, err := e.token(ctx, st, domain.KeyItemCallback, resourceID)
	if err != nil || itemToken == "" {
		logger.Warn("webhook for %s/%s: no item callback (%v)", connectionID, resourceID, err)
		return
	}
	activity := event.Activity
	activity.ConnectionID = connectionID
	activity.ResourceID = resourceID
	ApplyFieldPolicy(activity, false, event.Kind == domain.EventDelete)

	if _, err := e.callbacks.Run(ctx, itemToken, activity); err != nil {
		logger.Warn("webhook item %s for %s/%s: %v", activity.SourceKey, connectionID, resourceID, err)
	}
}

// RenewWatch replaces an expiring subscription. Failure keeps the old
// registration; the resource falls back to polling until it lapses.
func (e *SyncEngine) RenewWatch(ctx context.Context, connectionID, resourceID string) error {
	ref := domain.ResourceRef{ConnectionID: connectionID, ResourceID: resourceID}
	st := e.scoped(connectionID)
	regKey := domain.ResourceKey(domain.KeyWebhookID, resourceID)

	if err := st.Clear(ctx, domain.ResourceKey(domain.KeyWatchRenewalTask, resourceID)); err != nil {
		return err
	}

	reg, err := getJSON[domain.WebhookRegistration](ctx, st, regKey)
	if err != nil {
		return err
	}
	if reg == nil {
		logger.Debug("no watch to renew for %s/%s", connectionID, resourceID)
		return nil
	}
	secret, err := getString(ctx, st, domain.ResourceKey(domain.KeyWebhookSecret, resourceID))
	if err != nil {
		return err
	}

	connector, err := e.connector(ctx, connectionID)
	if err != nil {
		return err
	}
	defer connector.Close()

	renewer, ok := connector.(driven.WatchRenewer)
	if !ok {
		return nil
	}

	renewed, err := renewer.RenewWatch(ctx, resourceID, secret, *reg)
	if err != nil {
		logger.Warn("renewing watch %s for %s/%s failed, keeping existing subscription: %v",
			reg.ID, connectionID, resourceID, err)
		return nil
	}
	if renewed.URL == "" {
		renewed.URL = reg.URL
	}
	if err := setJSON(ctx, st, regKey, *renewed); err != nil {
		return err
	}
	logger.Info("Renewed watch for %s/%s: %s -> %s", connectionID, resourceID, reg.ID, renewed.ID)

	if renewed.Expiry != nil {
		return e.scheduleRenewal(ctx, st, ref, *renewed.Expiry)
	}
	return nil
}

// IsLoopbackURL reports whether rawURL points at this machine, where a
// provider could never deliver.
func IsLoopbackURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func newSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating webhook secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
