package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/syncd/internal/core/domain"
	"github.com/custodia-labs/syncd/internal/core/ports/driven"
	"github.com/custodia-labs/syncd/internal/core/ports/driving"
	"github.com/custodia-labs/syncd/internal/logger"
)

// GetChannels lists the resources a connection can sync.
func (e *SyncEngine) GetChannels(ctx context.Context, connectionID string) ([]domain.Resource, error) {
	connector, err := e.connector(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	defer connector.Close()

	resources, err := connector.ListResources(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing resources: %w", err)
	}
	return resources, nil
}

// OnChannelEnabled enables a resource with the default destination
// callbacks: items upsert into the activity store and disabling archives
// the resource's activities.
func (e *SyncEngine) OnChannelEnabled(ctx context.Context, connectionID string, channel domain.Resource) error {
	onItem, onDisable := domain.DestinationCallbacks(domain.ResourceRef{ConnectionID: connectionID, ResourceID: channel.ID})
	return e.StartSync(ctx, driving.SyncOptions{
		ConnectionID: connectionID,
		ResourceID:   channel.ID,
	}, onItem, &onDisable)
}

// OnChannelDisabled disables a resource.
func (e *SyncEngine) OnChannelDisabled(ctx context.Context, connectionID string, channel domain.Resource) error {
	return e.StopSync(ctx, connectionID, channel.ID)
}

// StartSync enables a resource: it stores the callbacks, sets up push
// notifications where possible and schedules the first batch.
func (e *SyncEngine) StartSync(
	ctx context.Context,
	opts driving.SyncOptions,
	onItem domain.CallbackRef,
	onDisable *domain.CallbackRef,
) error {
	if opts.ConnectionID == "" || opts.ResourceID == "" {
		return fmt.Errorf("%w: connection and resource are required", domain.ErrInvalidInput)
	}
	ref := domain.ResourceRef{ConnectionID: opts.ConnectionID, ResourceID: opts.ResourceID}
	st := e.scoped(opts.ConnectionID)

	connector, err := e.connector(ctx, opts.ConnectionID)
	if err != nil {
		return err
	}
	defer connector.Close()

	e.setTransition(ref, domain.ResourceStateEnabling)
	defer e.clearTransition(ref)

	if err := e.replaceToken(ctx, st, domain.KeyItemCallback, opts.ResourceID, onItem); err != nil {
		return fmt.Errorf("item callback: %w", err)
	}
	if onDisable != nil {
		if err := e.replaceToken(ctx, st, domain.KeyDisableCallback, opts.ResourceID, *onDisable); err != nil {
			return fmt.Errorf("disable callback: %w", err)
		}
	}
	if err := setJSON(ctx, st, domain.ResourceKey(domain.KeySyncEnabled, opts.ResourceID), true); err != nil {
		return err
	}

	if err := e.setupWebhook(ctx, st, connector, ref); err != nil {
		logger.Warn("webhook setup for %s/%s failed, relying on polling: %v", ref.ConnectionID, ref.ResourceID, err)
	}

	return e.startBatchSync(ctx, st, ref, opts.Window)
}

// StopSync disables a resource. Remote cleanup failures are logged; local
// state is always cleared so a later enable starts fresh.
func (e *SyncEngine) StopSync(ctx context.Context, connectionID, resourceID string) error {
	ref := domain.ResourceRef{ConnectionID: connectionID, ResourceID: resourceID}
	st := e.scoped(connectionID)

	e.setTransition(ref, domain.ResourceStateDisabling)
	defer e.clearTransition(ref)

	logger.Info("Disabling %s/%s", connectionID, resourceID)

	// In-flight batches check this before writing state.
	if err := st.Clear(ctx, domain.ResourceKey(domain.KeySyncEnabled, resourceID)); err != nil {
		logger.Warn("clearing enabled flag for %s/%s: %v", connectionID, resourceID, err)
	}

	e.teardownWebhook(ctx, st, ref)

	for _, prefix := range []string{domain.KeyWatchRenewalTask, domain.KeyPollTask} {
		id, err := getString(ctx, st, domain.ResourceKey(prefix, resourceID))
		if err != nil || id == "" {
			continue
		}
		if err := e.tasks.CancelTask(ctx, id); err != nil {
			logger.Warn("cancelling %s task for %s/%s: %v", prefix, connectionID, resourceID, err)
		}
	}

	if tok, err := e.token(ctx, st, domain.KeyDisableCallback, resourceID); err == nil && tok != "" {
		if _, err := e.callbacks.Run(ctx, tok, resourceID); err != nil {
			logger.Warn("disable callback for %s/%s: %v", connectionID, resourceID, err)
		}
	}

	for _, prefix := range []string{
		domain.KeyItemCallback,
		domain.KeyDisableCallback,
		domain.KeyBatchCallback,
		domain.KeyWebhookCallback,
		domain.KeyRenewCallback,
		domain.KeyPollCallback,
	} {
		tok, err := e.token(ctx, st, prefix, resourceID)
		if err != nil || tok == "" {
			continue
		}
		if err := e.callbacks.Delete(ctx, tok); err != nil {
			logger.Warn("deleting %s token for %s/%s: %v", prefix, connectionID, resourceID, err)
		}
	}

	var errs []error
	for _, prefix := range domain.ResourceKeyPrefixes {
		if err := st.Clear(ctx, domain.ResourceKey(prefix, resourceID)); err != nil {
			errs = append(errs, fmt.Errorf("clearing %s: %w", prefix, err))
		}
	}
	return errors.Join(errs...)
}

// teardownWebhook removes the provider subscription and the gateway route.
func (e *SyncEngine) teardownWebhook(ctx context.Context, st driven.StateStore, ref domain.ResourceRef) {
	reg, err := getJSON[domain.WebhookRegistration](ctx, st, domain.ResourceKey(domain.KeyWebhookID, ref.ResourceID))
	if err != nil || reg == nil {
		return
	}

	connector, err := e.connector(ctx, ref.ConnectionID)
	if err != nil {
		logger.Warn("unregistering webhook %s for %s/%s: %v", reg.ID, ref.ConnectionID, ref.ResourceID, err)
	} else {
		if wc, ok := connector.(driven.WebhookConnector); ok {
			if err := wc.UnregisterWebhook(ctx, ref.ResourceID, *reg); err != nil {
				logger.Warn("unregistering webhook %s for %s/%s: %v", reg.ID, ref.ConnectionID, ref.ResourceID, err)
			}
		}
		connector.Close()
	}

	if e.gateway != nil && reg.URL != "" {
		if err := e.gateway.DeleteWebhook(ctx, reg.URL); err != nil {
			logger.Warn("deleting webhook url %s: %v", reg.URL, err)
		}
	}
}

// AddComment writes a comment back through connectors that support it.
func (e *SyncEngine) AddComment(ctx context.Context, connectionID, resourceID, itemID, body string) (*domain.Note, error) {
	if body == "" {
		return nil, fmt.Errorf("%w: empty comment", domain.ErrInvalidInput)
	}
	connector, err := e.connector(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	defer connector.Close()

	commenter, ok := connector.(driven.Commenter)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not support comments", domain.ErrNotImplemented, connector.Type())
	}
	return commenter.AddComment(ctx, resourceID, itemID, body)
}

// Status reports a resource's lifecycle state and progress.
func (e *SyncEngine) Status(ctx context.Context, connectionID, resourceID string) (*domain.ResourceStatus, error) {
	ref := domain.ResourceRef{ConnectionID: connectionID, ResourceID: resourceID}
	st := e.scoped(connectionID)
	status := &domain.ResourceStatus{Ref: ref, State: domain.ResourceStateDisabled}

	enabled, err := getJSON[bool](ctx, st, domain.ResourceKey(domain.KeySyncEnabled, resourceID))
	if err != nil {
		return nil, err
	}
	status.Enabled = enabled != nil && *enabled

	state, err := getJSON[domain.SyncState](ctx, st, domain.ResourceKey(domain.KeySyncState, resourceID))
	if err != nil {
		return nil, err
	}
	if state != nil {
		status.BatchNumber = state.BatchNumber
		status.ItemsProcessed = state.ItemsProcessed
		status.InitialSync = state.InitialSync
		status.Sequence = state.Sequence
	}

	reg, err := getJSON[domain.WebhookRegistration](ctx, st, domain.ResourceKey(domain.KeyWebhookID, resourceID))
	if err != nil {
		return nil, err
	}
	if reg != nil {
		status.WebhookURL = reg.URL
		status.WatchExpiry = reg.Expiry
	}

	checkpoint, err := getString(ctx, st, domain.ResourceKey(domain.KeySyncCheckpoint, resourceID))
	if err != nil {
		return nil, err
	}
	status.HasCheckpoint = checkpoint != ""

	switch {
	case !status.Enabled:
		status.State = domain.ResourceStateDisabled
	case state != nil:
		status.State = domain.ResourceStateSyncing
	default:
		status.State = domain.ResourceStateIdle
	}

	if status.Enabled {
		e.applyBackoff(ctx, st, status)
	}
	if t, ok := e.transition(ref); ok {
		status.State = t
	}
	return status, nil
}

// taskLister is implemented by schedulers that expose their queue.
type taskLister interface {
	Pending(ctx context.Context) ([]domain.ScheduledTask, error)
}

// applyBackoff marks the status when the resource's next batch is
// waiting out a retry.
func (e *SyncEngine) applyBackoff(ctx context.Context, st driven.StateStore, status *domain.ResourceStatus) {
	lister, ok := e.tasks.(taskLister)
	if !ok {
		return
	}
	tok, err := e.token(ctx, st, domain.KeyBatchCallback, status.Ref.ResourceID)
	if err != nil || tok == "" {
		return
	}
	tasks, err := lister.Pending(ctx)
	if err != nil {
		return
	}
	for _, task := range tasks {
		if task.Callback == tok && task.InBackoff() {
			status.State = domain.ResourceStateErrorBackoff
			status.LastError = task.LastError
			return
		}
	}
}
