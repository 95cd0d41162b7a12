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

// startBatchSync writes a fresh initial SyncState and schedules batch 1.
func (e *SyncEngine) startBatchSync(
	ctx context.Context,
	st driven.StateStore,
	ref domain.ResourceRef,
	window domain.SyncWindow,
) error {
	state := domain.NewInitialSyncState(window, e.now())
	// A continuation from an earlier pass must not run alongside this one.
	if err := e.dropToken(ctx, st, domain.KeyBatchCallback, ref.ResourceID); err != nil {
		return fmt.Errorf("batch callback: %w", err)
	}
	if err := st.Clear(ctx, domain.ResourceKey(domain.KeySyncCheckpoint, ref.ResourceID)); err != nil {
		return fmt.Errorf("clearing checkpoint: %w", err)
	}
	if err := setJSON(ctx, st, domain.ResourceKey(domain.KeySyncState, ref.ResourceID), state); err != nil {
		return err
	}
	logger.Info("Starting initial sync for %s/%s", ref.ConnectionID, ref.ResourceID)
	return e.scheduleBatch(ctx, st, ref)
}

// StartIncrementalSync begins a delta pass from the stored checkpoint.
// It returns ErrSyncInProgress while a pass is in flight; that pass will
// finish and leave a checkpoint covering the change.
func (e *SyncEngine) StartIncrementalSync(ctx context.Context, connectionID, resourceID string) error {
	ref := domain.ResourceRef{ConnectionID: connectionID, ResourceID: resourceID}
	st := e.scoped(connectionID)

	enabled, err := e.enabled(ctx, st, resourceID)
	if err != nil {
		return err
	}
	if !enabled {
		return fmt.Errorf("%w: %s/%s is not enabled", domain.ErrNotFound, connectionID, resourceID)
	}

	existing, err := getJSON[domain.SyncState](ctx, st, domain.ResourceKey(domain.KeySyncState, resourceID))
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: %s/%s at batch %d", domain.ErrSyncInProgress, connectionID, resourceID, existing.BatchNumber)
	}

	checkpoint, err := getString(ctx, st, domain.ResourceKey(domain.KeySyncCheckpoint, resourceID))
	if err != nil {
		return err
	}
	state := domain.NewIncrementalSyncState(checkpoint, e.now())
	if err := setJSON(ctx, st, domain.ResourceKey(domain.KeySyncState, resourceID), state); err != nil {
		return err
	}
	logger.Info("Starting incremental sync for %s/%s", connectionID, resourceID)
	return e.scheduleBatch(ctx, st, ref)
}

// SyncBatch runs one batch: fetch a single page, deliver each item, then
// either schedule the continuation or finish the pass.
func (e *SyncEngine) SyncBatch(ctx context.Context, connectionID, resourceID string) (*driving.BatchResult, error) {
	ref := domain.ResourceRef{ConnectionID: connectionID, ResourceID: resourceID}
	st := e.scoped(connectionID)
	stateKey := domain.ResourceKey(domain.KeySyncState, resourceID)

	// 1. Load state. Missing state means the resource was disabled or never started.
	state, err := getJSON[domain.SyncState](ctx, st, stateKey)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrSyncStateMissing, connectionID, resourceID)
	}

	// 2. Resolve the item callback.
	itemToken, err := e.token(ctx, st, domain.KeyItemCallback, resourceID)
	if err != nil {
		return nil, err
	}
	if itemToken == "" {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrCallbackMissing, connectionID, resourceID)
	}

	connector, err := e.connector(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	defer connector.Close()

	logger.Debug("batch %d for %s/%s (initial=%t, sequence=%d)",
		state.BatchNumber, connectionID, resourceID, state.InitialSync, state.Sequence)

	// 3. Fetch one page.
	page, err := connector.FetchPage(ctx, resourceID, *state, e.config.PageSize)
	if errors.Is(err, domain.ErrCursorExpired) {
		return e.resync(ctx, st, ref, state)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching page: %w", err)
	}

	// 4. Deliver items. A bad item never fails the batch.
	result := &driving.BatchResult{BatchNumber: state.BatchNumber}
	for _, item := range page.Items {
		if item.Deleted && state.InitialSync {
			continue
		}
		err := e.deliver(ctx, connector, ref, itemToken, item, state.InitialSync)
		if errors.Is(err, domain.ErrCallbackNotFound) {
			return nil, fmt.Errorf("%w: %s/%s: %w", domain.ErrCallbackMissing, connectionID, resourceID, err)
		}
		if err != nil {
			result.Failed++
			logger.Warn("skipping item %s in %s/%s: %v", item.ID, connectionID, resourceID, err)
		}
	}

	// 5. Advance, unless the resource was disabled or restarted meanwhile.
	if err := e.checkCurrent(ctx, st, ref, itemToken); err != nil {
		return nil, err
	}
	more := page.More
	if more && page.NextCursor == "" {
		logger.Warn("provider reported more pages for %s/%s without a cursor; ending pass", connectionID, resourceID)
		more = false
	}
	state.Advance(page.NextCursor, len(page.Items))
	result.ItemsProcessed = state.ItemsProcessed

	// 6. Continue or finish.
	if more {
		if err := setJSON(ctx, st, stateKey, *state); err != nil {
			return nil, err
		}
		if err := e.scheduleBatch(ctx, st, ref); err != nil {
			return nil, err
		}
		return result, nil
	}

	result.Done = true
	if err := e.finishPass(ctx, st, ref, page.Checkpoint); err != nil {
		return nil, err
	}
	logger.Info("Sync pass for %s/%s complete: %d items in %d batches (%d failed)",
		connectionID, resourceID, state.ItemsProcessed, result.BatchNumber, result.Failed)
	return result, nil
}

// deliver transforms one item, applies the field policy and hands it to
// the item callback.
func (e *SyncEngine) deliver(
	ctx context.Context,
	connector driven.Connector,
	ref domain.ResourceRef,
	itemToken domain.CallbackToken,
	item driven.RawItem,
	initial bool,
) error {
	activity, err := connector.Transform(ctx, ref.ResourceID, item)
	if err != nil {
		return fmt.Errorf("transform: %w", err)
	}
	if activity == nil {
		return nil
	}
	activity.ConnectionID = ref.ConnectionID
	activity.ResourceID = ref.ResourceID
	ApplyFieldPolicy(activity, initial, item.Deleted)

	if _, err := e.callbacks.Run(ctx, itemToken, activity); err != nil {
		return fmt.Errorf("item callback: %w", err)
	}
	return nil
}

// resync handles an expired cursor: restart pagination with the same
// window and a bumped sequence.
func (e *SyncEngine) resync(
	ctx context.Context,
	st driven.StateStore,
	ref domain.ResourceRef,
	state *domain.SyncState,
) (*driving.BatchResult, error) {
	logger.Warn("cursor for %s/%s expired; restarting pagination (sequence %d)",
		ref.ConnectionID, ref.ResourceID, state.Sequence+1)

	if err := e.checkCurrent(ctx, st, ref, ""); err != nil {
		return nil, err
	}
	state.ResetCursor()
	if err := st.Clear(ctx, domain.ResourceKey(domain.KeySyncCheckpoint, ref.ResourceID)); err != nil {
		return nil, fmt.Errorf("clearing checkpoint: %w", err)
	}
	if err := setJSON(ctx, st, domain.ResourceKey(domain.KeySyncState, ref.ResourceID), *state); err != nil {
		return nil, err
	}
	if err := e.scheduleBatch(ctx, st, ref); err != nil {
		return nil, err
	}
	return &driving.BatchResult{
		BatchNumber:    state.BatchNumber,
		ItemsProcessed: state.ItemsProcessed,
		Resynced:       true,
	}, nil
}

// finishPass clears the SyncState, keeps the provider checkpoint for the
// next incremental pass and schedules the next poll.
func (e *SyncEngine) finishPass(ctx context.Context, st driven.StateStore, ref domain.ResourceRef, checkpoint string) error {
	if checkpoint != "" {
		if err := setJSON(ctx, st, domain.ResourceKey(domain.KeySyncCheckpoint, ref.ResourceID), checkpoint); err != nil {
			return err
		}
	}
	if err := st.Clear(ctx, domain.ResourceKey(domain.KeySyncState, ref.ResourceID)); err != nil {
		return fmt.Errorf("clearing sync state: %w", err)
	}
	if err := e.schedulePoll(ctx, st, ref); err != nil {
		logger.Warn("scheduling poll for %s/%s: %v", ref.ConnectionID, ref.ResourceID, err)
	}
	return nil
}

// scheduleBatch enqueues the next batch for ref.
func (e *SyncEngine) scheduleBatch(ctx context.Context, st driven.StateStore, ref domain.ResourceRef) error {
	enabled, err := e.enabled(ctx, st, ref.ResourceID)
	if err != nil {
		return err
	}
	if !enabled {
		return errDisabled(ref)
	}
	tok, err := e.ensureToken(ctx, st, domain.KeyBatchCallback, domain.OpSyncBatch, ref)
	if err != nil {
		return fmt.Errorf("batch callback: %w", err)
	}
	if _, err := e.tasks.RunTask(ctx, tok, domain.RunOptions{Name: string(domain.OpSyncBatch)}); err != nil {
		return fmt.Errorf("scheduling batch: %w", err)
	}
	return nil
}

// schedulePoll replaces any pending poll with one PollInterval from now.
func (e *SyncEngine) schedulePoll(ctx context.Context, st driven.StateStore, ref domain.ResourceRef) error {
	if e.config.PollInterval <= 0 {
		return nil
	}
	pollKey := domain.ResourceKey(domain.KeyPollTask, ref.ResourceID)
	if prev, err := getString(ctx, st, pollKey); err == nil && prev != "" {
		if err := e.tasks.CancelTask(ctx, prev); err != nil {
			logger.Warn("cancelling previous poll for %s/%s: %v", ref.ConnectionID, ref.ResourceID, err)
		}
	}

	tok, err := e.ensureToken(ctx, st, domain.KeyPollCallback, domain.OpSyncPoll, ref)
	if err != nil {
		return err
	}
	id, err := e.tasks.RunTask(ctx, tok, domain.RunOptions{
		Name:  string(domain.OpSyncPoll),
		RunAt: e.now().Add(e.config.PollInterval),
	})
	if err != nil {
		return err
	}
	return setJSON(ctx, st, pollKey, id)
}

// checkCurrent fails when the resource was disabled, or re-enabled with
// a different item callback, after the batch loaded itemToken. An empty
// itemToken only checks that the resource is still enabled.
func (e *SyncEngine) checkCurrent(
	ctx context.Context,
	st driven.StateStore,
	ref domain.ResourceRef,
	itemToken domain.CallbackToken,
) error {
	enabled, err := e.enabled(ctx, st, ref.ResourceID)
	if err != nil {
		return err
	}
	if !enabled {
		return errDisabled(ref)
	}
	if itemToken == "" {
		return nil
	}
	current, err := e.token(ctx, st, domain.KeyItemCallback, ref.ResourceID)
	if err != nil {
		return err
	}
	if current != itemToken {
		return fmt.Errorf("%w: %s/%s was restarted: %w",
			domain.ErrCallbackMissing, ref.ConnectionID, ref.ResourceID, domain.ErrCallbackNotFound)
	}
	return nil
}

// errDisabled matches ErrCallbackNotFound so the scheduler drops the task
// instead of retrying it.
func errDisabled(ref domain.ResourceRef) error {
	return fmt.Errorf("%w: %s/%s was disabled: %w",
		domain.ErrSyncStateMissing, ref.ConnectionID, ref.ResourceID, domain.ErrCallbackNotFound)
}

// poll runs a scheduled incremental pass.
func (e *SyncEngine) poll(ctx context.Context, ref domain.ResourceRef) error {
	st := e.scoped(ref.ConnectionID)
	if err := st.Clear(ctx, domain.ResourceKey(domain.KeyPollTask, ref.ResourceID)); err != nil {
		return err
	}
	err := e.StartIncrementalSync(ctx, ref.ConnectionID, ref.ResourceID)
	if errors.Is(err, domain.ErrSyncInProgress) {
		logger.Debug("poll for %s/%s skipped: pass in progress", ref.ConnectionID, ref.ResourceID)
		return nil
	}
	return err
}
