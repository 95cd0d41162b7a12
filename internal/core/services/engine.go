package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/syncd/internal/core/domain"
	"github.com/custodia-labs/syncd/internal/core/ports/driven"
	"github.com/custodia-labs/syncd/internal/core/ports/driving"
)

// Ensure SyncEngine implements the interface.
var _ driving.SyncEngine = (*SyncEngine)(nil)

// SyncEngine runs batched incremental syncs for every configured connection.
// All per-resource state lives in a connection-scoped StateStore; the engine
// itself only keeps transient lifecycle markers for status display.
type SyncEngine struct {
	connections driven.ConnectionStore
	factory     driven.ConnectorFactory
	state       driven.StateStore
	callbacks   HandlerRegistry
	tasks       driven.TaskScheduler
	gateway     driven.WebhookGateway
	config      domain.SyncConfig
	now         func() time.Time

	// Status tracking
	mu          sync.RWMutex
	transitions map[domain.ResourceRef]domain.ResourceState
}

// EngineOption configures a SyncEngine.
type EngineOption func(*SyncEngine)

// WithEngineClock overrides the engine's time source.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *SyncEngine) { e.now = now }
}

// NewSyncEngine creates a sync engine and registers its operations with
// callbacks. gateway may be nil, in which case webhooks are never set up
// and resources rely on polling.
func NewSyncEngine(
	connections driven.ConnectionStore,
	factory driven.ConnectorFactory,
	state driven.StateStore,
	callbacks HandlerRegistry,
	tasks driven.TaskScheduler,
	gateway driven.WebhookGateway,
	config domain.SyncConfig,
	opts ...EngineOption,
) *SyncEngine {
	if config.PageSize <= 0 {
		config.PageSize = domain.DefaultPageSize
	}
	e := &SyncEngine{
		connections: connections,
		factory:     factory,
		state:       state,
		callbacks:   callbacks,
		tasks:       tasks,
		gateway:     gateway,
		config:      config,
		now:         time.Now,
		transitions: make(map[domain.ResourceRef]domain.ResourceState),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.registerOperations()
	return e
}

func (e *SyncEngine) registerOperations() {
	e.callbacks.Register(domain.OpSyncBatch, Handle(
		func(ctx context.Context, ref domain.ResourceRef, _ struct{}) error {
			_, err := e.SyncBatch(ctx, ref.ConnectionID, ref.ResourceID)
			return err
		}))
	e.callbacks.Register(domain.OpSyncWebhook, HandleResult(
		func(ctx context.Context, ref domain.ResourceRef, req domain.WebhookRequest) (*domain.WebhookResponse, error) {
			return e.OnWebhook(ctx, ref.ConnectionID, ref.ResourceID, &req)
		}))
	e.callbacks.Register(domain.OpSyncRenewWatch, Handle(
		func(ctx context.Context, ref domain.ResourceRef, _ struct{}) error {
			return e.RenewWatch(ctx, ref.ConnectionID, ref.ResourceID)
		}))
	e.callbacks.Register(domain.OpSyncPoll, Handle(
		func(ctx context.Context, ref domain.ResourceRef, _ struct{}) error {
			return e.poll(ctx, ref)
		}))
}

// scoped returns the state store for a connection.
func (e *SyncEngine) scoped(connectionID string) driven.StateStore {
	return ScopedStore(e.state, connectionID)
}

// connector builds a connector for a connection. Callers must Close it.
func (e *SyncEngine) connector(ctx context.Context, connectionID string) (driven.Connector, error) {
	conn, err := e.connections.Get(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("get connection %s: %w", connectionID, err)
	}
	if e.factory == nil {
		return nil, fmt.Errorf("create connector: connector factory not configured")
	}
	c, err := e.factory.Create(ctx, *conn)
	if err != nil {
		return nil, fmt.Errorf("create connector: %w", err)
	}
	return c, nil
}

// token returns the callback token stored under prefix for a resource.
func (e *SyncEngine) token(ctx context.Context, st driven.StateStore, prefix, resourceID string) (domain.CallbackToken, error) {
	v, err := getString(ctx, st, domain.ResourceKey(prefix, resourceID))
	return domain.CallbackToken(v), err
}

// ensureToken returns the stored token for an engine operation, creating
// it on first use.
func (e *SyncEngine) ensureToken(
	ctx context.Context,
	st driven.StateStore,
	prefix string,
	kind domain.OperationKind,
	ref domain.ResourceRef,
) (domain.CallbackToken, error) {
	tok, err := e.token(ctx, st, prefix, ref.ResourceID)
	if err != nil || tok != "" {
		return tok, err
	}
	tok, err = e.callbacks.Create(ctx, domain.ResourceCallback(kind, ref))
	if err != nil {
		return "", err
	}
	if err := setJSON(ctx, st, domain.ResourceKey(prefix, ref.ResourceID), string(tok)); err != nil {
		return "", err
	}
	return tok, nil
}

// dropToken deletes the token stored under prefix and clears its key.
func (e *SyncEngine) dropToken(ctx context.Context, st driven.StateStore, prefix, resourceID string) error {
	old, err := e.token(ctx, st, prefix, resourceID)
	if err != nil || old == "" {
		return err
	}
	if err := e.callbacks.Delete(ctx, old); err != nil {
		return fmt.Errorf("deleting previous %s token: %w", prefix, err)
	}
	return st.Clear(ctx, domain.ResourceKey(prefix, resourceID))
}

// enabled reports whether sync_enabled_ is set for a resource.
func (e *SyncEngine) enabled(ctx context.Context, st driven.StateStore, resourceID string) (bool, error) {
	v, err := getJSON[bool](ctx, st, domain.ResourceKey(domain.KeySyncEnabled, resourceID))
	if err != nil {
		return false, err
	}
	return v != nil && *v, nil
}

// replaceToken stores a new token for ref under prefix, deleting any
// previous one so exactly one stays live.
func (e *SyncEngine) replaceToken(
	ctx context.Context,
	st driven.StateStore,
	prefix, resourceID string,
	ref domain.CallbackRef,
) error {
	old, err := e.token(ctx, st, prefix, resourceID)
	if err != nil {
		return err
	}
	if old != "" {
		if err := e.callbacks.Delete(ctx, old); err != nil {
			return fmt.Errorf("deleting previous %s token: %w", prefix, err)
		}
	}
	tok, err := e.callbacks.Create(ctx, ref)
	if err != nil {
		return err
	}
	return setJSON(ctx, st, domain.ResourceKey(prefix, resourceID), string(tok))
}

func (e *SyncEngine) setTransition(ref domain.ResourceRef, state domain.ResourceState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transitions[ref] = state
}

func (e *SyncEngine) clearTransition(ref domain.ResourceRef) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.transitions, ref)
}

func (e *SyncEngine) transition(ref domain.ResourceRef) (domain.ResourceState, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.transitions[ref]
	return s, ok
}
