package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/custodia-labs/syncd/internal/core/domain"
	"github.com/custodia-labs/syncd/internal/core/ports/driven"
)

// callbackKeyPrefix namespaces stored callbacks in the state store.
const callbackKeyPrefix = "callback_"

// Handler executes an operation with its bound args and a runtime payload,
// both JSON-encoded. It may return a result to encode for the caller.
type Handler func(ctx context.Context, args, payload json.RawMessage) (any, error)

// HandlerRegistry is a CallbackRegistry that accepts handler registrations.
type HandlerRegistry interface {
	driven.CallbackRegistry
	Register(kind domain.OperationKind, handler Handler)
}

// Handle adapts a typed function into a Handler with no result.
func Handle[A, P any](fn func(ctx context.Context, args A, payload P) error) Handler {
	return HandleResult(func(ctx context.Context, args A, payload P) (any, error) {
		return nil, fn(ctx, args, payload)
	})
}

// HandleResult adapts a typed function into a Handler.
func HandleResult[A, P, R any](fn func(ctx context.Context, args A, payload P) (R, error)) Handler {
	return func(ctx context.Context, rawArgs, rawPayload json.RawMessage) (any, error) {
		var args A
		if len(rawArgs) > 0 {
			if err := json.Unmarshal(rawArgs, &args); err != nil {
				return nil, fmt.Errorf("decoding args: %w", err)
			}
		}
		var payload P
		if len(rawPayload) > 0 && string(rawPayload) != "null" {
			if err := json.Unmarshal(rawPayload, &payload); err != nil {
				return nil, fmt.Errorf("decoding payload: %w", err)
			}
		}
		return fn(ctx, args, payload)
	}
}

// CallbackRegistry maps a closed set of operation kinds to handlers and
// persists callback references so tokens survive restarts.
type CallbackRegistry struct {
	store driven.StateStore

	mu       sync.RWMutex
	handlers map[domain.OperationKind]Handler
}

var _ HandlerRegistry = (*CallbackRegistry)(nil)

// NewCallbackRegistry creates a registry persisting into store.
func NewCallbackRegistry(store driven.StateStore) *CallbackRegistry {
	return &CallbackRegistry{
		store:    store,
		handlers: make(map[domain.OperationKind]Handler),
	}
}

// Register binds handler to kind, replacing any previous handler.
func (r *CallbackRegistry) Register(kind domain.OperationKind, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = handler
}

// Create persists ref and returns its token.
func (r *CallbackRegistry) Create(ctx context.Context, ref domain.CallbackRef) (domain.CallbackToken, error) {
	if _, ok := r.handler(ref.Kind); !ok {
		return "", fmt.Errorf("%w: operation %q", domain.ErrUnsupportedType, ref.Kind)
	}
	token := domain.CallbackToken(uuid.NewString())
	if err := setJSON(ctx, r.store, callbackKeyPrefix+string(token), ref); err != nil {
		return "", fmt.Errorf("storing callback: %w", err)
	}
	return token, nil
}

// Run loads the operation behind token and dispatches it.
func (r *CallbackRegistry) Run(ctx context.Context, token domain.CallbackToken, payload any) (json.RawMessage, error) {
	ref, err := getJSON[domain.CallbackRef](ctx, r.store, callbackKeyPrefix+string(token))
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrCallbackNotFound, token)
	}

	handler, ok := r.handler(ref.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: operation %q", domain.ErrUnsupportedType, ref.Kind)
	}

	rawPayload, err := encodePayload(payload)
	if err != nil {
		return nil, err
	}

	result, err := handler(ctx, ref.Args, rawPayload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ref.Kind, err)
	}
	if result == nil {
		return nil, nil
	}
	out, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encoding %s result: %w", ref.Kind, err)
	}
	return out, nil
}

// Delete removes token.
func (r *CallbackRegistry) Delete(ctx context.Context, token domain.CallbackToken) error {
	if token == "" {
		return nil
	}
	return r.store.Clear(ctx, callbackKeyPrefix+string(token))
}

func (r *CallbackRegistry) handler(kind domain.OperationKind) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[kind]
	return h, ok
}

func encodePayload(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return p, nil
	default:
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encoding payload: %w", err)
		}
		return raw, nil
	}
}
