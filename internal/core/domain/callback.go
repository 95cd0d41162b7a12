package domain

import (
	"encoding/json"
	"fmt"
)

// CallbackToken is an opaque, persistable reference to a stored operation.
type CallbackToken string

// OperationKind names a registered operation. The set is closed: every
// kind has exactly one handler registered at start-up.
type OperationKind string

// Operation kinds.
const (
	OpSyncBatch       OperationKind = "sync.batch"
	OpSyncWebhook     OperationKind = "sync.webhook"
	OpSyncRenewWatch  OperationKind = "sync.renew_watch"
	OpSyncPoll        OperationKind = "sync.poll"
	OpActivityUpsert  OperationKind = "activity.upsert"
	OpActivityArchive OperationKind = "activity.archive"
)

// CallbackRef is an operation kind plus its bound arguments.
// It is what a CallbackToken resolves to.
type CallbackRef struct {
	Kind OperationKind  `json:"kind"`
	Args json.RawMessage `json:"args,omitempty"`
}

// NewCallbackRef encodes args and binds them to kind.
func NewCallbackRef(kind OperationKind, args any) (CallbackRef, error) {
	if kind == "" {
		return CallbackRef{}, fmt.Errorf("%w: empty operation kind", ErrInvalidInput)
	}
	ref := CallbackRef{Kind: kind}
	if args == nil {
		return ref, nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return CallbackRef{}, fmt.Errorf("encoding args for %s: %w", kind, err)
	}
	ref.Args = raw
	return ref, nil
}

// ResourceCallback binds a resource reference to kind.
func ResourceCallback(kind OperationKind, ref ResourceRef) CallbackRef {
	ret, _ := NewCallbackRef(kind, ref) //nolint:errcheck // ResourceRef always encodes
	return ret
}

// DestinationCallbacks returns the default callbacks for a resource:
// items upsert into the activity store and disabling archives them.
func DestinationCallbacks(ref ResourceRef) (onItem, onDisable CallbackRef) {
	return ResourceCallback(OpActivityUpsert, ref), ResourceCallback(OpActivityArchive, ref)
}
