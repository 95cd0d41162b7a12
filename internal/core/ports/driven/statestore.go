package driven

import "context"

// StateStore is a durable key-value store scoped to one connector instance.
// Values are opaque bytes; typed encoding is the caller's concern.
type StateStore interface {
	// Get returns the value for key or domain.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Clear removes key. Clearing an absent key is not an error.
	Clear(ctx context.Context, key string) error

	// Keys returns every key starting with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
