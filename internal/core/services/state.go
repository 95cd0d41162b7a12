package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/syncd/internal/core/domain"
	"github.com/custodia-labs/syncd/internal/core/ports/driven"
)

// scopedStore prefixes every key with a namespace so each connector
// instance gets its own view of a shared StateStore.
type scopedStore struct {
	store  driven.StateStore
	prefix string
}

var _ driven.StateStore = (*scopedStore)(nil)

// ScopedStore returns a view of store confined to namespace.
func ScopedStore(store driven.StateStore, namespace string) driven.StateStore {
	return &scopedStore{store: store, prefix: namespace + "/"}
}

func (s *scopedStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s.store.Get(ctx, s.prefix+key)
}

func (s *scopedStore) Set(ctx context.Context, key string, value []byte) error {
	return s.store.Set(ctx, s.prefix+key, value)
}

func (s *scopedStore) Clear(ctx context.Context, key string) error {
	return s.store.Clear(ctx, s.prefix+key)
}

func (s *scopedStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := s.store.Keys(ctx, s.prefix+prefix)
	if err != nil {
		return nil, err
	}
	for i, k := range keys {
		keys[i] = strings.TrimPrefix(k, s.prefix)
	}
	return keys, nil
}

// getJSON decodes the value under key. It returns nil and no error when
// the key is absent.
func getJSON[T any](ctx context.Context, store driven.StateStore, key string) (*T, error) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", key, err)
	}
	return &v, nil
}

// setJSON encodes v and stores it under key.
func setJSON[T any](ctx context.Context, store driven.StateStore, key string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := store.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// getString reads a JSON string value, returning "" when absent.
func getString(ctx context.Context, store driven.StateStore, key string) (string, error) {
	v, err := getJSON[string](ctx, store, key)
	if err != nil || v == nil {
		return "", err
	}
	return *v, nil
}
