package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/syncd/internal/core/domain"
)

// setupTestStore creates a new store in a temporary directory for testing.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "syncd-test-*")
	require.NoError(t, err)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		assert.NoError(t, store.Close())
		assert.NoError(t, os.RemoveAll(tempDir))
	}

	return store, cleanup
}

func TestNewStore_CreatesDatabase(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	assert.Equal(t, "syncd.db", filepath.Base(store.Path()))
	_, err := os.Stat(store.Path())
	assert.NoError(t, err)
}

func TestNewStore_ReopenKeepsData(t *testing.T) {
	tempDir := t.TempDir()
	ctx := context.Background()

	first, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NoError(t, first.StateStore().Set(ctx, "sync_enabled_r1", []byte("true")))
	require.NoError(t, first.Close())

	// Migrations are not reapplied on the second open.
	second, err := NewStore(tempDir)
	require.NoError(t, err)
	defer second.Close()

	value, err := second.StateStore().Get(ctx, "sync_enabled_r1")
	require.NoError(t, err)
	assert.Equal(t, "true", string(value))

	var version int
	require.NoError(t, second.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 1, version)
}

// ==================== StateStore Tests ====================

func TestStateStore_SetGetClear(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	state := store.StateStore()

	_, err := state.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, state.Set(ctx, "conn-1/sync_state_r1", []byte(`{"cursor":"abc"}`)))
	value, err := state.Get(ctx, "conn-1/sync_state_r1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"cursor":"abc"}`, string(value))

	// Overwrite
	require.NoError(t, state.Set(ctx, "conn-1/sync_state_r1", []byte(`{"cursor":"def"}`)))
	value, err = state.Get(ctx, "conn-1/sync_state_r1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"cursor":"def"}`, string(value))

	require.NoError(t, state.Clear(ctx, "conn-1/sync_state_r1"))
	_, err = state.Get(ctx, "conn-1/sync_state_r1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Clearing an absent key is fine
	assert.NoError(t, state.Clear(ctx, "conn-1/sync_state_r1"))
}

func TestStateStore_Keys(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	state := store.StateStore()

	for _, key := range []string{"conn-1/sync_state_b", "conn-1/sync_state_a", "conn-1/webhook_id_a", "conn-10/sync_state_a"} {
		require.NoError(t, state.Set(ctx, key, []byte("1")))
	}

	keys, err := state.Keys(ctx, "conn-1/sync_")
	require.NoError(t, err)
	assert.Equal(t, []string{"conn-1/sync_state_a", "conn-1/sync_state_b"}, keys)

	// Underscores and percent signs are literal, not wildcards.
	keys, err = state.Keys(ctx, "conn-1/sync%")
	require.NoError(t, err)
	assert.Empty(t, keys)

	keys, err = state.Keys(ctx, "")
	require.NoError(t, err)
	assert.Len(t, keys, 4)
}
