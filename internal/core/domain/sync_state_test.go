package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewInitialSyncState(t *testing.T) {
	now := time.Now()
	min := now.Add(-30 * 24 * time.Hour)
	state := NewInitialSyncState(SyncWindow{Min: &min}, now)

	assert.Empty(t, state.Cursor)
	assert.Equal(t, 1, state.BatchNumber)
	assert.True(t, state.InitialSync)
	assert.Equal(t, &min, state.Min)
	assert.Nil(t, state.Max)
}

func TestNewIncrementalSyncState(t *testing.T) {
	state := NewIncrementalSyncState("delta-1", time.Now())

	assert.Equal(t, "delta-1", state.Cursor)
	assert.False(t, state.InitialSync)
	assert.Equal(t, 1, state.BatchNumber)
}

func TestSyncState_Advance(t *testing.T) {
	state := NewInitialSyncState(SyncWindow{}, time.Now())
	state.Advance("page-2", 50)
	state.Advance("page-3", 50)

	assert.Equal(t, "page-3", state.Cursor)
	assert.Equal(t, 3, state.BatchNumber)
	assert.Equal(t, 100, state.ItemsProcessed)
}

func TestSyncState_ResetCursor(t *testing.T) {
	now := time.Now()
	min, max := now.Add(-time.Hour), now.Add(time.Hour)
	state := NewInitialSyncState(SyncWindow{Min: &min, Max: &max}, now)
	state.Advance("page-2", 50)

	state.ResetCursor()

	assert.Empty(t, state.Cursor)
	assert.Equal(t, 1, state.Sequence)
	assert.Equal(t, &min, state.Min)
	assert.Equal(t, &max, state.Max)
}
