package domain

import "time"

// SyncWindow bounds an initial sync in time. Nil bounds are open.
type SyncWindow struct {
	Min *time.Time `json:"min,omitempty"`
	Max *time.Time `json:"max,omitempty"`
}

// SyncState is the per-resource cursor state machine persisted between
// batches. An empty Cursor means "start from the beginning".
type SyncState struct {
	// Cursor is the provider's opaque page or delta token.
	Cursor string `json:"cursor,omitempty"`

	// BatchNumber counts batches in the current pass, starting at 1.
	BatchNumber int `json:"batchNumber"`

	// ItemsProcessed totals items seen in the current pass.
	ItemsProcessed int `json:"itemsProcessed"`

	// InitialSync is true for the first full pass after enabling.
	InitialSync bool `json:"initialSync"`

	// Min and Max carry the sync window across resyncs.
	Min *time.Time `json:"min,omitempty"`
	Max *time.Time `json:"max,omitempty"`

	// Sequence increments each time the cursor is reset after expiry.
	Sequence int `json:"sequence"`

	// StartedAt is when the current pass began.
	StartedAt time.Time `json:"startedAt"`
}

// NewInitialSyncState returns the state for a first full pass.
func NewInitialSyncState(window SyncWindow, now time.Time) SyncState {
	return SyncState{
		BatchNumber: 1,
		InitialSync: true,
		Min:         window.Min,
		Max:         window.Max,
		StartedAt:   now,
	}
}

// NewIncrementalSyncState returns the state for a delta pass resuming
// from a stored checkpoint.
func NewIncrementalSyncState(checkpoint string, now time.Time) SyncState {
	return SyncState{
		Cursor:      checkpoint,
		BatchNumber: 1,
		StartedAt:   now,
	}
}


// Advance records a completed page and moves to the next cursor.
func (s *SyncState) Advance(nextCursor string, processed int) {
	s.Cursor = nextCursor
	s.BatchNumber++
	s.ItemsProcessed += processed
}

// ResetCursor restarts pagination after the provider expired the cursor.
// The window is preserved so the resync covers the same range.
func (s *SyncState) ResetCursor() {
	s.Cursor = ""
	s.Sequence++
}
