package driven

import (
	"context"

	"github.com/custodia-labs/syncd/internal/core/domain"
)

// ActivityFilter narrows ListActivities. Empty fields match everything.
type ActivityFilter struct {
	ConnectionID string
	ResourceID   string
	Limit        int
}

// ActivityStore is the destination for canonical activities.
type ActivityStore interface {
	// Upsert creates or merges an activity by SourceKey using
	// domain.MergeActivity semantics. It is atomic per key.
	Upsert(ctx context.Context, activity domain.Activity) error

	// Get returns the activity for sourceKey or domain.ErrNotFound.
	Get(ctx context.Context, sourceKey string) (*domain.Activity, error)

	// List returns activities matching filter, ordered by SourceKey.
	List(ctx context.Context, filter ActivityFilter) ([]domain.Activity, error)

	// ArchiveResource marks every activity from a resource archived.
	// Returns the number of activities changed.
	ArchiveResource(ctx context.Context, connectionID, resourceID string) (int, error)
}
