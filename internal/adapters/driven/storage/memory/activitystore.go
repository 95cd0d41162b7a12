package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/syncd/internal/core/domain"
	"github.com/custodia-labs/syncd/internal/core/ports/driven"
)

// Ensure ActivityStore implements the interface.
var _ driven.ActivityStore = (*ActivityStore)(nil)

// ActivityStore is an in-memory implementation of driven.ActivityStore.
type ActivityStore struct {
	mu         sync.RWMutex
	activities map[string]domain.Activity
}

// NewActivityStore creates a new in-memory activity store.
func NewActivityStore() *ActivityStore {
	return &ActivityStore{
		activities: make(map[string]domain.Activity),
	}
}

// Upsert merges activity into the stored one under the write lock.
func (s *ActivityStore) Upsert(_ context.Context, activity domain.Activity) error {
	if activity.SourceKey == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var existing *domain.Activity
	if a, ok := s.activities[activity.SourceKey]; ok {
		existing = &a
	}
	s.activities[activity.SourceKey] = domain.MergeActivity(existing, activity)
	return nil
}

// Get retrieves an activity by source key.
func (s *ActivityStore) Get(_ context.Context, sourceKey string) (*domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.activities[sourceKey]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

// List returns activities matching filter ordered by source key.
func (s *ActivityStore) List(_ context.Context, filter driven.ActivityFilter) ([]domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Activity, 0, len(s.activities))
	for _, a := range s.activities {
		if filter.ConnectionID != "" && a.ConnectionID != filter.ConnectionID {
			continue
		}
		if filter.ResourceID != "" && a.ResourceID != filter.ResourceID {
			continue
		}
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SourceKey < result[j].SourceKey })
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// ArchiveResource marks every activity of a resource archived.
func (s *ActivityStore) ArchiveResource(_ context.Context, connectionID, resourceID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := 0
	for k, a := range s.activities {
		if a.ConnectionID != connectionID || a.ResourceID != resourceID {
			continue
		}
		if a.Archived != nil && *a.Archived {
			continue
		}
		a.Archived = domain.Ptr(true)
		s.activities[k] = a
		changed++
	}
	return changed, nil
}
