package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/syncd/internal/core/domain"
	"github.com/custodia-labs/syncd/internal/core/ports/driven"
	"github.com/custodia-labs/syncd/internal/logger"
)

// ActivitySink is the host side of the engine: it owns the default item
// and disable operations and writes them to an ActivityStore.
type ActivitySink struct {
	store driven.ActivityStore
}

// NewActivitySink creates a sink and registers its operations.
func NewActivitySink(store driven.ActivityStore, callbacks HandlerRegistry) *ActivitySink {
	s := &ActivitySink{store: store}
	callbacks.Register(domain.OpActivityUpsert, Handle(s.upsert))
	callbacks.Register(domain.OpActivityArchive, Handle(s.archive))
	return s
}

func (s *ActivitySink) upsert(ctx context.Context, ref domain.ResourceRef, activity domain.Activity) error {
	if activity.SourceKey == "" {
		return fmt.Errorf("%w: activity without source key", domain.ErrInvalidInput)
	}
	if activity.ConnectionID == "" {
		activity.ConnectionID = ref.ConnectionID
	}
	if activity.ResourceID == "" {
		activity.ResourceID = ref.ResourceID
	}
	return s.store.Upsert(ctx, activity)
}

func (s *ActivitySink) archive(ctx context.Context, ref domain.ResourceRef, _ string) error {
	n, err := s.store.ArchiveResource(ctx, ref.ConnectionID, ref.ResourceID)
	if err != nil {
		return err
	}
	logger.Info("Archived %d activities from %s/%s", n, ref.ConnectionID, ref.ResourceID)
	return nil
}
