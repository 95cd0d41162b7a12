package driving

import (
	"context"

	"github.com/custodia-labs/syncd/internal/core/domain"
)

// Scheduler runs the durable task queue.
type Scheduler interface {
	// Start begins running scheduled tasks.
	// Blocks until context is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop gracefully stops the loop and waits for running tasks.
	Stop() error

	// RunPending executes every due task once, synchronously.
	RunPending(ctx context.Context) (int, error)

	// Pending lists queued tasks.
	Pending(ctx context.Context) ([]domain.ScheduledTask, error)
}
