package driven

import (
	"context"

	"github.com/custodia-labs/syncd/internal/core/domain"
)

// TaskScheduler enqueues callback tokens for durable, deferred execution.
// It is how a batch reschedules its continuation instead of looping.
type TaskScheduler interface {
	// RunTask enqueues token and returns a task ID usable for cancellation.
	RunTask(ctx context.Context, token domain.CallbackToken, opts domain.RunOptions) (string, error)

	// CancelTask removes a pending task. Unknown IDs are not an error.
	CancelTask(ctx context.Context, taskID string) error
}
