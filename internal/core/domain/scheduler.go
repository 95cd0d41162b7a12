package domain

import "time"

// ScheduledTask is a durable one-shot task: run a callback token at or
// after RunAt. Failed runs are retried with backoff until MaxAttempts.
type ScheduledTask struct {
	// ID is the unique identifier for the task, used for cancellation.
	ID string

	// Name is a human-readable label, typically the operation kind.
	Name string

	// Callback is the token executed when the task runs.
	Callback CallbackToken

	// RunAt is when the task becomes due.
	RunAt time.Time

	// Attempts counts failed executions so far.
	Attempts int

	// LastRun is when the task last ran.
	LastRun time.Time

	// LastError contains the last error message, if any.
	LastError string

	// CreatedAt is when the task was enqueued.
	CreatedAt time.Time
}

// Due reports whether the task should run at now.
func (t *ScheduledTask) Due(now time.Time) bool {
	return t.RunAt.IsZero() || !t.RunAt.After(now)
}

// InBackoff reports whether the task is waiting to retry after a failure.
func (t *ScheduledTask) InBackoff() bool {
	return t.Attempts > 0
}

// RunOptions controls when a task runs.
type RunOptions struct {
	// RunAt delays the task. Zero means as soon as possible.
	RunAt time.Time

	// Name labels the task for display and history.
	Name string
}

// TaskResult represents the outcome of a task execution.
type TaskResult struct {
	// TaskID identifies which task was run.
	TaskID string

	// StartedAt is when the task started.
	StartedAt time.Time

	// EndedAt is when the task completed.
	EndedAt time.Time

	// Success indicates whether the task completed without error.
	Success bool

	// Error contains the error message if Success is false.
	Error string

	// Attempt is the 1-based attempt number of this execution.
	Attempt int
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	// Tick is how often the loop looks for due tasks.
	Tick time.Duration

	// MaxAttempts caps executions of a failing task before it is dropped.
	MaxAttempts int

	// BaseBackoff is the delay after the first failure. It doubles per attempt.
	BaseBackoff time.Duration

	// MaxBackoff caps the retry delay.
	MaxBackoff time.Duration

	// HistoryKeep is how many results are retained per task.
	HistoryKeep int
}

// DefaultSchedulerConfig returns sensible defaults for the scheduler.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Tick:        time.Second,
		MaxAttempts: 5,
		BaseBackoff: 30 * time.Second,
		MaxBackoff:  30 * time.Minute,
		HistoryKeep: 100,
	}
}

// Backoff returns the retry delay after the given number of failures.
func (c SchedulerConfig) Backoff(attempts int) time.Duration {
	if attempts <= 0 || c.BaseBackoff <= 0 {
		return 0
	}
	d := c.BaseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if c.MaxBackoff > 0 && d >= c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	return d
}

// SyncConfig tunes the sync engine.
type SyncConfig struct {
	// PageSize bounds the items fetched per batch.
	PageSize int

	// RenewalMargin is how long before expiry a watch is renewed.
	RenewalMargin time.Duration

	// PollInterval schedules an incremental pass after each completed
	// pass. Zero disables polling.
	PollInterval time.Duration
}

// DefaultPageSize is the number of items fetched per batch.
const DefaultPageSize = 50

// DefaultSyncConfig returns sensible defaults for the sync engine.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		PageSize:      DefaultPageSize,
		RenewalMargin: 24 * time.Hour,
		PollInterval:  15 * time.Minute,
	}
}
