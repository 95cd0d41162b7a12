package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/syncd/internal/core/domain"
	"github.com/custodia-labs/syncd/internal/core/ports/driven"
	"github.com/custodia-labs/syncd/internal/core/ports/driving"
	"github.com/custodia-labs/syncd/internal/logger"
)

var (
	_ driven.TaskScheduler = (*Scheduler)(nil)
	_ driving.Scheduler    = (*Scheduler)(nil)
)

// Scheduler is a durable task queue. Tasks are callback tokens with a
// run-at time, persisted in a SchedulerStore and executed through the
// callback registry by a ticker loop.
type Scheduler struct {
	config    domain.SchedulerConfig
	store     driven.SchedulerStore
	callbacks driven.CallbackRegistry
	now       func() time.Time

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
	inflight map[string]struct{}
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerClock overrides the scheduler's time source.
func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler creates a scheduler with configuration.
func NewScheduler(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	callbacks driven.CallbackRegistry,
	opts ...SchedulerOption,
) *Scheduler {
	s := &Scheduler{
		config:    config,
		store:     store,
		callbacks: callbacks,
		now:       time.Now,
		inflight:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunTask enqueues token for execution at opts.RunAt.
func (s *Scheduler) RunTask(ctx context.Context, token domain.CallbackToken, opts domain.RunOptions) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: empty callback token", domain.ErrInvalidInput)
	}
	now := s.now()
	runAt := opts.RunAt
	if runAt.IsZero() {
		runAt = now
	}
	task := &domain.ScheduledTask{
		ID:        uuid.NewString(),
		Name:      opts.Name,
		Callback:  token,
		RunAt:     runAt,
		CreatedAt: now,
	}
	if err := s.store.SaveTask(ctx, task); err != nil {
		return "", fmt.Errorf("enqueueing task: %w", err)
	}
	logger.Debug("scheduler: queued %s (%s) for %s", task.ID, task.Name, runAt.Format(time.RFC3339))
	return task.ID, nil
}

// CancelTask removes a pending task.
func (s *Scheduler) CancelTask(ctx context.Context, taskID string) error {
	if taskID == "" {
		return nil
	}
	if err := s.store.DeleteTask(ctx, taskID); err != nil {
		return fmt.Errorf("cancelling task %s: %w", taskID, err)
	}
	return nil
}

// Pending lists queued tasks ordered by RunAt.
func (s *Scheduler) Pending(ctx context.Context) ([]domain.ScheduledTask, error) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].RunAt.Before(tasks[j].RunAt) })
	return tasks, nil
}

// Start begins the scheduler loop. This method blocks until Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil // Already running
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	return s.run(ctx)
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	// Wait for running tasks to complete
	s.wg.Wait()

	return nil
}

// RunPending executes every task due now, one after another, and returns
// how many ran. Tasks enqueued while draining wait for the next call.
func (s *Scheduler) RunPending(ctx context.Context) (int, error) {
	due, err := s.dueTasks(ctx)
	if err != nil {
		return 0, err
	}
	ran := 0
	for i := range due {
		if s.execute(ctx, &due[i]) {
			ran++
		}
	}
	return ran, nil
}

// run is the main scheduler loop.
func (s *Scheduler) run(ctx context.Context) error {
	tick := s.config.Tick
	if tick <= 0 {
		tick = time.Second
	}

	// Check for due tasks immediately on startup
	s.dispatchDue(ctx)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			s.dispatchDue(ctx)
		}
	}
}

// dispatchDue starts a goroutine per due task.
func (s *Scheduler) dispatchDue(ctx context.Context) {
	due, err := s.dueTasks(ctx)
	if err != nil {
		logger.Error("scheduler: failed to list tasks: %v", err)
		return
	}
	for i := range due {
		task := due[i]
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.execute(ctx, &task)
		}()
	}
}

func (s *Scheduler) dueTasks(ctx context.Context) ([]domain.ScheduledTask, error) {
	tasks, err := s.Pending(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	now := s.now()
	due := tasks[:0]
	for _, task := range tasks {
		if task.Due(now) {
			due = append(due, task)
		}
	}
	return due, nil
}

// execute runs one task and records the outcome. It returns false when
// the task was already running in this process.
func (s *Scheduler) execute(ctx context.Context, task *domain.ScheduledTask) bool {
	if !s.claim(task.ID) {
		return false
	}
	defer s.release(task.ID)

	// A previous tick may have finished it between listing and claiming.
	if current, err := s.store.GetTask(ctx, task.ID); err != nil || current == nil || current.Attempts != task.Attempts {
		return false
	}

	result := &domain.TaskResult{
		TaskID:    task.ID,
		StartedAt: s.now(),
		Attempt:   task.Attempts + 1,
	}

	_, err := s.callbacks.Run(ctx, task.Callback, nil)
	result.EndedAt = s.now()

	switch {
	case err == nil:
		result.Success = true
		s.remove(ctx, task.ID)
	case errors.Is(err, domain.ErrCallbackNotFound):
		// The owning resource was disabled; the task is obsolete.
		logger.Info("scheduler: dropping %s (%s): %v", task.ID, task.Name, err)
		result.Error = err.Error()
		s.remove(ctx, task.ID)
	default:
		result.Error = err.Error()
		s.retry(ctx, task, err)
	}

	// Record result for history
	if recordErr := s.store.RecordResult(ctx, result); recordErr != nil {
		logger.Warn("scheduler: failed to record result for %s: %v", task.ID, recordErr)
	}
	if s.config.HistoryKeep > 0 {
		if pruneErr := s.store.PruneHistory(ctx, s.config.HistoryKeep); pruneErr != nil {
			logger.Warn("scheduler: failed to prune history: %v", pruneErr)
		}
	}
	return true
}

// retry reschedules a failed task with backoff, or drops it once it has
// used up its attempts.
func (s *Scheduler) retry(ctx context.Context, task *domain.ScheduledTask, cause error) {
	task.Attempts++
	task.LastError = cause.Error()
	task.LastRun = s.now()

	if s.config.MaxAttempts > 0 && task.Attempts >= s.config.MaxAttempts {
		logger.Error("scheduler: giving up on %s (%s) after %d attempts: %v",
			task.ID, task.Name, task.Attempts, cause)
		s.remove(ctx, task.ID)
		return
	}

	// Cancelled while running: don't resurrect.
	current, err := s.store.GetTask(ctx, task.ID)
	if err != nil || current == nil {
		return
	}

	task.RunAt = task.LastRun.Add(s.config.Backoff(task.Attempts))
	logger.Warn("scheduler: %s (%s) failed, retry %d at %s: %v",
		task.ID, task.Name, task.Attempts, task.RunAt.Format(time.RFC3339), cause)
	if err := s.store.SaveTask(ctx, task); err != nil {
		logger.Error("scheduler: failed to save task %s: %v", task.ID, err)
	}
}

func (s *Scheduler) remove(ctx context.Context, taskID string) {
	if err := s.store.DeleteTask(ctx, taskID); err != nil {
		logger.Error("scheduler: failed to delete task %s: %v", taskID, err)
	}
}

func (s *Scheduler) claim(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[taskID]; busy {
		return false
	}
	s.inflight[taskID] = struct{}{}
	return true
}

func (s *Scheduler) release(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, taskID)
}
