package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/syncd/internal/core/domain"
)

// ==================== SchedulerStore Tests ====================

func TestSchedulerStore_SaveAndGetTask(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	schedulerStore := store.SchedulerStore()

	now := time.Date(2025, 6, 1, 12, 0, 0, 123456789, time.UTC)
	task := &domain.ScheduledTask{
		ID:        "task-1",
		Name:      "sync.batch",
		Callback:  "tok-1",
		RunAt:     now.Add(time.Minute),
		Attempts:  2,
		LastRun:   now,
		LastError: "upstream 503",
		CreatedAt: now.Add(-time.Hour),
	}

	require.NoError(t, schedulerStore.SaveTask(ctx, task))

	retrieved, err := schedulerStore.GetTask(ctx, "task-1")
	require.NoError(t, err)
	require.NotNil(t, retrieved)

	assert.Equal(t, task.ID, retrieved.ID)
	assert.Equal(t, task.Name, retrieved.Name)
	assert.Equal(t, task.Callback, retrieved.Callback)
	assert.Equal(t, task.Attempts, retrieved.Attempts)
	assert.Equal(t, task.LastError, retrieved.LastError)
	assert.True(t, task.RunAt.Equal(retrieved.RunAt), "run_at keeps sub-second precision")
	assert.True(t, task.LastRun.Equal(retrieved.LastRun))
	assert.True(t, task.CreatedAt.Equal(retrieved.CreatedAt))
}

func TestSchedulerStore_GetTask_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	task, err := store.SchedulerStore().GetTask(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestSchedulerStore_SaveTask_Update(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	schedulerStore := store.SchedulerStore()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	task := &domain.ScheduledTask{ID: "task-1", Name: "sync.batch", Callback: "tok", RunAt: now, CreatedAt: now}
	require.NoError(t, schedulerStore.SaveTask(ctx, task))

	task.Attempts = 1
	task.LastError = "boom"
	task.RunAt = now.Add(30 * time.Second)
	require.NoError(t, schedulerStore.SaveTask(ctx, task))

	retrieved, err := schedulerStore.GetTask(ctx, "task-1")
	require.NoError(t, err)
	require.NotNil(t, retrieved)
	assert.Equal(t, 1, retrieved.Attempts)
	assert.Equal(t, "boom", retrieved.LastError)
	assert.True(t, retrieved.RunAt.Equal(now.Add(30*time.Second)))
	assert.True(t, retrieved.InBackoff())
}

func TestSchedulerStore_SaveTask_Nil(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	err := store.SchedulerStore().SaveTask(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSchedulerStore_ListTasks_OrderedByRunAt(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	schedulerStore := store.SchedulerStore()

	tasks, err := schedulerStore.ListTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"late", "early", "middle"} {
		offsets := []time.Duration{time.Hour, time.Millisecond, time.Minute}
		require.NoError(t, schedulerStore.SaveTask(ctx, &domain.ScheduledTask{
			ID: id, Name: "n", Callback: "t", RunAt: base.Add(offsets[i]), CreatedAt: base,
		}))
	}

	tasks, err = schedulerStore.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, "early", tasks[0].ID)
	assert.Equal(t, "middle", tasks[1].ID)
	assert.Equal(t, "late", tasks[2].ID)
}

func TestSchedulerStore_DeleteTask(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	schedulerStore := store.SchedulerStore()

	now := time.Now()
	require.NoError(t, schedulerStore.SaveTask(ctx, &domain.ScheduledTask{
		ID: "task-1", Name: "n", Callback: "t", RunAt: now, CreatedAt: now,
	}))
	require.NoError(t, schedulerStore.DeleteTask(ctx, "task-1"))

	task, err := schedulerStore.GetTask(ctx, "task-1")
	require.NoError(t, err)
	assert.Nil(t, task)

	// Deleting again is not an error
	assert.NoError(t, schedulerStore.DeleteTask(ctx, "task-1"))
}

func TestSchedulerStore_RecordResultAndHistory(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	schedulerStore := store.SchedulerStore()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		started := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, schedulerStore.RecordResult(ctx, &domain.TaskResult{
			TaskID:    "task-1",
			StartedAt: started,
			EndedAt:   started.Add(time.Second),
			Success:   i == 2,
			Error:     map[bool]string{true: "", false: "failed"}[i == 2],
			Attempt:   i + 1,
		}))
	}

	history, err := schedulerStore.GetTaskHistory(ctx, "task-1", 10)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.True(t, history[0].Success, "most recent first")
	assert.Equal(t, 3, history[0].Attempt)
	assert.Empty(t, history[0].Error)
	assert.Equal(t, "failed", history[2].Error)

	limited, err := schedulerStore.GetTaskHistory(ctx, "task-1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	assert.ErrorIs(t, schedulerStore.RecordResult(ctx, nil), domain.ErrInvalidInput)
}

func TestSchedulerStore_PruneHistory(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	schedulerStore := store.SchedulerStore()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for _, taskID := range []string{"a", "b"} {
		for i := 0; i < 5; i++ {
			started := base.Add(time.Duration(i) * time.Minute)
			require.NoError(t, schedulerStore.RecordResult(ctx, &domain.TaskResult{
				TaskID: taskID, StartedAt: started, EndedAt: started, Success: true, Attempt: 1,
			}))
		}
	}

	require.NoError(t, schedulerStore.PruneHistory(ctx, 2))

	for _, taskID := range []string{"a", "b"} {
		history, err := schedulerStore.GetTaskHistory(ctx, taskID, 10)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.True(t, history[0].StartedAt.Equal(base.Add(4*time.Minute)))
	}
}
