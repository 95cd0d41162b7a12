package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/syncd/internal/core/domain"
)

func TestStatusCmd(t *testing.T) {
	expiry := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	engine := &mockEngine{
		channels: map[string][]domain.Resource{"cal": {{ID: "primary"}, {ID: "team"}}},
		statuses: map[string]*domain.ResourceStatus{
			"cal/primary": {
				Enabled:        true,
				State:          domain.ResourceStateSyncing,
				InitialSync:    true,
				BatchNumber:    4,
				ItemsProcessed: 150,
				Sequence:       2,
				WebhookURL:     "https://hooks.example.com/webhooks/x",
				WatchExpiry:    &expiry,
			},
		},
	}
	svc := newTestServices()
	svc.Engine = engine
	setupServices(t, svc)

	t.Run("every channel", func(t *testing.T) {
		out, err := execute(t, "status", "cal")

		require.NoError(t, err)
		assert.Contains(t, out, "primary")
		assert.Contains(t, out, "initial")
		assert.Contains(t, out, "150")
		assert.Contains(t, out, "webhook until")
		assert.Contains(t, out, "team")
		assert.Contains(t, out, "polling")
	})

	t.Run("requires a connection", func(t *testing.T) {
		_, err := execute(t, "status")
		assert.Error(t, err)
	})
}

func TestTasksCmd(t *testing.T) {
	t.Run("empty queue", func(t *testing.T) {
		setupServices(t, newTestServices())

		out, err := execute(t, "tasks")

		require.NoError(t, err)
		assert.Contains(t, out, "No tasks queued.")
	})

	t.Run("lists tasks", func(t *testing.T) {
		svc := newTestServices()
		svc.Scheduler = &mockScheduler{pending: []domain.ScheduledTask{{
			ID:        "task-1",
			Name:      string(domain.OpSyncBatch),
			RunAt:     time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC),
			Attempts:  2,
			LastError: "rate limited",
		}}}
		setupServices(t, svc)

		out, err := execute(t, "tasks")

		require.NoError(t, err)
		assert.Contains(t, out, "task-1")
		assert.Contains(t, out, "sync.batch")
		assert.Contains(t, out, "rate limited")
	})
}
