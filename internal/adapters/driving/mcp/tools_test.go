package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/syncd/internal/core/domain"
)

func newToolServer(t *testing.T, engine *mockEngine) *Server {
	t.Helper()
	server, err := NewServer(&Ports{Engine: engine})
	require.NoError(t, err)
	server.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	return server
}

func TestServer_handleListChannels(t *testing.T) {
	ctx := context.Background()

	t.Run("merges channel status", func(t *testing.T) {
		engine := &mockEngine{
			channels: []domain.Resource{
				{ID: "primary", Name: "Work", Kind: "calendar", Primary: true},
				{ID: "team", Name: "Team"},
			},
			statuses: map[string]*domain.ResourceStatus{
				"primary": {Enabled: true, State: domain.ResourceStateIdle},
			},
		}
		server := newToolServer(t, engine)

		_, output, err := server.handleListChannels(ctx, nil, ListChannelsInput{ConnectionID: "cal"})

		require.NoError(t, err)
		require.Equal(t, 2, output.Count)
		assert.True(t, output.Channels[0].Enabled)
		assert.Equal(t, "idle", output.Channels[0].State)
		assert.True(t, output.Channels[0].Primary)
		assert.False(t, output.Channels[1].Enabled)
		assert.Equal(t, "disabled", output.Channels[1].State)
	})

	t.Run("returns error on engine failure", func(t *testing.T) {
		server := newToolServer(t, &mockEngine{err: errors.New("connector down")})

		_, _, err := server.handleListChannels(ctx, nil, ListChannelsInput{ConnectionID: "cal"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "connector down")
	})
}

func TestServer_handleEnableChannel(t *testing.T) {
	ctx := context.Background()

	t.Run("without window uses default callbacks", func(t *testing.T) {
		engine := &mockEngine{}
		server := newToolServer(t, engine)

		_, output, err := server.handleEnableChannel(ctx, nil, EnableChannelInput{ConnectionID: "gh", ResourceID: "acme/api"})

		require.NoError(t, err)
		assert.True(t, output.OK)
		assert.Equal(t, []string{"gh/acme/api"}, engine.enabled)
		assert.Empty(t, engine.started)
	})

	t.Run("since days sets the window minimum", func(t *testing.T) {
		engine := &mockEngine{}
		server := newToolServer(t, engine)

		_, output, err := server.handleEnableChannel(ctx, nil, EnableChannelInput{
			ConnectionID: "cal", ResourceID: "primary", SinceDays: 7,
		})

		require.NoError(t, err)
		require.Len(t, engine.started, 1)
		opts := engine.started[0]
		require.NotNil(t, opts.Window.Min)
		assert.Equal(t, time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC), *opts.Window.Min)
		assert.Nil(t, opts.Window.Max)
		assert.Equal(t, domain.OpActivityUpsert, engine.startedItem[0].Kind)
		assert.Contains(t, output.Message, "2026-03-03")
	})

	t.Run("negative since days is rejected", func(t *testing.T) {
		server := newToolServer(t, &mockEngine{})

		_, _, err := server.handleEnableChannel(ctx, nil, EnableChannelInput{SinceDays: -1})

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestServer_handleDisableChannel(t *testing.T) {
	engine := &mockEngine{}
	server := newToolServer(t, engine)

	_, output, err := server.handleDisableChannel(context.Background(), nil, ChannelInput{ConnectionID: "gh", ResourceID: "acme/api"})

	require.NoError(t, err)
	assert.True(t, output.OK)
	assert.Equal(t, []string{"gh/acme/api"}, engine.disabled)
}

func TestServer_handleSyncNow(t *testing.T) {
	t.Run("starts incremental sync", func(t *testing.T) {
		engine := &mockEngine{}
		server := newToolServer(t, engine)

		_, _, err := server.handleSyncNow(context.Background(), nil, ChannelInput{ConnectionID: "gh", ResourceID: "acme/api"})

		require.NoError(t, err)
		assert.Equal(t, []string{"gh/acme/api"}, engine.incremental)
	})

	t.Run("surfaces in-progress", func(t *testing.T) {
		server := newToolServer(t, &mockEngine{err: domain.ErrSyncInProgress})

		_, _, err := server.handleSyncNow(context.Background(), nil, ChannelInput{ConnectionID: "gh", ResourceID: "acme/api"})

		assert.ErrorIs(t, err, domain.ErrSyncInProgress)
	})
}

func TestServer_handleSyncStatus(t *testing.T) {
	expiry := time.Date(2026, 3, 17, 0, 0, 0, 0, time.UTC)
	engine := &mockEngine{statuses: map[string]*domain.ResourceStatus{
		"primary": {
			State:          domain.ResourceStateSyncing,
			Enabled:        true,
			InitialSync:    true,
			BatchNumber:    3,
			ItemsProcessed: 100,
			Sequence:       1,
			WebhookURL:     "https://hooks.example.com/webhooks/abc",
			WatchExpiry:    &expiry,
		},
	}}
	server := newToolServer(t, engine)

	_, output, err := server.handleSyncStatus(context.Background(), nil, ChannelInput{ConnectionID: "cal", ResourceID: "primary"})

	require.NoError(t, err)
	assert.Equal(t, "syncing", output.State)
	assert.True(t, output.InitialSync)
	assert.Equal(t, 3, output.BatchNumber)
	assert.Equal(t, 100, output.ItemsProcessed)
	assert.Equal(t, 1, output.Sequence)
	assert.Equal(t, &expiry, output.WatchExpiry)
}

func TestServer_handleAddComment(t *testing.T) {
	ctx := context.Background()

	t.Run("returns note key", func(t *testing.T) {
		engine := &mockEngine{note: &domain.Note{Key: domain.CommentNoteKey("99")}}
		server := newToolServer(t, engine)

		_, output, err := server.handleAddComment(ctx, nil, AddCommentInput{
			ConnectionID: "gh", ResourceID: "acme/api", ItemID: "7", Body: "looks good",
		})

		require.NoError(t, err)
		assert.Equal(t, "comment-99", output.NoteKey)
		assert.Equal(t, []string{"7:looks good"}, engine.comments)
	})

	t.Run("empty body is rejected", func(t *testing.T) {
		engine := &mockEngine{}
		server := newToolServer(t, engine)

		_, _, err := server.handleAddComment(ctx, nil, AddCommentInput{ItemID: "7"})

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Empty(t, engine.comments)
	})
}
