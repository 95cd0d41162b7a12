package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/syncd/internal/core/domain"
	"github.com/custodia-labs/syncd/internal/core/ports/driven"
)

func newTestActivity(key, resource, title string) domain.Activity {
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return domain.Activity{
		SourceKey:    key,
		ConnectionID: "conn-1",
		ResourceID:   resource,
		Type:         domain.ActivityTypeAction,
		Title:        domain.Ptr(title),
		Created:      &created,
		Unread:       domain.Ptr(false),
		Archived:     domain.Ptr(false),
		Notes:        []domain.Note{{Key: domain.NoteKeyDescription, Content: "original"}},
	}
}

func TestActivityStore_UpsertAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	activities := store.ActivityStore()

	_, err := activities.Get(ctx, "github:issue:1:2")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, activities.Upsert(ctx, newTestActivity("github:issue:1:2", "repo-1", "Bug")))

	got, err := activities.Get(ctx, "github:issue:1:2")
	require.NoError(t, err)
	assert.Equal(t, "Bug", *got.Title)
	assert.False(t, *got.Unread)
	require.Len(t, got.Notes, 1)
	assert.True(t, got.Created.Equal(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)))

	assert.ErrorIs(t, activities.Upsert(ctx, domain.Activity{}), domain.ErrInvalidInput)
}

func TestActivityStore_UpsertMerges(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	activities := store.ActivityStore()

	require.NoError(t, activities.Upsert(ctx, newTestActivity("k1", "repo-1", "Bug")))

	// User marks it read.
	require.NoError(t, activities.Upsert(ctx, domain.Activity{SourceKey: "k1", Unread: domain.Ptr(true)}))

	// Incremental update: new title, new comment, no unread/archived.
	require.NoError(t, activities.Upsert(ctx, domain.Activity{
		SourceKey: "k1",
		Title:     domain.Ptr("Bug (renamed)"),
		Notes: []domain.Note{
			{Key: domain.NoteKeyDescription, Content: "edited"},
			{Key: domain.CommentNoteKey("99"), Content: "first comment"},
		},
	}))

	got, err := activities.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "Bug (renamed)", *got.Title)
	assert.True(t, *got.Unread, "unread preserved")
	assert.False(t, *got.Archived)
	require.Len(t, got.Notes, 2)
	assert.Equal(t, "edited", got.Notes[0].Content)
	assert.Equal(t, "comment-99", got.Notes[1].Key)
	assert.Equal(t, "conn-1", got.ConnectionID)
}

func TestActivityStore_List(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	activities := store.ActivityStore()

	require.NoError(t, activities.Upsert(ctx, newTestActivity("c", "repo-2", "C")))
	require.NoError(t, activities.Upsert(ctx, newTestActivity("a", "repo-1", "A")))
	require.NoError(t, activities.Upsert(ctx, newTestActivity("b", "repo-1", "B")))

	tests := []struct {
		name   string
		filter driven.ActivityFilter
		want   []string
	}{
		{"all", driven.ActivityFilter{}, []string{"a", "b", "c"}},
		{"by resource", driven.ActivityFilter{ConnectionID: "conn-1", ResourceID: "repo-1"}, []string{"a", "b"}},
		{"limit", driven.ActivityFilter{Limit: 1}, []string{"a"}},
		{"other connection", driven.ActivityFilter{ConnectionID: "conn-2"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := activities.List(ctx, tt.filter)
			require.NoError(t, err)
			keys := make([]string, 0, len(got))
			for _, a := range got {
				keys = append(keys, a.SourceKey)
			}
			assert.Equal(t, tt.want, keys)
		})
	}
}

func TestActivityStore_ArchiveResource(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	activities := store.ActivityStore()

	require.NoError(t, activities.Upsert(ctx, newTestActivity("a", "repo-1", "A")))
	require.NoError(t, activities.Upsert(ctx, newTestActivity("b", "repo-1", "B")))
	require.NoError(t, activities.Upsert(ctx, newTestActivity("c", "repo-2", "C")))

	n, err := activities.ArchiveResource(ctx, "conn-1", "repo-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	a, err := activities.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, *a.Archived)
	assert.Equal(t, "A", *a.Title)

	c, err := activities.Get(ctx, "c")
	require.NoError(t, err)
	assert.False(t, *c.Archived)

	// Already archived rows are not counted again.
	n, err = activities.ArchiveResource(ctx, "conn-1", "repo-1")
	require.NoError(t, err)
	assert.Zero(t, n)
}
