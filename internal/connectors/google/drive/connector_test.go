package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/drive/v3"

	"github.com/custodia-labs/syncd/internal/connectors/google"
	"github.com/custodia-labs/syncd/internal/core/domain"
	"github.com/custodia-labs/syncd/internal/core/ports/driven"
)

type mockTokenProvider struct {
	token string
}

func (p *mockTokenProvider) GetToken(context.Context) (string, error) { return p.token, nil }
func (p *mockTokenProvider) IsAuthenticated() bool                    { return p.token != "" }

func newTestConnector(t *testing.T, cfg *Config, mux *http.ServeMux) *Connector {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	svc, err := google.NewDriveService(context.Background(), &mockTokenProvider{token: "test-token"}, srv.URL+"/")
	require.NoError(t, err)
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := New("drive-conn", cfg, svc, google.NewRateLimiterWithConfig(google.RateLimitConfig{}))
	c.now = func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) }
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func writeError(w http.ResponseWriter, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = fmt.Fprintf(w, `{"error":{"code":%d,"message":"failed"}}`, code)
}

func startTokenHandler(t *testing.T, token string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, map[string]any{"startPageToken": token})
	}
}

func TestConnector_Metadata(t *testing.T) {
	c := New("d", DefaultConfig(), nil, nil)

	assert.Equal(t, "google-drive", c.Type())
	caps := c.Capabilities()
	assert.True(t, caps.Webhooks)
	assert.True(t, caps.WatchRenewal)
	assert.True(t, caps.DeltaSync)
	assert.False(t, caps.Comments)
	assert.Equal(t, Type, Descriptor().ID)
}

func TestParseConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := ParseConfig(domain.Connection{})

		require.NoError(t, err)
		assert.Equal(t, DefaultContentTypes, cfg.ContentTypes)
		assert.True(t, cfg.ExportContent)
		assert.True(t, cfg.SharedDrives)
	})

	t.Run("explicit settings", func(t *testing.T) {
		cfg, err := ParseConfig(domain.Connection{Settings: map[string]string{
			SettingContentTypes:  "docs, sheets",
			SettingMimeTypes:     "application/pdf ,text/plain",
			SettingFolderIDs:     "f1",
			SettingExportContent: "false",
			SettingSharedDrives:  "0",
		}})

		require.NoError(t, err)
		assert.Equal(t, []ContentType{ContentDocs, ContentSheets}, cfg.ContentTypes)
		assert.Equal(t, []string{"application/pdf", "text/plain"}, cfg.MimeTypeFilter)
		assert.Equal(t, []string{"f1"}, cfg.FolderIDs)
		assert.False(t, cfg.ExportContent)
		assert.False(t, cfg.SharedDrives)
	})

	t.Run("rejects unknown content type", func(t *testing.T) {
		_, err := ParseConfig(domain.Connection{Settings: map[string]string{SettingContentTypes: "videos"}})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("rejects bad boolean", func(t *testing.T) {
		_, err := ParseConfig(domain.Connection{Settings: map[string]string{SettingExportContent: "sometimes"}})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestCursor(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		in := Cursor{Mode: ModeFiles, PageToken: "p", StartPageToken: "s"}
		out, err := DecodeCursor(in.Encode())

		require.NoError(t, err)
		assert.Equal(t, ModeFiles, out.Mode)
		assert.Equal(t, "p", out.PageToken)
		assert.Equal(t, "s", out.StartPageToken)
	})

	t.Run("empty", func(t *testing.T) {
		out, err := DecodeCursor("")

		require.NoError(t, err)
		assert.True(t, out.IsEmpty())
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := DecodeCursor("eyJ2IjoxLCJtb2RlIjoieCJ9") // {"v":1,"mode":"x"}

		assert.ErrorIs(t, err, domain.ErrCursorExpired)
		assert.ErrorIs(t, err, ErrInvalidCursor)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := DecodeCursor("not base64!")
		assert.ErrorIs(t, err, domain.ErrCursorExpired)
	})
}

func TestShouldSyncFile(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, ShouldSyncFile(&drive.File{MimeType: MimeTypeFolder}, cfg))
	assert.True(t, ShouldSyncFile(&drive.File{MimeType: MimeTypeGoogleDoc}, cfg))
	assert.True(t, ShouldSyncFile(&drive.File{MimeType: "application/pdf", Trashed: true}, cfg))

	docsOnly := &Config{ContentTypes: []ContentType{ContentDocs}}
	assert.True(t, ShouldSyncFile(&drive.File{MimeType: MimeTypeGoogleDoc}, docsOnly))
	assert.False(t, ShouldSyncFile(&drive.File{MimeType: MimeTypeGoogleSheet}, docsOnly))
	assert.False(t, ShouldSyncFile(&drive.File{MimeType: "text/plain"}, docsOnly))

	pdfs := &Config{ContentTypes: DefaultContentTypes, MimeTypeFilter: []string{"application/pdf"}}
	assert.True(t, ShouldSyncFile(&drive.File{MimeType: "application/pdf"}, pdfs))
	assert.False(t, ShouldSyncFile(&drive.File{MimeType: "text/plain"}, pdfs))

	folder := &Config{ContentTypes: DefaultContentTypes, FolderIDs: []string{"f1"}}
	assert.True(t, ShouldSyncFile(&drive.File{MimeType: "text/plain", Parents: []string{"f0", "f1"}}, folder))
	assert.False(t, ShouldSyncFile(&drive.File{MimeType: "text/plain", Parents: []string{"f2"}}, folder))
}

func TestFilesQuery(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "trashed = false", filesQuery(nil, nil))
	assert.Equal(t,
		"trashed = false and modifiedTime >= '2026-01-01T00:00:00Z' and createdTime <= '2026-06-01T00:00:00Z'",
		filesQuery(&from, &until))
}

func TestConnector_ListResources(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /drives", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, map[string]any{"drives": []map[string]any{{"id": "0AAA", "name": "Engineering"}}})
	})

	t.Run("my drive and shared drives", func(t *testing.T) {
		c := newTestConnector(t, nil, mux)

		resources, err := c.ListResources(context.Background())

		require.NoError(t, err)
		require.Len(t, resources, 2)
		assert.Equal(t, ResourceMyDrive, resources[0].ID)
		assert.True(t, resources[0].Primary)
		assert.Equal(t, domain.Resource{ID: "0AAA", Name: "Engineering", Kind: "shared_drive"}, resources[1])
	})

	t.Run("shared drives disabled", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.SharedDrives = false
		c := newTestConnector(t, cfg, mux)

		resources, err := c.ListResources(context.Background())

		require.NoError(t, err)
		assert.Len(t, resources, 1)
	})
}

func TestConnector_FetchPage(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	t.Run("initial pass captures start token and lists files", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /changes/startPageToken", startTokenHandler(t, "start-1"))
		mux.HandleFunc("GET /files", func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			assert.Equal(t, "trashed = false", q.Get("q"))
			assert.Equal(t, "user", q.Get("corpora"))
			assert.Equal(t, "50", q.Get("pageSize"))
			writeJSON(t, w, map[string]any{
				"files": []map[string]any{
					{"id": "doc1", "name": "Plan", "mimeType": MimeTypeGoogleDoc},
					{"id": "dir1", "name": "Folder", "mimeType": MimeTypeFolder},
				},
				"nextPageToken": "files-2",
			})
		})
		c := newTestConnector(t, nil, mux)

		page, err := c.FetchPage(context.Background(), ResourceMyDrive, domain.NewInitialSyncState(domain.SyncWindow{}, now), 50)

		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "doc1", page.Items[0].ID)
		assert.True(t, page.More)

		next, err := DecodeCursor(page.NextCursor)
		require.NoError(t, err)
		assert.Equal(t, Cursor{Version: CursorVersion, Mode: ModeFiles, PageToken: "files-2", StartPageToken: "start-1"}, *next)
	})

	t.Run("last file page checkpoints on the start token", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /files", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "files-2", r.URL.Query().Get("pageToken"))
			assert.Equal(t, "drive", r.URL.Query().Get("corpora"))
			assert.Equal(t, "0AAA", r.URL.Query().Get("driveId"))
			writeJSON(t, w, map[string]any{"files": []any{}})
		})
		c := newTestConnector(t, nil, mux)

		state := domain.NewInitialSyncState(domain.SyncWindow{}, now)
		state.Cursor = (&Cursor{Mode: ModeFiles, PageToken: "files-2", StartPageToken: "start-1"}).Encode()
		page, err := c.FetchPage(context.Background(), "0AAA", state, 50)

		require.NoError(t, err)
		assert.False(t, page.More)
		checkpoint, err := DecodeCursor(page.Checkpoint)
		require.NoError(t, err)
		assert.Equal(t, ModeChanges, checkpoint.Mode)
		assert.Equal(t, "start-1", checkpoint.PageToken)
	})

	t.Run("incremental pass walks changes", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /changes", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "start-1", r.URL.Query().Get("pageToken"))
			assert.Equal(t, "true", r.URL.Query().Get("includeRemoved"))
			writeJSON(t, w, map[string]any{
				"changes": []map[string]any{
					{"changeType": "file", "fileId": "a", "file": map[string]any{"id": "a", "name": "A", "mimeType": "text/plain"}},
					{"changeType": "file", "fileId": "b", "removed": true},
					{"changeType": "file", "fileId": "c", "file": map[string]any{"id": "c", "name": "C", "mimeType": "text/plain", "trashed": true}},
					{"changeType": "file", "fileId": "d", "file": map[string]any{"id": "d", "mimeType": MimeTypeFolder}},
					{"changeType": "drive", "driveId": "0AAA"},
				},
				"newStartPageToken": "start-2",
			})
		})
		c := newTestConnector(t, nil, mux)

		state := domain.NewIncrementalSyncState((&Cursor{Mode: ModeChanges, PageToken: "start-1"}).Encode(), now)
		page, err := c.FetchPage(context.Background(), ResourceMyDrive, state, 50)

		require.NoError(t, err)
		require.Len(t, page.Items, 3)
		assert.False(t, page.Items[0].Deleted)
		assert.True(t, page.Items[1].Deleted)
		assert.True(t, page.Items[2].Deleted)

		checkpoint, err := DecodeCursor(page.Checkpoint)
		require.NoError(t, err)
		assert.Equal(t, "start-2", checkpoint.PageToken)
	})

	t.Run("expired token maps to cursor expired", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /changes", func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusGone)
		})
		c := newTestConnector(t, nil, mux)

		state := domain.NewIncrementalSyncState((&Cursor{Mode: ModeChanges, PageToken: "old"}).Encode(), now)
		_, err := c.FetchPage(context.Background(), ResourceMyDrive, state, 50)

		assert.ErrorIs(t, err, domain.ErrCursorExpired)
	})
}

func TestConnector_Transform(t *testing.T) {
	file := &drive.File{
		Id:                "doc1",
		Name:              "Plan",
		MimeType:          MimeTypeGoogleDoc,
		Description:       "fallback",
		WebViewLink:       "https://docs.google.com/document/d/doc1",
		CreatedTime:       "2026-01-02T03:04:05Z",
		ModifiedTime:      "2026-02-02T03:04:05Z",
		Parents:           []string{"root"},
		Owners:            []*drive.User{{DisplayName: "Alice", EmailAddress: "alice@example.com", PermissionId: "p1"}},
		LastModifyingUser: &drive.User{DisplayName: "Bob", PermissionId: "p2"},
	}

	t.Run("exports document text", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /files/doc1/export", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, ExportMimeText, r.URL.Query().Get("mimeType"))
			_, _ = io.WriteString(w, "the plan")
		})
		c := newTestConnector(t, nil, mux)

		a, err := c.Transform(context.Background(), ResourceMyDrive, driven.RawItem{
			ID:      "doc1",
			Payload: &FileItem{FileID: "doc1", File: file},
		})

		require.NoError(t, err)
		assert.Equal(t, "google-drive:file:doc1", a.SourceKey)
		assert.Equal(t, domain.ActivityTypeNote, a.Type)
		assert.Equal(t, "Plan", *a.Title)
		assert.Equal(t, "https://docs.google.com/document/d/doc1", *a.URL)
		assert.Equal(t, "Alice", a.Author.Name)
		assert.Equal(t, "/root/Plan", a.Meta[MetaPath])
		assert.Equal(t, MimeTypeGoogleDoc, a.Meta[MetaMimeType])
		require.Len(t, a.Participants, 1)
		require.Len(t, a.Notes, 1)
		assert.Equal(t, domain.NoteKeyDescription, a.Notes[0].Key)
		assert.Equal(t, "the plan", a.Notes[0].Content)
		assert.Equal(t, ExportMimeText, a.Notes[0].ContentType)
	})

	t.Run("export failure keeps the description", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /files/doc1/export", func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusForbidden)
		})
		c := newTestConnector(t, nil, mux)

		a, err := c.Transform(context.Background(), ResourceMyDrive, driven.RawItem{
			ID:      "doc1",
			Payload: &FileItem{FileID: "doc1", File: file},
		})

		require.NoError(t, err)
		assert.Equal(t, "fallback", a.Notes[0].Content)
	})

	t.Run("export disabled makes no calls", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ExportContent = false
		c := newTestConnector(t, cfg, http.NewServeMux())

		a, err := c.Transform(context.Background(), ResourceMyDrive, driven.RawItem{
			ID:      "doc1",
			Payload: &FileItem{FileID: "doc1", File: file},
		})

		require.NoError(t, err)
		assert.Equal(t, "fallback", a.Notes[0].Content)
	})

	t.Run("removed file carries only its key", func(t *testing.T) {
		c := New("d", DefaultConfig(), nil, nil)

		a, err := c.Transform(context.Background(), ResourceMyDrive, driven.RawItem{
			ID:      "gone",
			Deleted: true,
			Payload: &FileItem{FileID: "gone"},
		})

		require.NoError(t, err)
		assert.Equal(t, "google-drive:file:gone", a.SourceKey)
		assert.Nil(t, a.Title)
		assert.Nil(t, a.Notes)
	})

	t.Run("foreign payload", func(t *testing.T) {
		c := New("d", DefaultConfig(), nil, nil)

		_, err := c.Transform(context.Background(), ResourceMyDrive, driven.RawItem{ID: "x"})
		assert.ErrorIs(t, err, ErrUnexpectedPayload)
	})
}

func TestConnector_Watch(t *testing.T) {
	var stopped []string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /changes/startPageToken", startTokenHandler(t, "start-9"))
	mux.HandleFunc("POST /changes/watch", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "start-9", r.URL.Query().Get("pageToken"))
		var ch drive.Channel
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ch))
		assert.Equal(t, "s3cret", ch.Token)
		assert.Equal(t, google.ChannelType, ch.Type)
		writeJSON(t, w, map[string]any{"id": ch.Id, "resourceId": "res-9", "expiration": "1778457600000"})
	})
	mux.HandleFunc("POST /channels/stop", func(w http.ResponseWriter, r *http.Request) {
		var ch drive.Channel
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ch))
		stopped = append(stopped, ch.Id)
		w.WriteHeader(http.StatusNoContent)
	})
	c := newTestConnector(t, nil, mux)
	ctx := context.Background()

	t.Run("register", func(t *testing.T) {
		reg, err := c.RegisterWebhook(ctx, ResourceMyDrive, "https://hooks.example.com/webhooks/d", "s3cret")

		require.NoError(t, err)
		assert.Equal(t, "res-9", reg.ProviderResourceID)
		assert.Equal(t, "https://hooks.example.com/webhooks/d", reg.URL)
		require.NotNil(t, reg.Expiry)
	})

	t.Run("renew stops the old channel", func(t *testing.T) {
		old := domain.WebhookRegistration{ID: "old", URL: "https://hooks.example.com/webhooks/d", ProviderResourceID: "res-1"}

		reg, err := c.RenewWatch(ctx, ResourceMyDrive, "s3cret", old)

		require.NoError(t, err)
		assert.NotEqual(t, "old", reg.ID)
		assert.Equal(t, []string{"old"}, stopped)
	})

	t.Run("parse", func(t *testing.T) {
		h := http.Header{}
		h.Set(google.HeaderResourceState, "change")
		ev, err := c.ParseWebhook(ctx, ResourceMyDrive, &domain.WebhookRequest{Headers: h})

		require.NoError(t, err)
		assert.Equal(t, domain.EventSignal, ev.Kind)
	})
}

func TestNewBuilder_SharesLimiter(t *testing.T) {
	build := NewBuilder(google.NewLimiters())
	tp := &mockTokenProvider{token: "t"}

	first, err := build(domain.Connection{ID: "conn-a"}, tp)
	require.NoError(t, err)
	second, err := build(domain.Connection{ID: "conn-a"}, tp)
	require.NoError(t, err)
	other, err := build(domain.Connection{ID: "conn-b"}, tp)
	require.NoError(t, err)

	limiter := first.(*Connector).limiter
	assert.Same(t, limiter, second.(*Connector).limiter, "backoff survives between batches")
	assert.NotSame(t, limiter, other.(*Connector).limiter)
}
