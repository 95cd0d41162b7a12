package drive

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/syncd/internal/connectors/google"
	"github.com/custodia-labs/syncd/internal/core/domain"
	"github.com/custodia-labs/syncd/internal/core/ports/driven"
	"github.com/custodia-labs/syncd/internal/logger"
)

// Type is the connector type identifier.
const Type = "google-drive"

// ResourceMyDrive is the resource ID of the user's own drive. Shared
// drives use their drive ID.
const ResourceMyDrive = "my-drive"

// maxPageSize is the files.list and changes.list ceiling.
const maxPageSize = 1000

// Ensure Connector implements the interfaces.
var (
	_ driven.Connector        = (*Connector)(nil)
	_ driven.WebhookConnector = (*Connector)(nil)
	_ driven.WatchRenewer     = (*Connector)(nil)
)

// Connector syncs files from Google Drive.
type Connector struct {
	connectionID string
	config       *Config
	svc          *drive.Service
	limiter      *google.RateLimiter
	now          func() time.Time

	mu     sync.Mutex
	closed bool
}

// New creates a new Google Drive connector.
func New(connectionID string, cfg *Config, svc *drive.Service, limiter *google.RateLimiter) *Connector {
	if limiter == nil {
		limiter = google.NewRateLimiter(google.ServiceDrive)
	}
	return &Connector{
		connectionID: connectionID,
		config:       cfg,
		svc:          svc,
		limiter:      limiter,
		now:          time.Now,
	}
}

// NewBuilder returns the driven.ConnectorBuilder for Google Drive
// connections. Connectors built for the same connection share a limiter.
func NewBuilder(limiters *google.Limiters) driven.ConnectorBuilder {
	return func(conn domain.Connection, tokenProvider driven.TokenProvider) (driven.Connector, error) {
		cfg, err := ParseConfig(conn)
		if err != nil {
			return nil, err
		}
		svc, err := google.NewDriveService(context.Background(), tokenProvider, cfg.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("create drive service: %w", err)
		}
		return New(conn.ID, cfg, svc, limiters.For(conn.ID, google.ServiceDrive)), nil
	}
}

// Descriptor describes the connector for the registry.
func Descriptor() domain.ConnectorType {
	return domain.ConnectorType{
		ID:           Type,
		Name:         "Google Drive",
		Description:  "Documents and files from My Drive and shared drives",
		Capabilities: (&Connector{}).Capabilities(),
		ConfigKeys:   ConfigKeys(),
	}
}

// Type returns the connector type identifier.
func (c *Connector) Type() string {
	return Type
}

// Capabilities returns the connector's capabilities.
func (c *Connector) Capabilities() domain.Capabilities {
	return domain.Capabilities{
		Webhooks:     true,
		WatchRenewal: true,
		DeltaSync:    true,
	}
}

// ListResources returns My Drive followed by the shared drives the user
// belongs to.
func (c *Connector) ListResources(ctx context.Context) ([]domain.Resource, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	resources := []domain.Resource{{ID: ResourceMyDrive, Name: "My Drive", Kind: "drive", Primary: true}}
	if !c.config.SharedDrives {
		return resources, nil
	}

	pageToken := ""
	for {
		call := c.svc.Drives.List().PageSize(100).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		var list *drive.DriveList
		err := c.limiter.Do(ctx, "drives.list", func() error {
			var err error
			list, err = call.Do()
			return err
		})
		if err != nil {
			return nil, err
		}
		for _, d := range list.Drives {
			resources = append(resources, domain.Resource{ID: d.Id, Name: d.Name, Kind: "shared_drive"})
		}
		if list.NextPageToken == "" {
			return resources, nil
		}
		pageToken = list.NextPageToken
	}
}

// FetchPage fetches one page. An empty cursor captures the changes start
// token and begins listing files; the last file page checkpoints on that
// token, and incremental passes walk changes.list from it.
func (c *Connector) FetchPage(ctx context.Context, resourceID string, state domain.SyncState, pageSize int) (*driven.Page, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	cursor, err := DecodeCursor(state.Cursor)
	if err != nil {
		return nil, err
	}
	pageSize = min(max(pageSize, 1), maxPageSize)
	driveID := sharedDriveID(resourceID)

	if cursor.IsEmpty() {
		start, err := c.startPageToken(ctx, driveID)
		if err != nil {
			return nil, err
		}
		cursor = &Cursor{Mode: ModeFiles, StartPageToken: start}
	}

	if cursor.Mode == ModeChanges {
		return c.fetchChanges(ctx, driveID, cursor, pageSize)
	}
	return c.fetchFiles(ctx, driveID, cursor, state, pageSize)
}

func (c *Connector) fetchFiles(ctx context.Context, driveID string, cursor *Cursor, state domain.SyncState, pageSize int) (*driven.Page, error) {
	call := c.svc.Files.List().
		Context(ctx).
		Q(filesQuery(state.Min, state.Max)).
		PageSize(int64(pageSize)).
		OrderBy("modifiedTime").
		Fields(googleapi.Field("nextPageToken, files(" + fileFields + ")")).
		SupportsAllDrives(true)
	if driveID != "" {
		call = call.Corpora("drive").DriveId(driveID).IncludeItemsFromAllDrives(true)
	} else {
		call = call.Corpora("user")
	}
	if cursor.PageToken != "" {
		call = call.PageToken(cursor.PageToken)
	}

	var list *drive.FileList
	err := c.limiter.Do(ctx, "files.list", func() error {
		var err error
		list, err = call.Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	page := &driven.Page{Items: make([]driven.RawItem, 0, len(list.Files))}
	for _, file := range list.Files {
		if !ShouldSyncFile(file, c.config) {
			continue
		}
		page.Items = append(page.Items, driven.RawItem{
			ID:      file.Id,
			Payload: &FileItem{DriveID: driveID, FileID: file.Id, File: file},
		})
	}

	if list.NextPageToken != "" {
		next := Cursor{Mode: ModeFiles, PageToken: list.NextPageToken, StartPageToken: cursor.StartPageToken}
		page.More = true
		page.NextCursor = next.Encode()
		return page, nil
	}
	checkpoint := Cursor{Mode: ModeChanges, PageToken: cursor.StartPageToken}
	page.Checkpoint = checkpoint.Encode()
	return page, nil
}

func (c *Connector) fetchChanges(ctx context.Context, driveID string, cursor *Cursor, pageSize int) (*driven.Page, error) {
	call := c.svc.Changes.List(cursor.PageToken).
		Context(ctx).
		PageSize(int64(pageSize)).
		IncludeRemoved(true).
		Fields(googleapi.Field("nextPageToken, newStartPageToken, changes(changeType, fileId, removed, file(" + fileFields + "))")).
		SupportsAllDrives(true)
	if driveID != "" {
		call = call.DriveId(driveID).IncludeItemsFromAllDrives(true)
	}

	var list *drive.ChangeList
	err := c.limiter.Do(ctx, "changes.list", func() error {
		var err error
		list, err = call.Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	page := &driven.Page{Items: make([]driven.RawItem, 0, len(list.Changes))}
	for _, change := range list.Changes {
		if change.ChangeType == "drive" || change.FileId == "" {
			continue
		}
		if change.Removed || change.File == nil {
			page.Items = append(page.Items, driven.RawItem{
				ID:      change.FileId,
				Deleted: true,
				Payload: &FileItem{DriveID: driveID, FileID: change.FileId},
			})
			continue
		}
		if !ShouldSyncFile(change.File, c.config) {
			continue
		}
		page.Items = append(page.Items, driven.RawItem{
			ID:      change.FileId,
			Deleted: change.File.Trashed,
			Payload: &FileItem{DriveID: driveID, FileID: change.FileId, File: change.File},
		})
	}

	if list.NextPageToken != "" {
		next := Cursor{Mode: ModeChanges, PageToken: list.NextPageToken}
		page.More = true
		page.NextCursor = next.Encode()
		return page, nil
	}
	checkpoint := Cursor{Mode: ModeChanges, PageToken: list.NewStartPageToken}
	page.Checkpoint = checkpoint.Encode()
	return page, nil
}

func (c *Connector) startPageToken(ctx context.Context, driveID string) (string, error) {
	call := c.svc.Changes.GetStartPageToken().Context(ctx).SupportsAllDrives(true)
	if driveID != "" {
		call = call.DriveId(driveID)
	}
	var token *drive.StartPageToken
	err := c.limiter.Do(ctx, "changes.getStartPageToken", func() error {
		var err error
		token, err = call.Do()
		return err
	})
	if err != nil {
		return "", err
	}
	return token.StartPageToken, nil
}

// filesQuery restricts an initial listing to live files in the window.
func filesQuery(from, until *time.Time) string {
	clauses := []string{"trashed = false"}
	if from != nil {
		clauses = append(clauses, fmt.Sprintf("modifiedTime >= '%s'", from.UTC().Format(time.RFC3339)))
	}
	if until != nil {
		clauses = append(clauses, fmt.Sprintf("createdTime <= '%s'", until.UTC().Format(time.RFC3339)))
	}
	return strings.Join(clauses, " and ")
}

func sharedDriveID(resourceID string) string {
	if resourceID == ResourceMyDrive {
		return ""
	}
	return resourceID
}

// Transform maps a raw file to an activity, exporting its text when
// enabled.
func (c *Connector) Transform(ctx context.Context, _ string, item driven.RawItem) (*domain.Activity, error) {
	payload, ok := item.Payload.(*FileItem)
	if !ok {
		return nil, fmt.Errorf("%w: drive payload %T", ErrUnexpectedPayload, item.Payload)
	}
	if payload.FileID == "" {
		payload.FileID = item.ID
	}
	if item.Deleted || payload.File == nil || payload.File.Trashed {
		return fileActivity(payload, "", "")
	}
	content, contentType := c.describe(ctx, payload.File)
	return fileActivity(payload, content, contentType)
}

func (c *Connector) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrConnectorClosed
	}
	return nil
}

// Close releases resources.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		logger.Debug("drive connector %s closed", c.connectionID)
	}
	c.closed = true
	return nil
}
