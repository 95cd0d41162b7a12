package drive

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/drive/v3"

	"github.com/custodia-labs/syncd/internal/core/domain"
	"github.com/custodia-labs/syncd/internal/logger"
)

// Google Workspace MIME types.
const (
	MimeTypeGoogleDoc    = "application/vnd.google-apps.document"
	MimeTypeGoogleSheet  = "application/vnd.google-apps.spreadsheet"
	MimeTypeGoogleSlides = "application/vnd.google-apps.presentation"
	MimeTypeFolder       = "application/vnd.google-apps.folder"
)

// Export formats for Google Workspace files.
const (
	ExportMimeText = "text/plain"
	ExportMimeCSV  = "text/csv"
)

// MaxExportSize is the maximum size for exported content (5MB).
const MaxExportSize = 5 * 1024 * 1024

const (
	providerName = "google-drive"
	kindFile     = "file"
)

// Meta keys set on drive activities.
const (
	MetaMimeType     = "mime_type"
	MetaModifiedTime = "modified_time"
	MetaPath         = "path"
	MetaSize         = "size"
	MetaDriveID      = "drive_id"
	MetaStarred      = "starred"
)

// fileFields is the partial response requested for every file.
const fileFields = "id, name, mimeType, description, webViewLink, createdTime, modifiedTime, " +
	"trashed, parents, size, starred, driveId, owners(displayName, emailAddress, permissionId), " +
	"lastModifyingUser(displayName, emailAddress, permissionId)"

// FileItem is the typed payload of a drive raw item.
type FileItem struct {
	// DriveID is the shared drive, empty for My Drive.
	DriveID string
	// FileID is set even when File is nil for removals.
	FileID string
	File   *drive.File
}

func fileSourceKey(fileID string) (string, error) {
	return domain.SourceKey(providerName, kindFile, fileID)
}

// fileActivity maps a file to an activity. content is the exported text,
// empty when export is off or failed.
func fileActivity(item *FileItem, content, contentType string) (*domain.Activity, error) {
	key, err := fileSourceKey(item.FileID)
	if err != nil {
		return nil, err
	}
	file := item.File
	if file == nil || file.Trashed {
		return &domain.Activity{SourceKey: key, Type: domain.ActivityTypeNote}, nil
	}

	activity := &domain.Activity{
		SourceKey: key,
		Type:      domain.ActivityTypeNote,
		Title:     domain.Ptr(file.Name),
		Meta: map[string]string{
			MetaMimeType: file.MimeType,
			MetaPath:     buildFilePath(file),
			MetaStarred:  strconv.FormatBool(file.Starred),
		},
	}
	if file.WebViewLink != "" {
		activity.URL = domain.Ptr(file.WebViewLink)
	}
	if created, err := time.Parse(time.RFC3339, file.CreatedTime); err == nil {
		activity.Created = &created
	}
	if file.ModifiedTime != "" {
		activity.Meta[MetaModifiedTime] = file.ModifiedTime
	}
	if file.Size > 0 {
		activity.Meta[MetaSize] = strconv.FormatInt(file.Size, 10)
	}
	if item.DriveID != "" {
		activity.Meta[MetaDriveID] = item.DriveID
	}
	if len(file.Owners) > 0 {
		activity.Author = user(file.Owners[0])
	}
	if file.LastModifyingUser != nil {
		activity.Participants = []domain.Actor{*user(file.LastModifyingUser)}
	}

	if content == "" {
		content, contentType = file.Description, ExportMimeText
	}
	activity.Notes = []domain.Note{{
		Key:         domain.NoteKeyDescription,
		Content:     content,
		ContentType: contentType,
	}}
	return activity, nil
}

func user(u *drive.User) *domain.Actor {
	return &domain.Actor{ID: u.PermissionId, Name: u.DisplayName, Email: u.EmailAddress}
}

// fetchFileContent retrieves the text content of a file.
// Returns (content, contentType, error); content is empty for binary or
// oversized files.
func fetchFileContent(ctx context.Context, svc *drive.Service, file *drive.File) (string, string, error) {
	switch file.MimeType {
	case MimeTypeGoogleDoc, MimeTypeGoogleSlides:
		content, err := exportGoogleFile(ctx, svc, file.Id, ExportMimeText)
		return content, ExportMimeText, err
	case MimeTypeGoogleSheet:
		content, err := exportGoogleFile(ctx, svc, file.Id, ExportMimeCSV)
		return content, ExportMimeCSV, err
	}

	if !isTextFile(file.MimeType) || file.Size > MaxExportSize {
		return "", "", nil
	}

	resp, err := svc.Files.Get(file.Id).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return "", "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxExportSize))
	if err != nil {
		return "", "", fmt.Errorf("read file content: %w", err)
	}
	return string(data), file.MimeType, nil
}

// exportGoogleFile exports a Google Workspace file to the specified format.
func exportGoogleFile(ctx context.Context, svc *drive.Service, fileID, exportMime string) (string, error) {
	resp, err := svc.Files.Export(fileID, exportMime).Context(ctx).Download()
	if err != nil {
		return "", fmt.Errorf("export file: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxExportSize))
	if err != nil {
		return "", fmt.Errorf("read export: %w", err)
	}
	return string(data), nil
}

// buildFilePath constructs a simple path representation. Parent names
// would cost a lookup per file, so the parent ID stands in.
func buildFilePath(file *drive.File) string {
	if len(file.Parents) == 0 {
		return "/" + file.Name
	}
	return fmt.Sprintf("/%s/%s", file.Parents[0], file.Name)
}

var textTypes = []string{
	"application/json",
	"application/xml",
	"application/javascript",
	"application/x-yaml",
	"application/x-sh",
	"application/sql",
}

// isTextFile checks if a MIME type is likely text content.
func isTextFile(mimeType string) bool {
	return strings.HasPrefix(mimeType, "text/") || slices.Contains(textTypes, mimeType)
}

// ShouldSyncFile checks if a file should be synced based on config.
// Trashed files pass so incremental passes can archive them.
func ShouldSyncFile(file *drive.File, cfg *Config) bool {
	if file.MimeType == MimeTypeFolder {
		return false
	}
	if len(cfg.MimeTypeFilter) > 0 && !slices.Contains(cfg.MimeTypeFilter, file.MimeType) {
		return false
	}
	if len(cfg.FolderIDs) > 0 && !slices.ContainsFunc(file.Parents, func(p string) bool {
		return slices.Contains(cfg.FolderIDs, p)
	}) {
		return false
	}

	switch file.MimeType {
	case MimeTypeGoogleDoc:
		return cfg.HasContentType(ContentDocs)
	case MimeTypeGoogleSheet:
		return cfg.HasContentType(ContentSheets)
	case MimeTypeGoogleSlides:
		return cfg.HasContentType(ContentSlides)
	default:
		return cfg.HasContentType(ContentFiles)
	}
}

// describe fetches the file's text for the description note. Failures
// fall back to the file's own description.
func (c *Connector) describe(ctx context.Context, file *drive.File) (string, string) {
	if !c.config.ExportContent {
		return "", ""
	}
	var content, contentType string
	err := c.limiter.Do(ctx, "files.export", func() error {
		var err error
		content, contentType, err = fetchFileContent(ctx, c.svc, file)
		return err
	})
	if err != nil {
		logger.Warn("drive: export %s failed, keeping description: %v", file.Id, err)
		return "", ""
	}
	return content, contentType
}
