package drive

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/custodia-labs/syncd/internal/connectors/google"
	"github.com/custodia-labs/syncd/internal/core/domain"
)

// ContentType identifies what content to sync from Google Drive.
type ContentType string

const (
	// ContentFiles syncs regular files.
	ContentFiles ContentType = "files"
	// ContentDocs syncs Google Docs (exported to text).
	ContentDocs ContentType = "docs"
	// ContentSheets syncs Google Sheets (exported to CSV text).
	ContentSheets ContentType = "sheets"
	// ContentSlides syncs Google Slides (exported to text).
	ContentSlides ContentType = "slides"
)

// DefaultContentTypes are the content types synced by default.
var DefaultContentTypes = []ContentType{ContentFiles, ContentDocs, ContentSheets, ContentSlides}

// Setting keys understood by the drive connector.
const (
	SettingContentTypes  = "content_types"
	SettingMimeTypes     = "mime_types"
	SettingFolderIDs     = "folder_ids"
	SettingExportContent = "export_content"
	SettingSharedDrives  = "shared_drives"
)

// Config holds Google Drive connector configuration.
type Config struct {
	// ContentTypes specifies what types of content to sync.
	ContentTypes []ContentType
	// MimeTypeFilter limits syncing to specific MIME types (optional).
	MimeTypeFilter []string
	// FolderIDs limits syncing to files directly inside these folders (optional).
	FolderIDs []string
	// ExportContent fills the description note with the file's text.
	ExportContent bool
	// SharedDrives offers shared drives as resources next to My Drive.
	SharedDrives bool
	// Endpoint overrides the API root.
	Endpoint string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ContentTypes:  DefaultContentTypes,
		ExportContent: true,
		SharedDrives:  true,
	}
}

// ConfigKeys describes the settings for the connector registry.
func ConfigKeys() []domain.ConfigKey {
	return []domain.ConfigKey{
		{Key: SettingContentTypes, Description: "Comma-separated content types: files, docs, sheets, slides", Default: "files,docs,sheets,slides"},
		{Key: SettingMimeTypes, Description: "Comma-separated MIME types to restrict syncing to"},
		{Key: SettingFolderIDs, Description: "Comma-separated folder IDs to restrict syncing to"},
		{Key: SettingExportContent, Description: "Store exported file text as the description note", Default: "true"},
		{Key: SettingSharedDrives, Description: "Offer shared drives as channels", Default: "true"},
		{Key: google.SettingEndpoint, Description: "Drive API endpoint override"},
	}
}

// ParseConfig extracts configuration from a connection.
func ParseConfig(conn domain.Connection) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Endpoint = conn.Setting(google.SettingEndpoint, "")

	if val := conn.Setting(SettingContentTypes, ""); val != "" {
		cfg.ContentTypes = nil
		for _, t := range splitList(val) {
			ct := ContentType(t)
			if !isValidContentType(ct) {
				return nil, fmt.Errorf("%w: drive setting %s: unknown content type %q", domain.ErrInvalidInput, SettingContentTypes, t)
			}
			cfg.ContentTypes = append(cfg.ContentTypes, ct)
		}
	}
	cfg.MimeTypeFilter = splitList(conn.Setting(SettingMimeTypes, ""))
	cfg.FolderIDs = splitList(conn.Setting(SettingFolderIDs, ""))

	var err error
	if cfg.ExportContent, err = parseBool(conn, SettingExportContent, cfg.ExportContent); err != nil {
		return nil, err
	}
	if cfg.SharedDrives, err = parseBool(conn, SettingSharedDrives, cfg.SharedDrives); err != nil {
		return nil, err
	}
	return cfg, nil
}

// HasContentType checks if a content type is enabled.
func (c *Config) HasContentType(ct ContentType) bool {
	return slices.Contains(c.ContentTypes, ct)
}

func isValidContentType(ct ContentType) bool {
	switch ct {
	case ContentFiles, ContentDocs, ContentSheets, ContentSlides:
		return true
	default:
		return false
	}
}

func splitList(val string) []string {
	var out []string
	for _, s := range strings.Split(val, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseBool(conn domain.Connection, key string, def bool) (bool, error) {
	val := conn.Setting(key, "")
	if val == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("%w: drive setting %s: %q is not a boolean", domain.ErrInvalidInput, key, val)
	}
	return b, nil
}
