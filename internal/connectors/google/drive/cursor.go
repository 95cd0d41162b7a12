package drive

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/custodia-labs/syncd/internal/core/domain"
)

// CursorVersion is the current cursor format version.
const CursorVersion = 1

// Cursor modes.
const (
	// ModeFiles walks files.list during an initial pass.
	ModeFiles = "files"
	// ModeChanges walks changes.list from a page token.
	ModeChanges = "changes"
)

var (
	// ErrInvalidCursor indicates the cursor could not be decoded.
	ErrInvalidCursor = errors.New("drive: invalid cursor format")

	// ErrUnexpectedPayload indicates a raw item not produced by this connector.
	ErrUnexpectedPayload = errors.New("drive: unexpected item payload")
)

// Cursor tracks the Drive position. An initial pass lists files and
// remembers the changes start token taken before listing, so edits made
// during the pass are replayed by the first incremental pass.
type Cursor struct {
	// Version is the cursor format version for future compatibility.
	Version int `json:"v"`

	// Mode is ModeFiles or ModeChanges.
	Mode string `json:"mode"`

	// PageToken is the files.list page token in ModeFiles and the
	// changes.list page token in ModeChanges.
	PageToken string `json:"page,omitempty"`

	// StartPageToken is the changes token captured when listing began.
	StartPageToken string `json:"start,omitempty"`
}

// IsEmpty returns true if the cursor has no sync state.
func (c *Cursor) IsEmpty() bool {
	return c.Mode == ""
}

// Encode serialises the cursor to a base64 string for storage.
func (c *Cursor) Encode() string {
	c.Version = CursorVersion
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeCursor deserializes a cursor. Anything unreadable matches
// domain.ErrCursorExpired so the pass restarts.
func DecodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return &Cursor{Version: CursorVersion}, nil
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCursorExpired, ErrInvalidCursor)
	}

	var cursor Cursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCursorExpired, ErrInvalidCursor)
	}
	if cursor.Version > CursorVersion {
		return nil, fmt.Errorf("%w: %w", domain.ErrCursorExpired, ErrInvalidCursor)
	}
	switch cursor.Mode {
	case ModeFiles, ModeChanges:
	default:
		return nil, fmt.Errorf("%w: %w: mode %q", domain.ErrCursorExpired, ErrInvalidCursor, cursor.Mode)
	}
	return &cursor, nil
}
