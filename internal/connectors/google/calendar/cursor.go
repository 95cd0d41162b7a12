package calendar

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/custodia-labs/syncd/internal/core/domain"
)

// CursorVersion is the current cursor format version.
const CursorVersion = 1

var (
	// ErrInvalidCursor indicates the cursor could not be decoded.
	ErrInvalidCursor = errors.New("calendar: invalid cursor format")

	// ErrUnexpectedPayload indicates a raw item not produced by this connector.
	ErrUnexpectedPayload = errors.New("calendar: unexpected item payload")
)

// Cursor carries the events.list position for one calendar.
type Cursor struct {
	// Version is the cursor format version for future compatibility.
	Version int `json:"v"`

	// PageToken continues the current listing.
	PageToken string `json:"page,omitempty"`

	// SyncToken selects changes since a previous pass. Empty on the
	// initial pass.
	SyncToken string `json:"sync,omitempty"`
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
	return &cursor, nil
}
