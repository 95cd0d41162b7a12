package github

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/custodia-labs/syncd/internal/core/domain"
)

// CursorVersion is the current cursor schema version.
const CursorVersion = 2

// Cursor is the opaque keyset position for one repository. Issues are
// listed by updated_at ascending from Since, so edits made between
// batches move an issue forward without shifting unread ones out of
// reach.
type Cursor struct {
	// Version is the schema version for future migrations.
	Version int `json:"v"`

	// Since is the inclusive updated_at bound of the next request.
	Since time.Time `json:"since,omitempty"`

	// Boundary holds IDs already delivered whose updated_at equals Since.
	Boundary []int64 `json:"seen,omitempty"`

	// Page is the page within Since. It is only set when a whole page
	// shared one timestamp and the bound could not move.
	Page int `json:"page,omitempty"`
}

// Encode serializes the cursor to a base64-encoded JSON string.
func (c *Cursor) Encode() string {
	if c == nil {
		return ""
	}
	c.Version = CursorVersion
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeCursor deserializes a cursor. An empty string yields a fresh
// cursor. An undecodable or future-version cursor matches
// domain.ErrCursorExpired so the engine restarts the pass.
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
	if cursor.Version != CursorVersion {
		return nil, fmt.Errorf("%w: cursor version %d", domain.ErrCursorExpired, cursor.Version)
	}
	return &cursor, nil
}

// delivered reports whether the issue sits on the boundary and was
// already handed out.
func (c *Cursor) delivered(id int64, updated time.Time) bool {
	if !updated.Equal(c.Since) {
		return false
	}
	for _, seen := range c.Boundary {
		if seen == id {
			return true
		}
	}
	return false
}

// observe moves the bound to updated and records id on it.
func (c *Cursor) observe(id int64, updated time.Time) {
	switch {
	case updated.After(c.Since):
		c.Since = updated
		c.Boundary = []int64{id}
	case updated.Equal(c.Since):
		if !c.delivered(id, updated) {
			c.Boundary = append(c.Boundary, id)
		}
	}
}

// advance returns the cursor following a page of page number page.
// The next request restarts at page one unless the bound did not move.
func (c *Cursor) advance(from *Cursor, page int) *Cursor {
	n := *c
	n.Version = CursorVersion
	n.Page = 0
	if n.Since.Equal(from.Since) && len(n.Boundary) > 0 {
		n.Page = page + 1
	}
	return &n
}

// checkpoint returns the cursor that starts the next incremental pass.
func (c *Cursor) checkpoint() *Cursor {
	n := *c
	n.Version = CursorVersion
	n.Page = 0
	return &n
}
