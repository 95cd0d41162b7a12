package domain

import (
	"encoding/json"
	"time"
)

// ActivityType classifies a canonical activity.
type ActivityType string

const (
	// ActivityTypeAction is an actionable item such as an issue or task.
	ActivityTypeAction ActivityType = "action"
	// ActivityTypeEvent is a scheduled occurrence such as a calendar event.
	ActivityTypeEvent ActivityType = "event"
	// ActivityTypeNote is a reference item such as a document.
	ActivityTypeNote ActivityType = "note"
)

// Well-known note keys.
const (
	// NoteKeyDescription holds the canonical body and is overwritten on every sync.
	NoteKeyDescription = "description"

	// noteKeyCommentPrefix prefixes immutable per-comment notes.
	noteKeyCommentPrefix = "comment-"
)

// CommentNoteKey returns the stable note key for a provider comment.
func CommentNoteKey(commentID string) string {
	return noteKeyCommentPrefix + commentID
}

// Actor identifies a person on the provider side.
type Actor struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Note is a keyed piece of content attached to an activity.
// Notes are upserted by Key: an existing key has its content replaced,
// a new key is appended.
type Note struct {
	Key         string     `json:"key"`
	Content     string     `json:"content"`
	ContentType string     `json:"contentType,omitempty"`
	Author      *Actor     `json:"author,omitempty"`
	Created     *time.Time `json:"created,omitempty"`
}

// Activity is the provider-neutral record upserted into the destination.
//
// Pointer and slice fields carry presence: nil means "absent, do not touch".
// This lets webhook-driven partial updates and incremental syncs leave
// user-owned state (Unread, Archived) and untouched notes alone.
type Activity struct {
	// SourceKey is the idempotent upsert key, derived only from immutable IDs.
	SourceKey string `json:"sourceKey"`

	// ConnectionID and ResourceID locate the activity's origin.
	ConnectionID string `json:"connectionId,omitempty"`
	ResourceID   string `json:"resourceId,omitempty"`

	Type     ActivityType `json:"type,omitempty"`
	Title    *string      `json:"title,omitempty"`
	URL      *string      `json:"url,omitempty"`
	Created  *time.Time   `json:"created,omitempty"`
	Start    *time.Time   `json:"start,omitempty"`
	End      *time.Time   `json:"end,omitempty"`
	Author   *Actor       `json:"author,omitempty"`
	Assignee *Actor       `json:"assignee,omitempty"`
	Done     *bool        `json:"done,omitempty"`
	Unread   *bool        `json:"unread,omitempty"`
	Archived *bool        `json:"archived,omitempty"`

	// Notes: nil leaves existing notes untouched, an empty slice clears them.
	Notes []Note `json:"notes"`

	// Participants are contacts attached to the activity (attendees, watchers).
	Participants []Actor `json:"participants,omitempty"`

	// Meta carries provider-specific scalars. Keys are merged on upsert.
	Meta map[string]string `json:"meta,omitempty"`
}

// MarshalJSON omits notes when nil but keeps an explicit empty list,
// so "absent" and "clear" survive serialisation.
func (a Activity) MarshalJSON() ([]byte, error) {
	type alias Activity
	out := struct {
		alias
		Notes *[]Note `json:"notes,omitempty"`
	}{alias: alias(a)}
	if a.Notes != nil {
		notes := a.Notes
		out.Notes = &notes
	}
	return json.Marshal(out)
}

// MergeActivity applies update on top of existing and returns the result.
// A nil existing activity is treated as a fresh create.
func MergeActivity(existing *Activity, update Activity) Activity {
	if existing == nil {
		return update
	}

	merged := *existing
	if update.ConnectionID != "" {
		merged.ConnectionID = update.ConnectionID
	}
	if update.ResourceID != "" {
		merged.ResourceID = update.ResourceID
	}
	if update.Type != "" {
		merged.Type = update.Type
	}
	mergePtr(&merged.Title, update.Title)
	mergePtr(&merged.URL, update.URL)
	mergePtr(&merged.Created, update.Created)
	mergePtr(&merged.Start, update.Start)
	mergePtr(&merged.End, update.End)
	mergePtr(&merged.Author, update.Author)
	mergePtr(&merged.Assignee, update.Assignee)
	mergePtr(&merged.Done, update.Done)
	mergePtr(&merged.Unread, update.Unread)
	mergePtr(&merged.Archived, update.Archived)

	if update.Notes != nil {
		merged.Notes = mergeNotes(existing.Notes, update.Notes)
	}
	if update.Participants != nil {
		merged.Participants = update.Participants
	}
	if update.Meta != nil {
		meta := make(map[string]string, len(existing.Meta)+len(update.Meta))
		for k, v := range existing.Meta {
			meta[k] = v
		}
		for k, v := range update.Meta {
			meta[k] = v
		}
		merged.Meta = meta
	}
	return merged
}

func mergePtr[T any](dst **T, src *T) {
	if src != nil {
		*dst = src
	}
}

// mergeNotes upserts notes by key. An empty update clears every note.
func mergeNotes(existing, update []Note) []Note {
	if len(update) == 0 {
		return []Note{}
	}

	merged := make([]Note, len(existing), len(existing)+len(update))
	copy(merged, existing)
	index := make(map[string]int, len(merged))
	for i, n := range merged {
		index[n.Key] = i
	}
	for _, n := range update {
		if i, ok := index[n.Key]; ok {
			merged[i] = n
			continue
		}
		index[n.Key] = len(merged)
		merged = append(merged, n)
	}
	return merged
}

// Ptr returns a pointer to v. Used to populate optional activity fields.
func Ptr[T any](v T) *T {
	return &v
}
