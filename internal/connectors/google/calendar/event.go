package calendar

import (
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/custodia-labs/syncd/internal/core/domain"
)

const (
	providerName = "google-calendar"
	kindEvent    = "event"

	statusCancelled = "cancelled"
	rsvpDeclined    = "declined"
)

// Meta keys set on calendar activities.
const (
	MetaStatus           = "status"
	MetaLocation         = "location"
	MetaRSVP             = "rsvp"
	MetaAllDay           = "all_day"
	MetaRecurringEventID = "recurring_event_id"
	MetaICalUID          = "ical_uid"
	MetaConference       = "conference"
)

// EventItem is the typed payload of a calendar raw item.
type EventItem struct {
	CalendarID string
	Event      *calendar.Event
}

// eventSourceKey builds the upsert key. Instance IDs of recurring events
// are stable, so each occurrence gets its own record.
func eventSourceKey(calendarID, eventID string) (string, error) {
	return domain.SourceKey(providerName, kindEvent, calendarID, eventID)
}

// eventActivity maps an event to an activity. Cancelled events carry only
// their key and status; the engine archives them.
func eventActivity(calendarID string, event *calendar.Event) (*domain.Activity, error) {
	key, err := eventSourceKey(calendarID, event.Id)
	if err != nil {
		return nil, err
	}

	if event.Status == statusCancelled {
		return &domain.Activity{
			SourceKey: key,
			Type:      domain.ActivityTypeEvent,
			Meta:      map[string]string{MetaStatus: statusCancelled},
		}, nil
	}

	activity := &domain.Activity{
		SourceKey: key,
		Type:      domain.ActivityTypeEvent,
		Title:     domain.Ptr(event.Summary),
		Author:    organiser(event),
		Meta:      map[string]string{MetaStatus: event.Status},
		Notes: []domain.Note{{
			Key:         domain.NoteKeyDescription,
			Content:     event.Description,
			ContentType: "text/html",
		}},
	}
	if event.HtmlLink != "" {
		activity.URL = domain.Ptr(event.HtmlLink)
	}
	if created, err := time.Parse(time.RFC3339, event.Created); err == nil {
		activity.Created = &created
	}

	start, allDay := eventTime(event.Start)
	end, _ := eventTime(event.End)
	activity.Start, activity.End = start, end
	if allDay {
		activity.Meta[MetaAllDay] = "true"
	}

	setMeta(activity.Meta, MetaLocation, event.Location)
	setMeta(activity.Meta, MetaRecurringEventID, event.RecurringEventId)
	setMeta(activity.Meta, MetaICalUID, event.ICalUID)
	setMeta(activity.Meta, MetaConference, event.HangoutLink)

	activity.Participants = participants(event.Attendees)
	if rsvp := selfResponse(event); rsvp != "" {
		activity.Meta[MetaRSVP] = rsvp
		activity.Done = domain.Ptr(rsvp == rsvpDeclined)
	}
	return activity, nil
}

// participants lists human attendees as contacts. Rooms and other
// resources are skipped.
func participants(attendees []*calendar.EventAttendee) []domain.Actor {
	if len(attendees) == 0 {
		return nil
	}
	out := make([]domain.Actor, 0, len(attendees))
	for _, a := range attendees {
		if a.Resource || (a.Email == "" && a.DisplayName == "") {
			continue
		}
		out = append(out, domain.Actor{ID: a.Id, Name: a.DisplayName, Email: a.Email})
	}
	return out
}

// selfResponse returns the authenticated user's RSVP. An event the user
// organises without an attendee entry counts as accepted.
func selfResponse(event *calendar.Event) string {
	for _, a := range event.Attendees {
		if a.Self {
			return a.ResponseStatus
		}
	}
	if event.Organizer != nil && event.Organizer.Self { //nolint:misspell // Google API field name
		return "accepted"
	}
	return ""
}

// eventTime parses a timed or all-day boundary.
func eventTime(t *calendar.EventDateTime) (*time.Time, bool) {
	if t == nil {
		return nil, false
	}
	if t.DateTime != "" {
		if parsed, err := time.Parse(time.RFC3339, t.DateTime); err == nil {
			return &parsed, false
		}
		return nil, false
	}
	if t.Date == "" {
		return nil, false
	}
	loc := time.UTC
	if t.TimeZone != "" {
		if l, err := time.LoadLocation(t.TimeZone); err == nil {
			loc = l
		}
	}
	parsed, err := time.ParseInLocation(time.DateOnly, t.Date, loc)
	if err != nil {
		return nil, true
	}
	return &parsed, true
}

func organiser(event *calendar.Event) *domain.Actor {
	if o := event.Organizer; o != nil { //nolint:misspell // Google API field name
		return &domain.Actor{ID: o.Id, Name: o.DisplayName, Email: o.Email}
	}
	if c := event.Creator; c != nil {
		return &domain.Actor{ID: c.Id, Name: c.DisplayName, Email: c.Email}
	}
	return nil
}

func setMeta(meta map[string]string, key, value string) {
	if value != "" {
		meta[key] = value
	}
}
