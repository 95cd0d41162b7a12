// Package calendar implements a Google Calendar connector.
//
// Each calendar in the account's calendar list is a resource. Events are
// synced as event activities keyed by calendar and event ID:
//
//	google-calendar:event:{calendarID}:{eventID}
//
// Initial passes list events within the sync window with recurring events
// expanded into instances. The final page yields a syncToken that becomes the
// checkpoint; incremental passes list changes since that token. An expired
// token (410 Gone) surfaces as domain.ErrCursorExpired and the engine
// restarts the pass with the same window.
//
// Attendees become participants. The authenticated user's response is kept
// in Meta["rsvp"] and a declined invitation marks the activity done.
//
// Push notifications use events.watch channels. They only signal that the
// calendar changed, so each one triggers an incremental pass. Channels expire
// and are renewed through the WatchRenewer capability.
package calendar
