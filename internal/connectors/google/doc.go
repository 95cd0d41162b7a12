// Package google provides shared infrastructure for Google API connectors.
//
// The calendar and drive connectors use it for:
//   - a TokenSource adapter bridging driven.TokenProvider to oauth2.TokenSource
//   - service constructors with an overridable endpoint
//   - mapping googleapi errors onto domain errors (410 Gone becomes
//     domain.ErrCursorExpired, 429 domain.ErrRateLimited, 5xx domain.ErrTransient)
//   - per-service rate limiting
//   - push notification channels: registration requests, X-Goog header
//     verification and classification
//
// # Usage
//
//	svc, err := google.NewCalendarService(ctx, tokenProvider, endpoint)
//	limiter := google.NewRateLimiter(google.ServiceCalendar)
//	err = limiter.Do(ctx, "events.list", func() error { ... })
//
// # Push channels
//
// Google delivers push notifications with an empty body. The channel token
// set at registration is echoed in X-Goog-Channel-Token and is compared in
// constant time. X-Goog-Resource-State "sync" confirms a new channel; any
// other state only signals that the watched collection changed.
package google
