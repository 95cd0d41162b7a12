package calendar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/custodia-labs/syncd/internal/connectors/google"
	"github.com/custodia-labs/syncd/internal/core/domain"
	"github.com/custodia-labs/syncd/internal/core/ports/driven"
	"github.com/custodia-labs/syncd/internal/logger"
)

// Type is the connector type identifier.
const Type = "google-calendar"

// maxPageSize is the events.list ceiling.
const maxPageSize = 2500

// Ensure Connector implements the interfaces.
var (
	_ driven.Connector        = (*Connector)(nil)
	_ driven.WebhookConnector = (*Connector)(nil)
	_ driven.WatchRenewer     = (*Connector)(nil)
)

// Connector syncs events from Google Calendar.
type Connector struct {
	connectionID string
	config       *Config
	svc          *calendar.Service
	limiter      *google.RateLimiter
	now          func() time.Time

	mu     sync.Mutex
	closed bool
}

// New creates a new Google Calendar connector.
func New(connectionID string, cfg *Config, svc *calendar.Service, limiter *google.RateLimiter) *Connector {
	if limiter == nil {
		limiter = google.NewRateLimiter(google.ServiceCalendar)
	}
	return &Connector{
		connectionID: connectionID,
		config:       cfg,
		svc:          svc,
		limiter:      limiter,
		now:          time.Now,
	}
}

// NewBuilder returns the driven.ConnectorBuilder for Google Calendar
// connections. Connectors built for the same connection share a limiter.
func NewBuilder(limiters *google.Limiters) driven.ConnectorBuilder {
	return func(conn domain.Connection, tokenProvider driven.TokenProvider) (driven.Connector, error) {
		cfg, err := ParseConfig(conn)
		if err != nil {
			return nil, err
		}
		svc, err := google.NewCalendarService(context.Background(), tokenProvider, cfg.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("create calendar service: %w", err)
		}
		return New(conn.ID, cfg, svc, limiters.For(conn.ID, google.ServiceCalendar)), nil
	}
}

// Descriptor describes the connector for the registry.
func Descriptor() domain.ConnectorType {
	return domain.ConnectorType{
		ID:           Type,
		Name:         "Google Calendar",
		Description:  "Events from Google calendars",
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

// ListResources returns the calendars on the user's calendar list.
func (c *Connector) ListResources(ctx context.Context) ([]domain.Resource, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	var resources []domain.Resource
	pageToken := ""
	for {
		call := c.svc.CalendarList.List().Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		var list *calendar.CalendarList
		err := c.limiter.Do(ctx, "calendarList.list", func() error {
			var err error
			list, err = call.Do()
			return err
		})
		if err != nil {
			return nil, err
		}

		for _, entry := range list.Items {
			if entry.Deleted || !c.config.Allows(entry.Id) {
				continue
			}
			name := entry.SummaryOverride
			if name == "" {
				name = entry.Summary
			}
			resources = append(resources, domain.Resource{
				ID:      entry.Id,
				Name:    name,
				Kind:    "calendar",
				Primary: entry.Primary,
			})
		}

		if list.NextPageToken == "" {
			return resources, nil
		}
		pageToken = list.NextPageToken
	}
}

// FetchPage fetches one page of events. The initial pass lists the
// window in state.Min/Max; later passes use the stored sync token.
func (c *Connector) FetchPage(ctx context.Context, resourceID string, state domain.SyncState, pageSize int) (*driven.Page, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	cursor, err := DecodeCursor(state.Cursor)
	if err != nil {
		return nil, err
	}

	call := c.svc.Events.List(resourceID).
		Context(ctx).
		ShowDeleted(true).
		SingleEvents(c.config.SingleEvents).
		MaxResults(int64(min(max(pageSize, 1), maxPageSize)))

	// Time bounds and sync tokens are mutually exclusive.
	if cursor.SyncToken != "" {
		call = call.SyncToken(cursor.SyncToken)
	} else {
		if state.Min != nil {
			call = call.TimeMin(state.Min.UTC().Format(time.RFC3339))
		}
		if state.Max != nil {
			call = call.TimeMax(state.Max.UTC().Format(time.RFC3339))
		}
	}
	if cursor.PageToken != "" {
		call = call.PageToken(cursor.PageToken)
	}

	var events *calendar.Events
	err = c.limiter.Do(ctx, "events.list", func() error {
		var err error
		events, err = call.Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	page := &driven.Page{Items: make([]driven.RawItem, 0, len(events.Items))}
	for _, event := range events.Items {
		if event == nil || event.Id == "" {
			logger.Warn("calendar %s: skipping event without id", resourceID)
			continue
		}
		page.Items = append(page.Items, driven.RawItem{
			ID:      event.Id,
			Deleted: event.Status == statusCancelled,
			Payload: &EventItem{CalendarID: resourceID, Event: event},
		})
	}

	if events.NextPageToken != "" {
		next := Cursor{PageToken: events.NextPageToken, SyncToken: cursor.SyncToken}
		page.More = true
		page.NextCursor = next.Encode()
		return page, nil
	}
	checkpoint := Cursor{SyncToken: events.NextSyncToken}
	page.Checkpoint = checkpoint.Encode()
	return page, nil
}

// Transform maps a raw event to an activity.
func (c *Connector) Transform(_ context.Context, resourceID string, item driven.RawItem) (*domain.Activity, error) {
	payload, ok := item.Payload.(*EventItem)
	if !ok || payload.Event == nil {
		return nil, fmt.Errorf("%w: calendar payload %T", ErrUnexpectedPayload, item.Payload)
	}
	calendarID := payload.CalendarID
	if calendarID == "" {
		calendarID = resourceID
	}
	return eventActivity(calendarID, payload.Event)
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
	c.closed = true
	return nil
}
