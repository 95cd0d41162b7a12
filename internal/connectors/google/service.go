package google

import (
	"context"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/custodia-labs/syncd/internal/core/ports/driven"
)

// DefaultTimeout bounds a single Google API request.
const DefaultTimeout = 30 * time.Second

// SettingEndpoint overrides the API root, for private endpoints and tests.
const SettingEndpoint = "endpoint"

// ClientOptions builds the option set shared by every Google service: an
// oauth2 client backed by the connection's token provider and, when set,
// a custom endpoint.
func ClientOptions(ctx context.Context, provider driven.TokenProvider, endpoint string) []option.ClientOption {
	client := oauth2.NewClient(ctx, NewTokenSource(ctx, provider))
	client.Timeout = DefaultTimeout

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	return opts
}

// NewDriveService creates a Google Drive API service.
func NewDriveService(ctx context.Context, provider driven.TokenProvider, endpoint string) (*drive.Service, error) {
	return drive.NewService(ctx, ClientOptions(ctx, provider, endpoint)...)
}

// NewCalendarService creates a Google Calendar API service.
func NewCalendarService(ctx context.Context, provider driven.TokenProvider, endpoint string) (*calendar.Service, error) {
	return calendar.NewService(ctx, ClientOptions(ctx, provider, endpoint)...)
}
