package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/syncd/internal/core/ports/driven"
)

const (
	// uriScheme is the custom URI scheme for syncd resources.
	uriScheme = "syncd://"

	// defaultActivityLimit caps activity listings.
	defaultActivityLimit = 100
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "connections",
		Name:        "connections",
		Description: "List of all configured connections",
		MIMEType:    "application/json",
	}, s.handleConnectionsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "connections/{connectionId}/activities",
		Name:        "connection-activities",
		Description: "Activities synced from a specific connection",
		MIMEType:    "application/json",
	}, s.handleActivitiesResource)
}

// handleConnectionsResource returns all configured connections without
// their credentials.
func (s *Server) handleConnectionsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Connections == nil {
		return jsonResult(req.Params.URI, []struct{}{})
	}

	conns, err := s.ports.Connections.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing connections: %w", err)
	}

	type connectionInfo struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Type string `json:"type"`
	}
	infos := make([]connectionInfo, len(conns))
	for i := range conns {
		infos[i] = connectionInfo{
			ID:   conns[i].ID,
			Name: conns[i].DisplayName(),
			Type: conns[i].Type,
		}
	}
	return jsonResult(req.Params.URI, infos)
}

// handleActivitiesResource returns the activities synced for a connection.
func (s *Server) handleActivitiesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Activities == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	connID := extractConnectionID(req.Params.URI)
	if connID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	activities, err := s.ports.Activities.List(ctx, driven.ActivityFilter{
		ConnectionID: connID,
		Limit:        defaultActivityLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("listing activities: %w", err)
	}

	type activityInfo struct {
		SourceKey string     `json:"source_key"`
		Resource  string     `json:"resource"`
		Type      string     `json:"type"`
		Title     string     `json:"title,omitempty"`
		URL       string     `json:"url,omitempty"`
		Start     *time.Time `json:"start,omitempty"`
		Done      bool       `json:"done"`
		Archived  bool       `json:"archived"`
	}
	infos := make([]activityInfo, len(activities))
	for i := range activities {
		a := &activities[i]
		infos[i] = activityInfo{
			SourceKey: a.SourceKey,
			Resource:  a.ResourceID,
			Type:      string(a.Type),
			Title:     deref(a.Title),
			URL:       deref(a.URL),
			Start:     a.Start,
			Done:      a.Done != nil && *a.Done,
			Archived:  a.Archived != nil && *a.Archived,
		}
	}
	return jsonResult(req.Params.URI, infos)
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractConnectionID extracts the connection ID from a URI like
// syncd://connections/{connectionId}/activities.
func extractConnectionID(uri string) string {
	const prefix = uriScheme + "connections/"
	const suffix = "/activities"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	uri = strings.TrimPrefix(uri, prefix)
	if !strings.HasSuffix(uri, suffix) {
		return ""
	}
	return strings.TrimSuffix(uri, suffix)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
