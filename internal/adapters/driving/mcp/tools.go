package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/syncd/internal/core/domain"
	"github.com/custodia-labs/syncd/internal/core/ports/driving"
)

// ChannelInput addresses one channel of a connection.
type ChannelInput struct {
	ConnectionID string `json:"connection_id" jsonschema:"the connection ID from syncd://connections"`
	ResourceID   string `json:"resource_id" jsonschema:"the channel (calendar, repository, drive) ID"`
}

// ListChannelsInput is the input schema for the list_channels tool.
type ListChannelsInput struct {
	ConnectionID string `json:"connection_id" jsonschema:"the connection ID from syncd://connections"`
}

// ListChannelsOutput is the output schema for the list_channels tool.
type ListChannelsOutput struct {
	Channels []ChannelOutput `json:"channels"`
	Count    int             `json:"count"`
}

// ChannelOutput is one channel with its sync state.
type ChannelOutput struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Kind    string `json:"kind,omitempty"`
	Primary bool   `json:"primary,omitempty"`
	Enabled bool   `json:"enabled"`
	State   string `json:"state"`
}

// EnableChannelInput is the input schema for the enable_channel tool.
type EnableChannelInput struct {
	ConnectionID string `json:"connection_id" jsonschema:"the connection ID from syncd://connections"`
	ResourceID   string `json:"resource_id" jsonschema:"the channel ID from list_channels"`
	SinceDays    int    `json:"since_days,omitempty" jsonschema:"only sync items from the last N days (default: everything)"`
}

// AckOutput acknowledges a state-changing tool call.
type AckOutput struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// StatusOutput is the output schema for the sync_status tool.
type StatusOutput struct {
	State          string     `json:"state"`
	Enabled        bool       `json:"enabled"`
	InitialSync    bool       `json:"initial_sync"`
	BatchNumber    int        `json:"batch_number"`
	ItemsProcessed int        `json:"items_processed"`
	Sequence       int        `json:"sequence"`
	WebhookURL     string     `json:"webhook_url,omitempty"`
	WatchExpiry    *time.Time `json:"watch_expiry,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
}

// AddCommentInput is the input schema for the add_comment tool.
type AddCommentInput struct {
	ConnectionID string `json:"connection_id" jsonschema:"the connection ID"`
	ResourceID   string `json:"resource_id" jsonschema:"the channel the item belongs to"`
	ItemID       string `json:"item_id" jsonschema:"the provider item ID (issue number, event ID)"`
	Body         string `json:"body" jsonschema:"the comment text"`
}

// AddCommentOutput is the output schema for the add_comment tool.
type AddCommentOutput struct {
	NoteKey string `json:"note_key"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_channels",
		Description: "List the channels a connection can sync and whether each is enabled",
	}, s.handleListChannels)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "enable_channel",
		Description: "Enable syncing for a channel and schedule its first batch",
	}, s.handleEnableChannel)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "disable_channel",
		Description: "Disable syncing for a channel and clear its sync state",
	}, s.handleDisableChannel)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "sync_now",
		Description: "Start an incremental sync for an enabled channel",
	}, s.handleSyncNow)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "sync_status",
		Description: "Show sync progress for a channel",
	}, s.handleSyncStatus)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "add_comment",
		Description: "Post a comment on a synced item",
	}, s.handleAddComment)
}

func (s *Server) handleListChannels(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListChannelsInput,
) (*mcp.CallToolResult, ListChannelsOutput, error) {
	channels, err := s.ports.Engine.GetChannels(ctx, input.ConnectionID)
	if err != nil {
		return nil, ListChannelsOutput{}, err
	}

	output := ListChannelsOutput{
		Channels: make([]ChannelOutput, len(channels)),
		Count:    len(channels),
	}
	for i, ch := range channels {
		out := ChannelOutput{
			ID:      ch.ID,
			Name:    ch.Name,
			Kind:    ch.Kind,
			Primary: ch.Primary,
			State:   string(domain.ResourceStateDisabled),
		}
		if st, err := s.ports.Engine.Status(ctx, input.ConnectionID, ch.ID); err == nil {
			out.Enabled = st.Enabled
			out.State = string(st.State)
		}
		output.Channels[i] = out
	}
	return nil, output, nil
}

func (s *Server) handleEnableChannel(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input EnableChannelInput,
) (*mcp.CallToolResult, AckOutput, error) {
	if input.SinceDays < 0 {
		return nil, AckOutput{}, fmt.Errorf("%w: since_days must not be negative", domain.ErrInvalidInput)
	}
	if input.SinceDays == 0 {
		err := s.ports.Engine.OnChannelEnabled(ctx, input.ConnectionID, domain.Resource{ID: input.ResourceID})
		if err != nil {
			return nil, AckOutput{}, err
		}
		return nil, ack("enabled %s/%s", input.ConnectionID, input.ResourceID), nil
	}

	since := s.now().AddDate(0, 0, -input.SinceDays)
	ref := domain.ResourceRef{ConnectionID: input.ConnectionID, ResourceID: input.ResourceID}
	onItem, onDisable := domain.DestinationCallbacks(ref)
	err := s.ports.Engine.StartSync(ctx, driving.SyncOptions{
		ConnectionID: input.ConnectionID,
		ResourceID:   input.ResourceID,
		Window:       domain.SyncWindow{Min: &since},
	}, onItem, &onDisable)
	if err != nil {
		return nil, AckOutput{}, err
	}
	return nil, ack("enabled %s/%s since %s", input.ConnectionID, input.ResourceID, since.Format(time.DateOnly)), nil
}

func (s *Server) handleDisableChannel(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ChannelInput,
) (*mcp.CallToolResult, AckOutput, error) {
	if err := s.ports.Engine.OnChannelDisabled(ctx, input.ConnectionID, domain.Resource{ID: input.ResourceID}); err != nil {
		return nil, AckOutput{}, err
	}
	return nil, ack("disabled %s/%s", input.ConnectionID, input.ResourceID), nil
}

func (s *Server) handleSyncNow(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ChannelInput,
) (*mcp.CallToolResult, AckOutput, error) {
	if err := s.ports.Engine.StartIncrementalSync(ctx, input.ConnectionID, input.ResourceID); err != nil {
		return nil, AckOutput{}, err
	}
	return nil, ack("incremental sync scheduled for %s/%s", input.ConnectionID, input.ResourceID), nil
}

func (s *Server) handleSyncStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ChannelInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	st, err := s.ports.Engine.Status(ctx, input.ConnectionID, input.ResourceID)
	if err != nil {
		return nil, StatusOutput{}, err
	}
	return nil, StatusOutput{
		State:          string(st.State),
		Enabled:        st.Enabled,
		InitialSync:    st.InitialSync,
		BatchNumber:    st.BatchNumber,
		ItemsProcessed: st.ItemsProcessed,
		Sequence:       st.Sequence,
		WebhookURL:     st.WebhookURL,
		WatchExpiry:    st.WatchExpiry,
		LastError:      st.LastError,
	}, nil
}

func (s *Server) handleAddComment(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AddCommentInput,
) (*mcp.CallToolResult, AddCommentOutput, error) {
	if input.Body == "" {
		return nil, AddCommentOutput{}, fmt.Errorf("%w: comment body is empty", domain.ErrInvalidInput)
	}
	note, err := s.ports.Engine.AddComment(ctx, input.ConnectionID, input.ResourceID, input.ItemID, input.Body)
	if err != nil {
		return nil, AddCommentOutput{}, err
	}
	return nil, AddCommentOutput{NoteKey: note.Key}, nil
}

func ack(format string, args ...any) AckOutput {
	return AckOutput{OK: true, Message: fmt.Sprintf(format, args...)}
}
