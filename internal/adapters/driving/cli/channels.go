package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/syncd/internal/core/domain"
	"github.com/custodia-labs/syncd/internal/core/ports/driving"
)

var channelsCmd = &cobra.Command{
	Use:     "channels",
	Aliases: []string{"ch"},
	Short:   "Manage the channels a connection syncs",
	Long: `Channels are the resources of a connection that can be synced:
repositories, calendars or drives.`,
}

var channelsListCmd = &cobra.Command{
	Use:   "list [connection-id]",
	Short: "List a connection's channels",
	Args:  cobra.ExactArgs(1),
	RunE:  runChannelsList,
}

var channelsEnableCmd = &cobra.Command{
	Use:   "enable [connection-id] [resource-id]",
	Short: "Enable syncing for a channel",
	Long: `Enables a channel and schedules its initial sync. Use --since to
only sync items from a recent window (e.g. 30d, 72h or 2026-01-01).`,
	Args: cobra.ExactArgs(2),
	RunE: runChannelsEnable,
}

var channelsDisableCmd = &cobra.Command{
	Use:   "disable [connection-id] [resource-id]",
	Short: "Disable syncing for a channel",
	Args:  cobra.ExactArgs(2),
	RunE:  runChannelsDisable,
}

var channelsSyncCmd = &cobra.Command{
	Use:   "sync [connection-id] [resource-id]",
	Short: "Schedule an incremental sync for an enabled channel",
	Args:  cobra.ExactArgs(2),
	RunE:  runChannelsSync,
}

var (
	channelsEnableSince string
	channelsEnableUntil string
)

// clock resolves relative windows.
var clock = time.Now

func init() {
	channelsEnableCmd.Flags().StringVar(&channelsEnableSince, "since", "", "only sync items newer than this (30d, 72h, 2026-01-01)")
	channelsEnableCmd.Flags().StringVar(&channelsEnableUntil, "until", "", "only sync items older than this date (2026-12-31)")

	channelsCmd.AddCommand(channelsListCmd)
	channelsCmd.AddCommand(channelsEnableCmd)
	channelsCmd.AddCommand(channelsDisableCmd)
	channelsCmd.AddCommand(channelsSyncCmd)
	rootCmd.AddCommand(channelsCmd)
}

func engineServices(cmd *cobra.Command) (*Services, error) {
	svc, err := loadServices(cmd, OpenOptions{})
	if err != nil {
		return nil, err
	}
	if svc.Engine == nil {
		return nil, errors.New("sync engine not configured")
	}
	return svc, nil
}

func runChannelsList(cmd *cobra.Command, args []string) error {
	svc, err := engineServices(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	channels, err := svc.Engine.GetChannels(ctx, args[0])
	if err != nil {
		return fmt.Errorf("listing channels: %w", err)
	}
	if len(channels) == 0 {
		cmd.Println("No channels available.")
		return nil
	}

	st := newStyles(cmd.OutOrStdout())
	rows := make([][]string, len(channels))
	for i, ch := range channels {
		state := string(domain.ResourceStateDisabled)
		if status, err := svc.Engine.Status(ctx, args[0], ch.ID); err == nil {
			state = string(status.State)
		}
		name := ch.Name
		if ch.Primary {
			name += " *"
		}
		rows[i] = []string{ch.ID, name, ch.Kind, st.state(state)}
	}
	cmd.Println(st.table([]string{"ID", "NAME", "KIND", "STATE"}, rows))
	return nil
}

func runChannelsEnable(cmd *cobra.Command, args []string) error {
	svc, err := engineServices(cmd)
	if err != nil {
		return err
	}
	window, err := parseWindow(channelsEnableSince, channelsEnableUntil, clock())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	connID, resourceID := args[0], args[1]
	if window.Min == nil && window.Max == nil {
		err = svc.Engine.OnChannelEnabled(ctx, connID, domain.Resource{ID: resourceID})
	} else {
		onItem, onDisable := domain.DestinationCallbacks(domain.ResourceRef{ConnectionID: connID, ResourceID: resourceID})
		err = svc.Engine.StartSync(ctx, driving.SyncOptions{
			ConnectionID: connID,
			ResourceID:   resourceID,
			Window:       window,
		}, onItem, &onDisable)
	}
	if err != nil {
		return fmt.Errorf("enabling %s/%s: %w", connID, resourceID, err)
	}

	cmd.Printf("Enabled %s/%s.", connID, resourceID)
	if window.Min != nil {
		cmd.Printf(" Syncing items since %s.", window.Min.Format(time.DateOnly))
	}
	cmd.Println(" Run 'syncd serve' or 'syncd run' to process it.")
	return nil
}

func runChannelsDisable(cmd *cobra.Command, args []string) error {
	svc, err := engineServices(cmd)
	if err != nil {
		return err
	}
	if err := svc.Engine.OnChannelDisabled(cmd.Context(), args[0], domain.Resource{ID: args[1]}); err != nil {
		return fmt.Errorf("disabling %s/%s: %w", args[0], args[1], err)
	}
	cmd.Printf("Disabled %s/%s.\n", args[0], args[1])
	return nil
}

func runChannelsSync(cmd *cobra.Command, args []string) error {
	svc, err := engineServices(cmd)
	if err != nil {
		return err
	}
	err = svc.Engine.StartIncrementalSync(cmd.Context(), args[0], args[1])
	if errors.Is(err, domain.ErrSyncInProgress) {
		cmd.Printf("A sync is already running for %s/%s.\n", args[0], args[1])
		return nil
	}
	if err != nil {
		return err
	}
	cmd.Printf("Incremental sync scheduled for %s/%s.\n", args[0], args[1])
	return nil
}

// parseWindow resolves --since and --until relative to now.
func parseWindow(since, until string, now time.Time) (domain.SyncWindow, error) {
	var window domain.SyncWindow
	if since != "" {
		t, err := parseSince(since, now)
		if err != nil {
			return window, err
		}
		window.Min = &t
	}
	if until != "" {
		t, err := time.ParseInLocation(time.DateOnly, until, now.Location())
		if err != nil {
			return window, fmt.Errorf("%w: --until %q is not a date", domain.ErrInvalidInput, until)
		}
		window.Max = &t
	}
	if window.Min != nil && window.Max != nil && !window.Min.Before(*window.Max) {
		return window, fmt.Errorf("%w: --since must be before --until", domain.ErrInvalidInput)
	}
	return window, nil
}

// parseSince accepts a day count ("30d"), a Go duration ("72h") or a date.
func parseSince(s string, now time.Time) (time.Time, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		if n, err := strconv.Atoi(days); err == nil && n > 0 {
			return now.AddDate(0, 0, -n), nil
		}
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return now.Add(-d), nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, now.Location()); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: --since %q is not a day count, duration or date", domain.ErrInvalidInput, s)
}
