package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/syncd/internal/core/domain"
	"github.com/custodia-labs/syncd/internal/logger"
)

// maxRunRounds bounds how often run drains the queue.
const maxRunRounds = 10000

var runEphemeral bool

var runCmd = &cobra.Command{
	Use:   "run [connection-id [resource-id...]]",
	Short: "Sync once and exit",
	Long: `Runs every due task until the queue is drained, then exits.

With a connection ID, its channels (or only the given resource IDs) are
enabled first, or given an incremental sync if already enabled.

With --ephemeral, state is kept in memory and every channel of every
connection is synced from scratch.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runEphemeral, "ephemeral", false, "keep state in memory and sync everything")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	svc, err := loadServices(cmd, OpenOptions{Ephemeral: runEphemeral})
	if err != nil {
		return err
	}
	if svc.Engine == nil || svc.Scheduler == nil {
		return errors.New("sync engine not configured")
	}
	ctx := cmd.Context()

	var refs []domain.ResourceRef
	switch {
	case len(args) > 0:
		refs, err = kickOff(ctx, svc, args[0], args[1:])
		if err != nil {
			return err
		}
	case runEphemeral:
		conns, err := svc.Connections.List(ctx)
		if err != nil {
			return fmt.Errorf("listing connections: %w", err)
		}
		for _, conn := range conns {
			started, err := kickOff(ctx, svc, conn.ID, nil)
			if err != nil {
				cmd.PrintErrf("Skipping %s: %v\n", conn.ID, err)
				continue
			}
			refs = append(refs, started...)
		}
	}

	total, err := drain(ctx, svc)
	if err != nil {
		return err
	}
	cmd.Printf("Ran %d tasks.\n", total)

	if len(refs) == 0 {
		return nil
	}
	st := newStyles(cmd.OutOrStdout())
	rows := make([][]string, 0, len(refs))
	for _, ref := range refs {
		status, err := svc.Engine.Status(ctx, ref.ConnectionID, ref.ResourceID)
		if err != nil {
			rows = append(rows, []string{ref.ConnectionID, ref.ResourceID, st.Error.Render("error"), "-", err.Error()})
			continue
		}
		rows = append(rows, []string{
			ref.ConnectionID, ref.ResourceID, st.state(string(status.State)),
			fmt.Sprint(status.ItemsProcessed), status.LastError,
		})
	}
	cmd.Println(st.table([]string{"CONNECTION", "RESOURCE", "STATE", "ITEMS", "ERROR"}, rows))
	return nil
}

// kickOff enables each resource, or starts an incremental pass when it is
// already enabled. No resource IDs means every channel of the connection.
func kickOff(ctx context.Context, svc *Services, connectionID string, resourceIDs []string) ([]domain.ResourceRef, error) {
	logger.Section(connectionID)
	if len(resourceIDs) == 0 {
		channels, err := svc.Engine.GetChannels(ctx, connectionID)
		if err != nil {
			return nil, err
		}
		for _, ch := range channels {
			resourceIDs = append(resourceIDs, ch.ID)
		}
	}

	refs := make([]domain.ResourceRef, 0, len(resourceIDs))
	for _, id := range resourceIDs {
		ref := domain.ResourceRef{ConnectionID: connectionID, ResourceID: id}
		status, err := svc.Engine.Status(ctx, connectionID, id)
		if err != nil {
			return nil, err
		}
		if status.Enabled {
			err = svc.Engine.StartIncrementalSync(ctx, connectionID, id)
			if errors.Is(err, domain.ErrSyncInProgress) {
				err = nil
			}
		} else {
			err = svc.Engine.OnChannelEnabled(ctx, connectionID, domain.Resource{ID: id})
		}
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", connectionID, id, err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// drain runs due tasks until none are left.
func drain(ctx context.Context, svc *Services) (int, error) {
	total := 0
	for round := 0; round < maxRunRounds; round++ {
		n, err := svc.Scheduler.RunPending(ctx)
		if err != nil {
			return total, fmt.Errorf("running tasks: %w", err)
		}
		if n == 0 {
			return total, nil
		}
		total += n
		logger.Debug("run: round %d ran %d tasks", round+1, n)
	}
	logger.Warn("run: stopped after %d rounds with tasks still due", maxRunRounds)
	return total, nil
}
