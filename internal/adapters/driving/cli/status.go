package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [connection-id] [resource-id...]",
	Short: "Show sync status for a connection's channels",
	Long: `Shows lifecycle state and progress for the given resources, or for
every channel of the connection when none are given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStatus,
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List queued scheduler tasks",
	Args:  cobra.NoArgs,
	RunE:  runTasks,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(tasksCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	svc, err := engineServices(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	connID, resourceIDs := args[0], args[1:]

	if len(resourceIDs) == 0 {
		channels, err := svc.Engine.GetChannels(ctx, connID)
		if err != nil {
			return fmt.Errorf("listing channels: %w", err)
		}
		for _, ch := range channels {
			resourceIDs = append(resourceIDs, ch.ID)
		}
	}

	st := newStyles(cmd.OutOrStdout())
	rows := make([][]string, 0, len(resourceIDs))
	for _, id := range resourceIDs {
		status, err := svc.Engine.Status(ctx, connID, id)
		if err != nil {
			return fmt.Errorf("status for %s/%s: %w", connID, id, err)
		}
		phase := "-"
		if status.Enabled {
			phase = "incremental"
			if status.InitialSync {
				phase = "initial"
			}
		}
		push := "polling"
		if status.WebhookURL != "" {
			push = "webhook"
			if status.WatchExpiry != nil {
				push += " until " + status.WatchExpiry.Local().Format(time.DateTime)
			}
		}
		rows = append(rows, []string{
			id,
			st.state(string(status.State)),
			phase,
			fmt.Sprint(status.BatchNumber),
			fmt.Sprint(status.ItemsProcessed),
			fmt.Sprint(status.Sequence),
			push,
			status.LastError,
		})
	}
	cmd.Println(st.table([]string{"RESOURCE", "STATE", "PHASE", "BATCH", "ITEMS", "SEQ", "UPDATES", "ERROR"}, rows))
	return nil
}

func runTasks(cmd *cobra.Command, _ []string) error {
	svc, err := loadServices(cmd, OpenOptions{})
	if err != nil {
		return err
	}
	if svc.Scheduler == nil {
		return errors.New("scheduler not configured")
	}

	tasks, err := svc.Scheduler.Pending(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing tasks: %w", err)
	}
	if len(tasks) == 0 {
		cmd.Println("No tasks queued.")
		return nil
	}

	st := newStyles(cmd.OutOrStdout())
	rows := make([][]string, len(tasks))
	for i, t := range tasks {
		rows[i] = []string{
			t.ID,
			t.Name,
			t.RunAt.Local().Format(time.DateTime),
			fmt.Sprint(t.Attempts),
			t.LastError,
		}
	}
	cmd.Println(st.table([]string{"ID", "NAME", "RUN AT", "ATTEMPTS", "LAST ERROR"}, rows))
	return nil
}
