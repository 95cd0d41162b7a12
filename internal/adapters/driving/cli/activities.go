package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/syncd/internal/core/domain"
	"github.com/custodia-labs/syncd/internal/core/ports/driven"
)

var activitiesCmd = &cobra.Command{
	Use:   "activities",
	Short: "Browse synced activities",
}

var activitiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List synced activities",
	Args:  cobra.NoArgs,
	RunE:  runActivitiesList,
}

var activitiesShowCmd = &cobra.Command{
	Use:   "show [source-key]",
	Short: "Show one activity with its notes",
	Args:  cobra.ExactArgs(1),
	RunE:  runActivitiesShow,
}

var (
	activitiesConnection string
	activitiesResource   string
	activitiesLimit      int
)

func init() {
	activitiesListCmd.Flags().StringVar(&activitiesConnection, "connection", "", "only this connection")
	activitiesListCmd.Flags().StringVar(&activitiesResource, "resource", "", "only this resource")
	activitiesListCmd.Flags().IntVarP(&activitiesLimit, "limit", "n", 50, "maximum number of activities")

	activitiesCmd.AddCommand(activitiesListCmd)
	activitiesCmd.AddCommand(activitiesShowCmd)
	rootCmd.AddCommand(activitiesCmd)
}

func activityServices(cmd *cobra.Command) (*Services, error) {
	svc, err := loadServices(cmd, OpenOptions{})
	if err != nil {
		return nil, err
	}
	if svc.Activities == nil {
		return nil, errors.New("activity store not configured")
	}
	return svc, nil
}

func runActivitiesList(cmd *cobra.Command, _ []string) error {
	svc, err := activityServices(cmd)
	if err != nil {
		return err
	}

	activities, err := svc.Activities.List(cmd.Context(), driven.ActivityFilter{
		ConnectionID: activitiesConnection,
		ResourceID:   activitiesResource,
		Limit:        activitiesLimit,
	})
	if err != nil {
		return fmt.Errorf("listing activities: %w", err)
	}
	if len(activities) == 0 {
		cmd.Println("No activities.")
		return nil
	}

	st := newStyles(cmd.OutOrStdout())
	rows := make([][]string, len(activities))
	for i := range activities {
		a := &activities[i]
		rows[i] = []string{
			a.SourceKey,
			string(a.Type),
			truncate(deref(a.Title), 48),
			flag(a.Done),
			flag(a.Unread),
			flag(a.Archived),
		}
	}
	cmd.Println(st.table([]string{"SOURCE KEY", "TYPE", "TITLE", "DONE", "UNREAD", "ARCHIVED"}, rows))
	return nil
}

func runActivitiesShow(cmd *cobra.Command, args []string) error {
	svc, err := activityServices(cmd)
	if err != nil {
		return err
	}

	a, err := svc.Activities.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("activity %s: %w", args[0], err)
	}

	st := newStyles(cmd.OutOrStdout())
	title := deref(a.Title)
	if title == "" {
		title = a.SourceKey
	}
	cmd.Println(st.Title.Render(title))
	cmd.Printf("  key:       %s\n", a.SourceKey)
	cmd.Printf("  source:    %s/%s\n", a.ConnectionID, a.ResourceID)
	cmd.Printf("  type:      %s\n", a.Type)
	if a.URL != nil {
		cmd.Printf("  url:       %s\n", *a.URL)
	}
	if a.Author != nil {
		cmd.Printf("  author:    %s\n", actorName(a.Author))
	}
	if a.Assignee != nil {
		cmd.Printf("  assignee:  %s\n", actorName(a.Assignee))
	}
	if a.Start != nil {
		cmd.Printf("  start:     %s\n", a.Start.Local().Format(time.DateTime))
	}
	if a.End != nil {
		cmd.Printf("  end:       %s\n", a.End.Local().Format(time.DateTime))
	}
	cmd.Printf("  done:      %s\n", flag(a.Done))
	cmd.Printf("  unread:    %s\n", flag(a.Unread))
	cmd.Printf("  archived:  %s\n", flag(a.Archived))

	for _, n := range a.Notes {
		cmd.Println()
		header := n.Key
		if n.Author != nil {
			header += " by " + actorName(n.Author)
		}
		cmd.Println(st.Muted.Render("── " + header))
		cmd.Println(n.Content)
	}
	return nil
}

func actorName(a *domain.Actor) string {
	switch {
	case a.Name != "":
		return a.Name
	case a.Email != "":
		return a.Email
	default:
		return a.ID
	}
}

func flag(b *bool) string {
	if b == nil {
		return "-"
	}
	return yesNo(*b)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
