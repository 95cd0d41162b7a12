package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var commentCmd = &cobra.Command{
	Use:   "comment [connection-id] [resource-id] [item-id] [text...]",
	Short: "Post a comment on a synced item",
	Long: `Writes a comment back to the provider and records it as a note on
the item's activity. Only connectors with the comments capability
support this.`,
	Args: cobra.MinimumNArgs(4),
	RunE: runComment,
}

func init() {
	rootCmd.AddCommand(commentCmd)
}

func runComment(cmd *cobra.Command, args []string) error {
	svc, err := engineServices(cmd)
	if err != nil {
		return err
	}
	body := strings.Join(args[3:], " ")
	note, err := svc.Engine.AddComment(cmd.Context(), args[0], args[1], args[2], body)
	if err != nil {
		return fmt.Errorf("adding comment: %w", err)
	}
	cmd.Printf("Comment posted as note %s.\n", note.Key)
	return nil
}
